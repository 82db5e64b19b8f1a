package protocol

import (
	"fmt"
	"strings"

	"github.com/bbeck/locations/internal/location"
)

const (
	None          = "none\n"
	LimitExceeded = "limit exceeded\n"
)

// Format renders the result of a registry operation as a response line.
func Format(r location.Result) string {
	switch r.Outcome {
	case location.Added:
		return fmt.Sprintf("%s added\n", r.Point)
	case location.AlreadyExists:
		return fmt.Sprintf("%s already exists\n", r.Point)
	case location.CapacityExceeded:
		return LimitExceeded
	case location.Removed:
		return fmt.Sprintf("%s removed\n", r.Point)
	case location.NotFound:
		return fmt.Sprintf("%s does not exist\n", r.Point)
	case location.Nearest:
		return fmt.Sprintf("%s\n", r.Point)
	case location.Listing:
		var sb strings.Builder
		for i, p := range r.Points {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(p.String())
		}
		sb.WriteByte('\n')
		return sb.String()
	default:
		return None
	}
}
