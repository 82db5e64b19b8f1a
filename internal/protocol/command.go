package protocol

import (
	"errors"
	"strconv"
	"strings"

	"github.com/bbeck/locations/internal/location"
)

// DefaultMaxCoordinate is the largest coordinate a server accepts.
const DefaultMaxCoordinate = 9999

var ErrInvalidCommand = errors.New("invalid command")

type Verb int

const (
	Invalid Verb = iota
	Add
	Remove
	Query
	List
	Kill
)

var verbs = map[string]Verb{
	"add":   Add,
	"rm":    Remove,
	"query": Query,
	"list":  List,
	"kill":  Kill,
}

func (v Verb) String() string {
	for name, verb := range verbs {
		if verb == v {
			return name
		}
	}
	return "invalid"
}

// TakesPoint reports whether the verb is followed by a pair of coordinates.
func (v Verb) TakesPoint() bool {
	return v == Add || v == Remove || v == Query
}

type Command struct {
	Verb  Verb
	Point location.Point
}

func (c Command) String() string {
	if c.Verb.TakesPoint() {
		return c.Verb.String() + " " + c.Point.String()
	}
	return c.Verb.String()
}

// Parse converts a single command into its typed form.  Anything malformed
// comes back with the Invalid verb, there is no error to inspect.
func Parse(s string) Command {
	tokens := strings.FieldsFunc(strings.TrimRight(s, " \t\r\n"), func(r rune) bool {
		return r == ' '
	})
	if len(tokens) == 0 {
		return Command{}
	}

	verb, ok := verbs[tokens[0]]
	if !ok {
		return Command{}
	}

	if !verb.TakesPoint() {
		if len(tokens) != 1 {
			return Command{}
		}
		return Command{Verb: verb}
	}

	if len(tokens) != 3 {
		return Command{}
	}

	x, ok := parseCoordinate(tokens[1])
	if !ok {
		return Command{}
	}

	y, ok := parseCoordinate(tokens[2])
	if !ok {
		return Command{}
	}

	return Command{Verb: verb, Point: location.Point{X: x, Y: y}}
}

// ParseBounded is Parse with the server's range policy: both coordinates must
// lie within [0, max].
func ParseBounded(s string, max int) Command {
	c := Parse(s)
	if c.Verb.TakesPoint() && (c.Point.X > max || c.Point.Y > max) {
		return Command{}
	}
	return c
}

func parseCoordinate(s string) (int, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}

	n, err := strconv.ParseInt(s, 10, 0)
	if err != nil {
		return 0, false
	}
	return int(n), true
}
