package internal

import (
	"fmt"
	"io"
	"os"

	"github.com/inconshreveable/log15"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

var formats = map[string]func() log15.Format{
	"auto":     nil,
	"terminal": log15.TerminalFormat,
	"logfmt":   log15.LogfmtFormat,
	"json":     log15.JsonFormat,
}

// NewLogger builds a logger writing to w.  The "auto" format picks colored
// terminal output when w is a terminal and logfmt otherwise.
func NewLogger(w io.Writer, level, format string) (log15.Logger, error) {
	lvl, err := log15.LvlFromString(level)
	if err != nil {
		return nil, err
	}

	newFormat, ok := formats[format]
	if !ok {
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	if newFormat == nil {
		newFormat = log15.LogfmtFormat
		if f, ok := w.(*os.File); ok && isTerminal(f) {
			newFormat = log15.TerminalFormat
			w = colorable.NewColorable(f)
		}
	}

	handler := log15.StreamHandler(w, newFormat())
	if lvl == log15.LvlDebug {
		handler = log15.CallerFileHandler(handler)
	}

	logger := log15.New()
	logger.SetHandler(log15.LvlFilterHandler(lvl, handler))
	return logger, nil
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() log15.Logger {
	logger := log15.New()
	logger.SetHandler(log15.DiscardHandler())
	return logger
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
