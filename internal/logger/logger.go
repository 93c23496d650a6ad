// Package logger configures the process-wide phuslu logger.
package logger

import (
	"io"
	"os"

	"github.com/phuslu/log"
)

// Setup installs the default logger. debug forces the debug level; an
// unknown level name falls back to info.
func Setup(level string, debug bool, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}

	lvl := log.ParseLevel(level)
	// ParseLevel maps unknown names past PanicLevel, which would silence everything
	if lvl > log.PanicLevel {
		lvl = log.InfoLevel
	}
	if debug {
		lvl = log.DebugLevel
	}

	log.DefaultLogger = log.Logger{
		Level:      lvl,
		TimeFormat: "15:04:05",
		Writer: &log.ConsoleWriter{
			Writer:         w,
			ColorOutput:    isTerminal(w),
			QuoteString:    true,
			EndWithMessage: true,
		},
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && log.IsTerminal(f.Fd())
}
