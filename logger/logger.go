// Package logger builds the zerolog logger shared by the CLI and the API client.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const (
	colorRed     = 31
	colorGreen   = 32
	colorYellow  = 33
	colorMagenta = 35

	colorBold = 1
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

type Options struct {
	// Level is a zerolog level name. Empty or invalid means info.
	Level string
	// Format is FormatConsole (default) or FormatJSON.
	Format string
	// Out defaults to os.Stderr.
	Out io.Writer
	// NoColor disables ANSI colors in console output.
	NoColor bool
}

// New returns a logger configured by opts. It does not touch zerolog globals.
func New(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	level := zerolog.InfoLevel
	if s := strings.TrimSpace(opts.Level); s != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(s)); err == nil {
			level = parsed
		} else {
			fmt.Fprintf(os.Stderr, "Invalid log level %q; defaulting to 'info'\n", s)
		}
	}

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case FormatJSON:
		return zerolog.New(out).Level(level).With().Timestamp().Logger()
	default:
		return zerolog.New(consoleWriter(out, opts.NoColor)).Level(level).With().Timestamp().Logger()
	}
}

func colorize(s any, c int, noColor bool) string {
	if noColor {
		return fmt.Sprintf("%v", s)
	}
	return fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, s)
}

func consoleWriter(out io.Writer, noColor bool) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    noColor,
		TimeFormat: "2006-01-02 15:04:05",
		FormatLevel: func(i any) string {
			ll, ok := i.(string)
			if !ok || ll == "" {
				return "???"
			}
			switch ll {
			case "trace":
				return colorize("TRC", colorMagenta, noColor)
			case "debug":
				return colorize("DBG", colorYellow, noColor)
			case "info":
				return colorize("INF", colorGreen, noColor)
			case "warn":
				return colorize("WRN", colorRed, noColor)
			case "error":
				return colorize("ERR", colorRed, noColor)
			case "fatal":
				return colorize("FTL", colorRed, noColor)
			case "panic":
				return colorize("PNC", colorRed, noColor)
			default:
				s := strings.ToUpper(ll)
				if len(s) > 3 {
					s = s[:3]
				}
				return colorize(s, colorBold, noColor)
			}
		},
	}
}
