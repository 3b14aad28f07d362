// Package logging wires up dagsim's two loggers: logrus for one-shot CLI
// lifecycle messages (startup banner, final shutdown), zerolog for the
// dense per-event simulation log.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
)

// NewCLILogger returns the logrus logger used for process-lifecycle
// messages (config loaded, run starting, run finished).
func NewCLILogger(verbose bool) *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

// NewEventLogger returns the zerolog logger the scheduler and every
// executor log through. Its console writer renders the
// "HH:MM:SS [component]     message" stdout format, with the timestamp
// sourced from virtual simulation time rather than the wall clock — so
// clock is the kernel's Now() at the moment each event is logged, supplied
// by the caller installing VirtualClock once before the first event is
// logged; the hook is left in place afterwards.
func NewEventLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	cw := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    w != os.Stdout,
		TimeFormat: "15:04:05",
		PartsOrder: []string{
			zerolog.TimestampFieldName,
			"component",
			zerolog.MessageFieldName,
		},
		FieldsExclude: []string{"component"},
		FormatPartValueByName: func(i interface{}, name string) string {
			if name == "component" {
				return fmt.Sprintf("[%v]", i)
			}
			return fmt.Sprintf("%v", i)
		},
		// Virtual timestamps are an offset from the simulation epoch, not a
		// wall-clock instant: render them in UTC so the local timezone
		// never shifts the HH:MM:SS line.
		FormatTimestamp: func(i interface{}) string {
			switch ts := i.(type) {
			case json.Number:
				secs, err := ts.Int64()
				if err != nil {
					return ts.String()
				}
				return time.Unix(secs, 0).UTC().Format("15:04:05")
			case string:
				t, err := time.Parse(zerolog.TimeFieldFormat, ts)
				if err != nil {
					return ts
				}
				return t.UTC().Format("15:04:05")
			default:
				return ""
			}
		},
		FormatLevel: func(interface{}) string { return "" },
		FormatFieldName: func(i interface{}) string {
			return color.New(color.Faint).Sprintf("%v=", i)
		},
	}
	return zerolog.New(cw).Level(level).With().Timestamp().Logger()
}

// VirtualClock drives zerolog's global TimestampFunc from a simulation's
// virtual-time source. It must be installed once, before any event logging
// happens, since zerolog.TimestampFunc is a package-level hook.
func VirtualClock(now func() time.Duration) {
	epoch := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	zerolog.TimestampFunc = func() time.Time {
		return epoch.Add(now())
	}
}

// Banner renders the startup banner.
func Banner(version string) string {
	return color.New(color.FgHiCyan, color.Bold).Sprintf("dagsim %s", version) +
		color.New(color.Faint).Sprint(" — discrete-event DAG execution simulator")
}

// ReportLine renders the final {utilization, runtime} JSON line.
func ReportLine(json string) string {
	return color.New(color.FgHiGreen).Sprint(json)
}
