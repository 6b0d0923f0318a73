package xltable

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Version is reported in the marker event when a Reporter is created
// without an explicit version.
var Version = "dev"

// Severity is the severity of a diagnostic event.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityError Severity = "error"
)

// Event is a diagnostic event emitted during a run.
type Event struct {
	Severity Severity       `json:"severity"`
	Message  string         `json:"message"`
	Fields   map[string]any `json:"fields,omitempty"`
}

// Reporter is the diagnostics channel. It writes events to a slog logger and
// emits the version marker once over its lifetime. A Reporter is safe for
// concurrent runs.
type Reporter struct {
	logger  *slog.Logger
	version string
	verbose bool
	marker  sync.Once
}

// NewReporter creates a Reporter. When verbose is false only the version
// marker and errors are emitted.
func NewReporter(logger *slog.Logger, version string, verbose bool) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	if version == "" {
		version = Version
	}
	return &Reporter{logger: logger, version: version, verbose: verbose}
}

// Verbose reports whether informational events are emitted.
func (r *Reporter) Verbose() bool {
	return r.verbose
}

// run is the state of one extraction run. It is created at the start of a
// run and threaded through every step.
type run struct {
	id     string
	rep    *Reporter
	logger *slog.Logger
	events []Event
}

// newRun starts a run logging to logger, or to the Reporter's logger when
// logger is nil.
func (r *Reporter) newRun(logger *slog.Logger) *run {
	if logger == nil {
		logger = r.logger
	}
	id := uuid.New().String()
	return &run{
		id:     id,
		rep:    r,
		logger: logger.With("run_id", id),
	}
}

// Info emits an informational event. It implements parser.Tracer.
func (rn *run) Info(msg string, args ...any) {
	rn.emitMarker()
	if !rn.rep.verbose {
		return
	}
	rn.emit(SeverityInfo, msg, args)
}

// Error emits an error event.
func (rn *run) Error(msg string, args ...any) {
	rn.emitMarker()
	rn.emit(SeverityError, msg, args)
}

// fail reports err and returns it classified. Report-then-abort happens here
// and nowhere else.
func (rn *run) fail(err error) *ExtractionError {
	ee := classify(err)
	args := []any{"kind", string(ee.Kind)}
	if ee.Sheet != "" {
		args = append(args, "sheet", ee.Sheet)
	}
	if ee.Row > 0 {
		args = append(args, "row", ee.Row)
	}
	if ee.Column != "" {
		args = append(args, "column", ee.Column)
	}
	rn.Error(ee.Err.Error(), args...)
	return ee
}

func (rn *run) emitMarker() {
	rn.rep.marker.Do(func() {
		rn.emit(SeverityInfo, fmt.Sprintf("Excel table source (%s) running.", rn.rep.version), nil)
	})
}

func (rn *run) emit(sev Severity, msg string, args []any) {
	level := slog.LevelInfo
	if sev == SeverityError {
		level = slog.LevelError
	}
	rn.logger.Log(context.Background(), level, msg, args...)

	ev := Event{Severity: sev, Message: msg}
	if len(args) > 0 {
		ev.Fields = make(map[string]any, len(args)/2)
		for i := 0; i+1 < len(args); i += 2 {
			ev.Fields[fmt.Sprint(args[i])] = args[i+1]
		}
	}
	rn.events = append(rn.events, ev)
}
