package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/daviddao/protodrill/pkg/eventlog"
	"github.com/daviddao/protodrill/pkg/model"
)

const (
	defaultDir = ".protodrill"
	defaultDB  = ".protodrill/protodrill.db"
	defaultLog = ".protodrill/protodrill.log"
)

// app holds shared state for all CLI subcommands.
type app struct {
	store   *eventlog.Store
	logPath string
	logger  zerolog.Logger
}

// newApp opens the event store and builds the diagnostic logger.
// Creates the .protodrill/ directory if using the default paths.
func newApp() (*app, error) {
	dbPath := envOr("PROTODRILL_DB", defaultDB)
	logPath := envOr("PROTODRILL_LOG", defaultLog)
	if dbPath == defaultDB || logPath == defaultLog {
		if err := os.MkdirAll(defaultDir, 0755); err != nil {
			return nil, fmt.Errorf("cannot create %s: %w", defaultDir, err)
		}
	}
	s, err := eventlog.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("cannot open event store %q: %w", dbPath, err)
	}

	level := zerolog.InfoLevel
	if os.Getenv("PROTODRILL_DEBUG") == "1" {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Logger()

	return &app{store: s, logPath: logPath, logger: logger}, nil
}

// Close releases the event store.
func (a *app) Close() { a.store.Close() }

// newRunSink registers a run and returns the combined event sink: the
// SQLite store (queryable history), the shared line-oriented log file
// (the append-only sink every node writes to), and a console echo.
func (a *app) newRunSink(scenario string) (*model.Run, eventlog.Sink, func(), error) {
	run, err := a.store.CreateRun(scenario)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create run: %w", err)
	}
	file, err := eventlog.OpenFile(a.logPath)
	if err != nil {
		return nil, nil, nil, err
	}
	sink := eventlog.Tee{a.store.SinkFor(run.ID), file, eventlog.LogSink{Log: a.logger}}
	cleanup := func() { file.Close() }
	return run, sink, cleanup, nil
}

// resolveRun returns the run named by id, or the latest run when id is
// empty.
func (a *app) resolveRun(id string) (*model.Run, error) {
	if id == "" {
		return a.store.LatestRun()
	}
	return a.store.GetRun(id)
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
