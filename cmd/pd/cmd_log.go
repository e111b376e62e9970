package main

import (
	"flag"
	"fmt"
)

// cmdLog prints a run's events in append order.
func (a *app) cmdLog(args []string) int {
	fs := flag.NewFlagSet("log", flag.ExitOnError)
	runID := fs.String("run", "", "run ID (default: latest run)")
	limit := fs.Int("limit", 0, "max events to print (default: all)")
	jsonOut := fs.Bool("json", false, "machine-readable output")
	fs.Parse(args)

	run, err := a.resolveRun(*runID)
	if err != nil {
		a.logger.Error().Err(err).Msg("cannot resolve run")
		return 1
	}
	events, err := a.store.ListEvents(run.ID, *limit)
	if err != nil {
		a.logger.Error().Err(err).Msg("cannot list events")
		return 1
	}

	if *jsonOut {
		printJSON(events)
		return 0
	}
	fmt.Printf("run %s (%s, started %s, %d events)\n",
		run.ID, run.Scenario, run.StartedAt.Format("2006-01-02 15:04:05"), len(events))
	for _, e := range events {
		line := fmt.Sprintf("[%d] [Node %d] %s", e.CreatedAt.Unix(), e.NodeID, e.Detail)
		if e.Resource != "" {
			line += fmt.Sprintf(" (resource=%s)", e.Resource)
		}
		fmt.Println(line)
	}
	return 0
}
