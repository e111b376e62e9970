package main

import (
	"flag"
	"fmt"
)

// cmdRuns lists recorded runs, most recent first.
func (a *app) cmdRuns(args []string) int {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "machine-readable output")
	fs.Parse(args)

	runs, err := a.store.ListRuns()
	if err != nil {
		a.logger.Error().Err(err).Msg("cannot list runs")
		return 1
	}

	if *jsonOut {
		printJSON(runs)
		return 0
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return 0
	}
	for _, r := range runs {
		fmt.Printf("%s  %-10s  %s  (%d events)\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.Scenario, r.ID,
			a.store.CountEvents(r.ID))
	}
	return 0
}
