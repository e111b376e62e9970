package main

import (
	"flag"
	"fmt"
	"sort"
	"time"

	"github.com/daviddao/protodrill/pkg/model"
	"github.com/daviddao/protodrill/pkg/scenario"
	"github.com/daviddao/protodrill/pkg/transport"
)

// cmdByzantine runs scenario A: three nodes, node 0 is the commander
// and orders ATTACK everywhere, node 2 inverts what it relays. The
// honest lieutenant should decide ATTACK on a 2-to-1 tally.
func (a *app) cmdByzantine(args []string) int {
	fs := flag.NewFlagSet("byzantine", flag.ExitOnError)
	port := fs.Int("port", 8000, "base port; nodes bind consecutive ports")
	inproc := fs.Bool("inproc", false, "run over the in-memory network instead of HTTP")
	settle := fs.Duration("settle", 0, "decision settling delay (default 500ms)")
	jsonOut := fs.Bool("json", false, "machine-readable output")
	fs.Parse(args)

	bc := scenario.DefaultByzantine(*port)
	bc.Logger = a.logger
	bc.SettleDelay = *settle

	if *inproc {
		network := transport.NewNetwork()
		bc.Peers = scenario.MemoryTopology(len(bc.Peers))
		bc.Network = network
		bc.Transport = network
	} else {
		bc.Transport = transport.NewHTTP(5 * time.Second)
	}

	run, sink, cleanup, err := a.newRunSink(scenario.NameByzantine)
	if err != nil {
		a.logger.Error().Err(err).Msg("setup failed")
		return 1
	}
	defer cleanup()
	bc.Events = sink

	a.logger.Info().Str("run", run.ID).Msg("starting byzantine scenario")
	result, err := scenario.RunByzantine(bc)
	if err != nil {
		a.logger.Error().Err(err).Msg("scenario failed")
		return 1
	}

	if *jsonOut {
		printJSON(struct {
			RunID  string                    `json:"run_id"`
			Result *scenario.ByzantineResult `json:"result"`
		}{run.ID, result})
		return 0
	}
	fmt.Printf("run %s\n", run.ID)
	ids := make([]model.NodeID, 0, len(result.Decisions))
	for id := range result.Decisions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fmt.Printf("node %d decided %s\n", id, result.Decisions[id])
	}
	for _, id := range result.NoDecision {
		fmt.Printf("node %d reached no decision\n", id)
	}
	return 0
}
