package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/iti/evt/evtm"

	wifisim "github.com/mg6/dmas-lab-wifi"
)

func main() {
	topoFile := flag.String("topo", "topology.yaml", "topology input file (yaml or json by extension)")
	scenarioFile := flag.String("scenario", "scenario.yaml", "scenario input file (yaml or json by extension)")
	expFile := flag.String("exp", "", "experiment parameter file, defaults apply when absent")
	traceFile := flag.String("trace", "", "trace output file (yaml or json by extension)")
	legacy := flag.Bool("legacy", false, "read topo and scenario in the legacy whitespace format")
	autoroute := flag.Bool("autoroute", false, "derive missing route-table entries from shortest paths")
	rngseed := flag.Uint64("rngseed", 0, "rng master seed, overrides the experiment file when non-zero")
	flag.Parse()

	syn := make(map[string]string)
	syn["topo"] = *topoFile
	syn["scenario"] = *scenarioFile
	syn["exp"] = *expFile

	tm := wifisim.CreateTraceManager("wifisim", len(*traceFile) > 0)

	tc, sc, xc, err := wifisim.GetExperimentNetDicts(syn, *legacy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading model inputs failed: %s\n", err)
		os.Exit(1)
	}
	if *rngseed != 0 {
		xc.RngSeed = *rngseed
	}

	netw, err := wifisim.AssembleNet(tc, sc, xc, *autoroute, tm)
	if err != nil {
		fmt.Fprintf(os.Stderr, "model assembly failed: %s\n", err)
		os.Exit(1)
	}

	evtMgr := evtm.New()
	netw.Run(evtMgr)

	if !netw.Finished() {
		fmt.Fprintf(os.Stderr, "tick limit %d reached with packets still live\n", netw.Params().TickLimit)
	}

	if len(*traceFile) > 0 {
		tm.WriteToFile(*traceFile)
	}

	fmt.Fprintln(os.Stderr, wifisim.GatherStats(netw).Summary())
}
