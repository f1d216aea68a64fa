package wifisim

// wifisim.go has code that assembles the simulation model from input files

import (
	"path"

	"github.com/iti/rngstream"
)

// GetExperimentNetDicts accepts a map that binds pre-defined keys referring
// to input file types ("topo", "scenario", "exp") with file names, creates
// internal representations of the information they hold, and returns those
// structs.  Topology and scenario files are deserialized as yaml or json
// according to their extensions, or through the legacy whitespace formats
// when the legacy flag is set.  The exp file may be absent, in which case
// the original model's parameter values apply.
func GetExperimentNetDicts(syn map[string]string, legacy bool) (*TopoCfg, *ScenarioCfg, *ExpCfg, error) {
	var tc *TopoCfg
	var sc *ScenarioCfg
	var xc *ExpCfg

	var empty []byte = make([]byte, 0)

	var errs []error
	var err error

	if legacy {
		tc, err = ReadLegacyTopo(syn["topo"], empty)
		errs = append(errs, err)

		sc, err = ReadLegacyScenario(syn["scenario"], empty)
		errs = append(errs, err)
	} else {
		ext := path.Ext(syn["topo"])
		useYAML := (ext == ".yaml") || (ext == ".yml")

		tc, err = ReadTopoCfg(syn["topo"], useYAML, empty)
		errs = append(errs, err)

		ext = path.Ext(syn["scenario"])
		useYAML = (ext == ".yaml") || (ext == ".yml")

		sc, err = ReadScenarioCfg(syn["scenario"], useYAML, empty)
		errs = append(errs, err)
	}

	if len(syn["exp"]) > 0 {
		ext := path.Ext(syn["exp"])
		useYAML := (ext == ".yaml") || (ext == ".yml")

		xc, err = ReadExpCfg(syn["exp"], useYAML, empty)
		errs = append(errs, err)
	} else {
		xc = DefaultExpCfg("default")
	}

	err = ReportErrs(errs)
	if err != nil {
		return nil, nil, nil, err
	}

	return tc, sc, xc, nil
}

// BuildExperimentNet assembles a runnable Network from the named input
// files: read the descriptions, then hand them to AssembleNet
func BuildExperimentNet(syn map[string]string, legacy bool, autoroute bool, tm *TraceManager) (*Network, error) {
	tc, sc, xc, err := GetExperimentNetDicts(syn, legacy)
	if err != nil {
		return nil, err
	}

	return AssembleNet(tc, sc, xc, autoroute, tm)
}

// AssembleNet builds and validates the router graph, optionally derives
// missing route-table entries, resolves the scenario packets, and wires
// everything into a Network.  The rng master seed is set from the
// experiment description before the network's stream is created, so loss
// draws are reproducible when a seed is configured.
func AssembleNet(tc *TopoCfg, sc *ScenarioCfg, xc *ExpCfg, autoroute bool, tm *TraceManager) (*Network, error) {
	prms, err := xc.Params()
	if err != nil {
		return nil, err
	}

	routers, err := BuildTopo(tc, tm)
	if err != nil {
		return nil, err
	}

	if autoroute {
		DeriveRoutes(routers)
	}

	err = checkRoutes(routers)
	if err != nil {
		return nil, err
	}

	pckts, err := BuildScenario(sc, routers)
	if err != nil {
		return nil, err
	}

	if xc.RngSeed != 0 {
		rngstream.SetRngStreamMasterSeed(xc.RngSeed)
	}

	name := xc.Name
	if len(name) == 0 {
		name = tc.Name
	}

	return CreateNetwork(name, routers, pckts, prms, tm), nil
}
