package wifisim

// desc-topo.go holds the serializable descriptions of a simulation model
// (topology, scenario, and experiment parameters), readers and writers for
// them, and the construction of run-time routers from their descriptions.
//
// To most easily serialize and deserialize the structs a model is built
// from, all of them are completely described without pointers; the run-time
// representations built from them (Router, Pckt, Network) hold the
// pointers.  Serialization to json or to yaml is selected based on the
// extension of the file name involved.

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// A LinkDesc describes one direction of a link as seen from the router
// holding it: the peer reached, the link delay, and the route-table
// destinations reached by forwarding to that peer.  A link may be declared
// from either or both sides; the loader wires the reverse direction when
// only one side declares it, and requires matching delays when both do.
type LinkDesc struct {
	Peer   int   `json:"peer" yaml:"peer"`
	Delay  int   `json:"delay" yaml:"delay"`
	Routes []int `json:"routes" yaml:"routes"`
}

// A RouterDesc describes one router: its unique integer id, an optional
// display name, and its declared links
type RouterDesc struct {
	Name  string     `json:"name" yaml:"name"`
	ID    int        `json:"id" yaml:"id"`
	Links []LinkDesc `json:"links" yaml:"links"`
}

// A TopoCfg is the serializable description of the whole router graph.
// Router order in the list fixes the stable iteration order of the run.
type TopoCfg struct {
	Name    string       `json:"name" yaml:"name"`
	Routers []RouterDesc `json:"routers" yaml:"routers"`
}

// A PcktDesc describes one scenario packet: its connection tag and the ids
// of the source and destination routers
type PcktDesc struct {
	Connection string `json:"conn" yaml:"conn"`
	Src        int    `json:"src" yaml:"src"`
	Dst        int    `json:"dest" yaml:"dest"`
}

// A ScenarioCfg is the serializable description of the initial packet set
type ScenarioCfg struct {
	Name  string     `json:"name" yaml:"name"`
	Pckts []PcktDesc `json:"pckts" yaml:"pckts"`
}

// An ExpCfg carries the experiment parameters of a run.  Values are taken
// literally; start from DefaultExpCfg to get the original model's values.
type ExpCfg struct {
	Name         string  `json:"name" yaml:"name"`
	NghbrDelay   int     `json:"nghbrdelay" yaml:"nghbrdelay"`
	DistantDelay int     `json:"distantdelay" yaml:"distantdelay"`
	DropProb     float64 `json:"dropprob" yaml:"dropprob"`
	RngSeed      uint64  `json:"rngseed" yaml:"rngseed"`
	TickLimit    int     `json:"ticklimit" yaml:"ticklimit"`
	Trace        bool    `json:"trace" yaml:"trace"`
}

// DefaultExpCfg is a constructor giving the parameter values of the
// original lab model
func DefaultExpCfg(name string) *ExpCfg {
	xc := new(ExpCfg)
	xc.Name = name
	xc.NghbrDelay = 1
	xc.DistantDelay = 2
	xc.DropProb = 0.05
	return xc
}

// Params converts the experiment description into the run-time parameter
// block handed to CreateNetwork, validating the ranges first
func (xc *ExpCfg) Params() (NetParams, error) {
	errList := []error{}
	if xc.NghbrDelay < 0 {
		errList = append(errList, fmt.Errorf("negative neighbour lookup delay %d", xc.NghbrDelay))
	}
	if xc.DistantDelay < 0 {
		errList = append(errList, fmt.Errorf("negative distant lookup delay %d", xc.DistantDelay))
	}
	if xc.DropProb < 0.0 || xc.DropProb > 1.0 {
		errList = append(errList, fmt.Errorf("drop probability %f outside [0,1]", xc.DropProb))
	}
	if xc.TickLimit < 0 {
		errList = append(errList, fmt.Errorf("negative tick limit %d", xc.TickLimit))
	}

	prms := NetParams{NghbrDelay: xc.NghbrDelay, DistantDelay: xc.DistantDelay,
		DropProb: xc.DropProb, TickLimit: xc.TickLimit, Trace: xc.Trace}
	return prms, ReportErrs(errList)
}

// writeCfgFile serializes any of the desc structs to the named file,
// json or yaml by extension
func writeCfgFile(filename string, cfg any) error {
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error = nil

	if pathExt == ".yaml" || pathExt == ".YAML" || pathExt == ".yml" {
		bytes, merr = yaml.Marshal(cfg)
	} else if pathExt == ".json" || pathExt == ".JSON" {
		bytes, merr = json.MarshalIndent(cfg, "", "\t")
	}

	if merr != nil {
		panic(merr)
	}

	f, cerr := os.Create(filename)
	if cerr != nil {
		panic(cerr)
	}
	_, werr := f.WriteString(string(bytes[:]))
	if werr != nil {
		panic(werr)
	}
	f.Close()

	return werr
}

// WriteToFile stores the TopoCfg struct to the file whose name is given
func (tc *TopoCfg) WriteToFile(filename string) error {
	return writeCfgFile(filename, *tc)
}

// WriteToFile stores the ScenarioCfg struct to the file whose name is given
func (sc *ScenarioCfg) WriteToFile(filename string) error {
	return writeCfgFile(filename, *sc)
}

// WriteToFile stores the ExpCfg struct to the file whose name is given
func (xc *ExpCfg) WriteToFile(filename string) error {
	return writeCfgFile(filename, *xc)
}

// readCfgBytes returns the bytes to deserialize: the dict argument when
// non-empty, otherwise the contents of the named file
func readCfgBytes(filename string, dict []byte) ([]byte, error) {
	if len(dict) > 0 {
		return dict, nil
	}
	return os.ReadFile(filename)
}

// ReadTopoCfg deserializes a byte slice holding a representation of a TopoCfg struct.
// If the input argument of dict (those bytes) is empty, the file whose name is given
// is read to acquire them.
func ReadTopoCfg(filename string, useYAML bool, dict []byte) (*TopoCfg, error) {
	dict, err := readCfgBytes(filename, dict)
	if err != nil {
		return nil, err
	}

	example := TopoCfg{}
	if useYAML {
		err = yaml.Unmarshal(dict, &example)
	} else {
		err = json.Unmarshal(dict, &example)
	}

	if err != nil {
		return nil, err
	}

	return &example, nil
}

// ReadScenarioCfg deserializes a byte slice holding a representation of a
// ScenarioCfg struct, reading the named file when the slice is empty
func ReadScenarioCfg(filename string, useYAML bool, dict []byte) (*ScenarioCfg, error) {
	dict, err := readCfgBytes(filename, dict)
	if err != nil {
		return nil, err
	}

	example := ScenarioCfg{}
	if useYAML {
		err = yaml.Unmarshal(dict, &example)
	} else {
		err = json.Unmarshal(dict, &example)
	}

	if err != nil {
		return nil, err
	}

	return &example, nil
}

// ReadExpCfg deserializes a byte slice holding a representation of an
// ExpCfg struct, reading the named file when the slice is empty
func ReadExpCfg(filename string, useYAML bool, dict []byte) (*ExpCfg, error) {
	dict, err := readCfgBytes(filename, dict)
	if err != nil {
		return nil, err
	}

	example := ExpCfg{}
	if useYAML {
		err = yaml.Unmarshal(dict, &example)
	} else {
		err = json.Unmarshal(dict, &example)
	}

	if err != nil {
		return nil, err
	}

	return &example, nil
}

// legacy whitespace formats of the original lab files.  A topology line is
//	<router> <nbr> <delay> [<routes...>] <nbr> <delay> [<routes...>] ...
// preceded by a count line, and a scenario line is
//	<connection> <src> <dest>

var legacyNodeRE = regexp.MustCompile(`^[0-9]+`)
var legacyLinkRE = regexp.MustCompile(`([0-9]+) ([0-9]+) \[([0-9 ]*)\]`)
var legacyIntRE = regexp.MustCompile(`[0-9]+`)

// ReadLegacyTopo parses the legacy topology format into a TopoCfg.
// Links appear once, on the line of one of their endpoint routers; the
// reverse direction is supplied by BuildTopo.
func ReadLegacyTopo(filename string, dict []byte) (*TopoCfg, error) {
	dict, err := readCfgBytes(filename, dict)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(strings.TrimSpace(string(dict)), "\n")
	if len(lines) < 2 {
		return nil, fmt.Errorf("legacy topology %s has no router lines", filename)
	}
	// leading line carries the router count, unused beyond its presence
	lines = lines[1:]

	tc := new(TopoCfg)
	tc.Name = filename
	tc.Routers = make([]RouterDesc, 0)
	seen := make(map[int]int) // router id -> index in tc.Routers

	// one pass declares every router id in order of first appearance
	for _, line := range lines {
		m := legacyNodeRE.FindString(line)
		if m == "" {
			return nil, fmt.Errorf("legacy topology line %q has no router id", line)
		}
		id, _ := strconv.Atoi(m)
		if _, present := seen[id]; !present {
			seen[id] = len(tc.Routers)
			tc.Routers = append(tc.Routers, RouterDesc{ID: id, Links: make([]LinkDesc, 0)})
		}
	}

	// a second pass attaches the links and their route lists
	for _, line := range lines {
		id, _ := strconv.Atoi(legacyNodeRE.FindString(line))
		idx := seen[id]

		for _, grp := range legacyLinkRE.FindAllStringSubmatch(line, -1) {
			nbr, _ := strconv.Atoi(grp[1])
			delay, _ := strconv.Atoi(grp[2])

			routes := make([]int, 0)
			for _, rt := range legacyIntRE.FindAllString(grp[3], -1) {
				dst, _ := strconv.Atoi(rt)
				routes = append(routes, dst)
			}

			tc.Routers[idx].Links = append(tc.Routers[idx].Links,
				LinkDesc{Peer: nbr, Delay: delay, Routes: routes})
		}
	}

	return tc, nil
}

// ReadLegacyScenario parses the legacy scenario format into a ScenarioCfg
func ReadLegacyScenario(filename string, dict []byte) (*ScenarioCfg, error) {
	dict, err := readCfgBytes(filename, dict)
	if err != nil {
		return nil, err
	}

	sc := new(ScenarioCfg)
	sc.Name = filename
	sc.Pckts = make([]PcktDesc, 0)

	for _, line := range strings.Split(strings.TrimSpace(string(dict)), "\n") {
		line = strings.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("legacy scenario line %q is not '<conn> <src> <dest>'", line)
		}
		src, serr := strconv.Atoi(fields[1])
		dst, derr := strconv.Atoi(fields[2])
		if serr != nil || derr != nil {
			return nil, fmt.Errorf("legacy scenario line %q has non-numeric router ids", line)
		}
		sc.Pckts = append(sc.Pckts, PcktDesc{Connection: fields[0], Src: src, Dst: dst})
	}

	return sc, nil
}

// intPair is a key type for directed id pairs
type intPair struct {
	i, j int
}

// BuildTopo creates the run-time routers from a topology description,
// wires both directions of every declared link, registers the router names
// with the trace manager, and validates the structure: unique ids, no self
// links or routes, positive delays, matching delays when both sides declare
// a link, and no link or route naming a router absent from the graph.
// All violations fold into the single returned error.
func BuildTopo(tc *TopoCfg, tm *TraceManager) ([]*Router, error) {
	errList := []error{}

	routers := make([]*Router, 0, len(tc.Routers))
	byID := make(map[int]*Router)

	for _, rd := range tc.Routers {
		_, present := byID[rd.ID]
		if present {
			errList = append(errList, fmt.Errorf("router id %d declared twice", rd.ID))
			continue
		}

		name := rd.Name
		if len(name) == 0 {
			name = fmt.Sprintf("rtr-%d", rd.ID)
		}

		rtr := CreateRouter(rd.ID, name)
		byID[rd.ID] = rtr
		routers = append(routers, rtr)

		if tm != nil {
			tm.AddName(rd.ID, name, "router")
		}
	}

	// gather the declared directed delays to detect asymmetric declarations
	declared := make(map[intPair]int)

	for _, rd := range tc.Routers {
		rtr, present := byID[rd.ID]
		if !present {
			continue
		}

		for _, ld := range rd.Links {
			peer, present := byID[ld.Peer]
			if !present {
				errList = append(errList, fmt.Errorf("router %d links to unknown router %d", rd.ID, ld.Peer))
				continue
			}

			fwd := intPair{i: rd.ID, j: ld.Peer}
			prev, dup := declared[fwd]
			if dup && prev != ld.Delay {
				errList = append(errList, fmt.Errorf("link %d-%d declared twice with delays %d and %d",
					rd.ID, ld.Peer, prev, ld.Delay))
				continue
			}
			declared[fwd] = ld.Delay

			rev, present := declared[intPair{i: ld.Peer, j: rd.ID}]
			if present && rev != ld.Delay {
				errList = append(errList, fmt.Errorf("asymmetric delays on link %d-%d: %d vs %d",
					rd.ID, ld.Peer, ld.Delay, rev))
			}

			routeRtrs := make([]*Router, 0, len(ld.Routes))
			for _, dstID := range ld.Routes {
				dst, present := byID[dstID]
				if !present {
					errList = append(errList, fmt.Errorf("router %d routes to unknown router %d", rd.ID, dstID))
					continue
				}
				routeRtrs = append(routeRtrs, dst)
			}

			errList = append(errList, rtr.AddConnection(peer, ld.Delay, routeRtrs))
		}
	}

	// supply the reverse of every link declared from one side only
	for pair, delay := range declared {
		_, present := declared[intPair{i: pair.j, j: pair.i}]
		if present {
			continue
		}
		errList = append(errList, byID[pair.j].AddConnection(byID[pair.i], delay, nil))
	}

	return routers, ReportErrs(errList)
}

// BuildScenario creates the initial packet set from a scenario description,
// resolving the router ids against the routers built by BuildTopo
func BuildScenario(sc *ScenarioCfg, routers []*Router) ([]*Pckt, error) {
	errList := []error{}

	byID := make(map[int]*Router)
	for _, rtr := range routers {
		byID[rtr.ID] = rtr
	}

	pckts := make([]*Pckt, 0, len(sc.Pckts))
	for _, pd := range sc.Pckts {
		src, present := byID[pd.Src]
		if !present {
			errList = append(errList, fmt.Errorf("packet %s sourced at unknown router %d", pd.Connection, pd.Src))
			continue
		}
		dst, present := byID[pd.Dst]
		if !present {
			errList = append(errList, fmt.Errorf("packet %s addressed to unknown router %d", pd.Connection, pd.Dst))
			continue
		}
		pckts = append(pckts, CreatePckt(pd.Connection, src, dst))
	}

	return pckts, ReportErrs(errList)
}

// ReportErrs transforms a list of errors and transforms the non-nil ones into a single error
// with comma-separated report of all the constituent errors, and returns it.
func ReportErrs(errs []error) error {
	err_msg := make([]string, 0)
	for _, err := range errs {
		if err != nil {
			err_msg = append(err_msg, err.Error())
		}
	}
	if len(err_msg) == 0 {
		return nil
	}

	return errors.New(strings.Join(err_msg, ","))
}
