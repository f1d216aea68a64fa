package wifisim

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// legacy lab inputs: three routers in a line, each link declared from one
// side only, routes listed per link
var legacyTopoText = []byte(`3
1 2 11 [3]
2
3 2 5 [1]
`)

var legacyScenarioText = []byte(`c1 1 3
c2 3 2
`)

func TestReadLegacyTopo(t *testing.T) {
	tc, err := ReadLegacyTopo("topo.txt", legacyTopoText)
	require.NoError(t, err)

	require.Len(t, tc.Routers, 3)
	require.Equal(t, 1, tc.Routers[0].ID)
	require.Equal(t, 2, tc.Routers[1].ID)
	require.Equal(t, 3, tc.Routers[2].ID)

	require.Equal(t, []LinkDesc{{Peer: 2, Delay: 11, Routes: []int{3}}}, tc.Routers[0].Links)
	require.Empty(t, tc.Routers[1].Links)
	require.Equal(t, []LinkDesc{{Peer: 2, Delay: 5, Routes: []int{1}}}, tc.Routers[2].Links)
}

func TestReadLegacyTopoRejectsGarbage(t *testing.T) {
	_, err := ReadLegacyTopo("topo.txt", []byte("2\nrouter one\n"))
	require.Error(t, err)

	_, err = ReadLegacyTopo("topo.txt", []byte("0\n"))
	require.Error(t, err)
}

func TestReadLegacyScenario(t *testing.T) {
	sc, err := ReadLegacyScenario("scenario.txt", legacyScenarioText)
	require.NoError(t, err)

	require.Equal(t, []PcktDesc{
		{Connection: "c1", Src: 1, Dst: 3},
		{Connection: "c2", Src: 3, Dst: 2},
	}, sc.Pckts)

	_, err = ReadLegacyScenario("scenario.txt", []byte("c1 1\n"))
	require.Error(t, err)

	_, err = ReadLegacyScenario("scenario.txt", []byte("c1 one 3\n"))
	require.Error(t, err)
}

func TestBuildTopoWiresBothDirections(t *testing.T) {
	tc, err := ReadLegacyTopo("topo.txt", legacyTopoText)
	require.NoError(t, err)

	tm := CreateTraceManager("test", false)
	tm.SetStream(new(bytes.Buffer))

	routers, err := BuildTopo(tc, tm)
	require.NoError(t, err)
	require.Len(t, routers, 3)

	r1, r2, r3 := routers[0], routers[1], routers[2]

	// declared direction and the supplied reverse carry the same delay
	d, ok := r1.LinkDelay(r2)
	require.True(t, ok)
	require.Equal(t, 11, d)
	d, ok = r2.LinkDelay(r1)
	require.True(t, ok)
	require.Equal(t, 11, d)
	d, ok = r2.LinkDelay(r3)
	require.True(t, ok)
	require.Equal(t, 5, d)

	// route entries land only where declared
	require.Equal(t, r2, r1.RouteFor(r3))
	require.Equal(t, r2, r3.RouteFor(r1))
	require.Nil(t, r2.routes[r1])

	// default names registered with the trace manager
	require.Equal(t, "rtr-1", r1.Name())
	require.Equal(t, NameType{Name: "rtr-2", Type: "router"}, tm.NameByID[2])
}

func TestBuildTopoValidation(t *testing.T) {
	dupIDs := &TopoCfg{Routers: []RouterDesc{{ID: 1}, {ID: 1}}}
	_, err := BuildTopo(dupIDs, nil)
	require.ErrorContains(t, err, "declared twice")

	unknownPeer := &TopoCfg{Routers: []RouterDesc{
		{ID: 1, Links: []LinkDesc{{Peer: 9, Delay: 1}}},
	}}
	_, err = BuildTopo(unknownPeer, nil)
	require.ErrorContains(t, err, "unknown router")

	selfLink := &TopoCfg{Routers: []RouterDesc{
		{ID: 1, Links: []LinkDesc{{Peer: 1, Delay: 1}}},
	}}
	_, err = BuildTopo(selfLink, nil)
	require.ErrorContains(t, err, "linked to itself")

	zeroDelay := &TopoCfg{Routers: []RouterDesc{
		{ID: 1, Links: []LinkDesc{{Peer: 2, Delay: 0}}},
		{ID: 2},
	}}
	_, err = BuildTopo(zeroDelay, nil)
	require.ErrorContains(t, err, "non-positive delay")

	asymmetric := &TopoCfg{Routers: []RouterDesc{
		{ID: 1, Links: []LinkDesc{{Peer: 2, Delay: 3}}},
		{ID: 2, Links: []LinkDesc{{Peer: 1, Delay: 4}}},
	}}
	_, err = BuildTopo(asymmetric, nil)
	require.ErrorContains(t, err, "asymmetric delays")

	selfRoute := &TopoCfg{Routers: []RouterDesc{
		{ID: 1, Links: []LinkDesc{{Peer: 2, Delay: 3, Routes: []int{1}}}},
		{ID: 2},
	}}
	_, err = BuildTopo(selfRoute, nil)
	require.ErrorContains(t, err, "routed to itself")

	unknownRoute := &TopoCfg{Routers: []RouterDesc{
		{ID: 1, Links: []LinkDesc{{Peer: 2, Delay: 3, Routes: []int{9}}}},
		{ID: 2},
	}}
	_, err = BuildTopo(unknownRoute, nil)
	require.ErrorContains(t, err, "routes to unknown router")
}

func TestBuildTopoMatchingRedeclaration(t *testing.T) {
	// both sides may declare the link when the delays agree
	tc := &TopoCfg{Routers: []RouterDesc{
		{ID: 1, Links: []LinkDesc{{Peer: 2, Delay: 3}}},
		{ID: 2, Links: []LinkDesc{{Peer: 1, Delay: 3}}},
	}}
	routers, err := BuildTopo(tc, nil)
	require.NoError(t, err)

	d, ok := routers[0].LinkDelay(routers[1])
	require.True(t, ok)
	require.Equal(t, 3, d)
}

func TestBuildScenarioUnknownRouters(t *testing.T) {
	routers := []*Router{CreateRouter(1, "r1"), CreateRouter(2, "r2")}

	pckts, err := BuildScenario(&ScenarioCfg{Pckts: []PcktDesc{{Connection: "c1", Src: 1, Dst: 2}}}, routers)
	require.NoError(t, err)
	require.Len(t, pckts, 1)
	require.Equal(t, routers[0], pckts[0].Src())
	require.Equal(t, routers[1], pckts[0].Dst())

	_, err = BuildScenario(&ScenarioCfg{Pckts: []PcktDesc{{Connection: "c1", Src: 9, Dst: 2}}}, routers)
	require.ErrorContains(t, err, "unknown router")

	_, err = BuildScenario(&ScenarioCfg{Pckts: []PcktDesc{{Connection: "c1", Src: 1, Dst: 9}}}, routers)
	require.ErrorContains(t, err, "unknown router")
}

func TestExpCfgParams(t *testing.T) {
	xc := DefaultExpCfg("x")
	prms, err := xc.Params()
	require.NoError(t, err)
	require.Equal(t, NetParams{NghbrDelay: 1, DistantDelay: 2, DropProb: 0.05}, prms)

	xc.DropProb = 1.5
	_, err = xc.Params()
	require.ErrorContains(t, err, "drop probability")

	xc.DropProb = 0.0
	xc.NghbrDelay = -1
	_, err = xc.Params()
	require.ErrorContains(t, err, "neighbour lookup delay")

	xc.NghbrDelay = 0
	xc.TickLimit = -1
	_, err = xc.Params()
	require.ErrorContains(t, err, "tick limit")
}

func TestReadTopoCfgYAML(t *testing.T) {
	dict := []byte(`
name: line
routers:
  - id: 1
    links:
      - peer: 2
        delay: 11
        routes: [3]
  - id: 2
  - id: 3
    links:
      - peer: 2
        delay: 5
        routes: [1]
`)
	tc, err := ReadTopoCfg("topo.yaml", true, dict)
	require.NoError(t, err)
	require.Equal(t, "line", tc.Name)
	require.Len(t, tc.Routers, 3)
	require.Equal(t, []LinkDesc{{Peer: 2, Delay: 11, Routes: []int{3}}}, tc.Routers[0].Links)
}

func TestReadExpCfgJSON(t *testing.T) {
	dict := []byte(`{"name":"x","nghbrdelay":2,"distantdelay":4,"dropprob":0.1,"ticklimit":100}`)
	xc, err := ReadExpCfg("exp.json", false, dict)
	require.NoError(t, err)
	require.Equal(t, &ExpCfg{Name: "x", NghbrDelay: 2, DistantDelay: 4, DropProb: 0.1, TickLimit: 100}, xc)
}

func TestReportErrs(t *testing.T) {
	require.NoError(t, ReportErrs(nil))
	require.NoError(t, ReportErrs([]error{nil, nil}))

	err := ReportErrs([]error{nil, errors.New("one"), errors.New("two")})
	require.EqualError(t, err, "one,two")
}
