package wifisim

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// buildLine wires the n-router line r[0] - r[1] - ... - r[n-1] with unit
// link delays and empty route tables
func buildLine(t *testing.T, n int) []*Router {
	t.Helper()

	routers := make([]*Router, 0, n)
	for i := 0; i < n; i++ {
		routers = append(routers, CreateRouter(i+1, ""))
	}
	for i := 0; i < n-1; i++ {
		require.NoError(t, routers[i].AddConnection(routers[i+1], 1, nil))
		require.NoError(t, routers[i+1].AddConnection(routers[i], 1, nil))
	}
	return routers
}

func TestCheckRoutesAccepts(t *testing.T) {
	routers := buildLine(t, 3)
	r1, r2, r3 := routers[0], routers[1], routers[2]

	r1.routes[r3] = r2
	r3.routes[r1] = r2

	require.NoError(t, checkRoutes(routers))
}

func TestCheckRoutesRejectsNonNeighborHop(t *testing.T) {
	routers := buildLine(t, 3)
	r1, r3 := routers[0], routers[2]

	// next hop two links away
	r1.routes[r3] = r3

	require.ErrorContains(t, checkRoutes(routers), "not a neighbor")
}

func TestCheckRoutesRejectsUnreachable(t *testing.T) {
	routers := buildLine(t, 2)
	r1, r2 := routers[0], routers[1]
	island := CreateRouter(9, "island")
	routers = append(routers, island)

	r1.routes[island] = r2

	require.ErrorContains(t, checkRoutes(routers), "unreachable")
}

func TestDeriveRoutesFillsMissingEntries(t *testing.T) {
	routers := buildLine(t, 4)
	r1, r2, r3, r4 := routers[0], routers[1], routers[2], routers[3]

	DeriveRoutes(routers)

	// distant destinations route one hop down the line
	require.Equal(t, r2, r1.routes[r3])
	require.Equal(t, r2, r1.routes[r4])
	require.Equal(t, r3, r4.routes[r2])
	require.Equal(t, r3, r4.routes[r1])
	require.Equal(t, r2, r3.routes[r1])

	// direct neighbors are left to the adjacency fallback
	require.NotContains(t, r1.routes, r2)
	require.NotContains(t, r2.routes, r1)
	require.NotContains(t, r2.routes, r3)

	// derived tables pass validation
	require.NoError(t, checkRoutes(routers))
}

func TestDeriveRoutesKeepsExplicitEntries(t *testing.T) {
	// a ring, so two next hops exist for the far node
	routers := buildLine(t, 4)
	r1, r2, r4 := routers[0], routers[1], routers[3]
	require.NoError(t, r4.AddConnection(r1, 1, nil))
	require.NoError(t, r1.AddConnection(r4, 1, nil))

	// force the long way around to r3
	r1.routes[routers[2]] = r2

	DeriveRoutes(routers)
	require.Equal(t, r2, r1.routes[routers[2]])
}

func TestDeriveRoutesSkipsUnreachable(t *testing.T) {
	routers := buildLine(t, 2)
	island := CreateRouter(9, "island")
	routers = append(routers, island)

	DeriveRoutes(routers)

	require.NotContains(t, routers[0].routes, island)
	require.NotContains(t, island.routes, routers[0])
}

func TestRouteFromBothTreeRoots(t *testing.T) {
	routers := buildLine(t, 3)
	tg := buildTopoGraph(routers)

	require.Equal(t, []int{1, 2, 3}, tg.routeFrom(1, 3))

	// with the tree rooted in 1 now cached, the reverse query is read
	// from it by reversal
	require.Equal(t, []int{3, 2, 1}, tg.routeFrom(3, 1))
	require.Len(t, tg.cachedSP, 1)
}
