package wifisim

// routes.go provides graph-backed checks of the static route tables, and an
// optional derivation of missing entries, both run before the first tick.
//
// The approach converts the router link graph into the data structures of a
// graph package with built-in path discovery.  Weighting each edge by 1, a
// shortest path minimizes the number of hops.  The Dijkstra algorithm
// computes a tree of shortest paths from a named node, so a path from src
// to dst is read from a tree rooted in src, or, by symmetry, from the
// reversed path out of a tree rooted in dst.  Trees are cached per root.

import (
	"fmt"
	"math"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// A topoGraph holds the graph-package representation of the link graph and
// the cache of shortest-path trees computed over it
type topoGraph struct {
	gNodes   map[int]simple.Node
	conn     graph.Graph
	cachedSP map[int]path.Shortest
}

// buildTopoGraph returns a topoGraph built from the routers' link maps
func buildTopoGraph(routers []*Router) *topoGraph {
	tg := new(topoGraph)
	tg.gNodes = make(map[int]simple.Node)
	tg.cachedSP = make(map[int]path.Shortest)

	connGraph := simple.NewWeightedUndirectedGraph(0, math.Inf(1))

	// declare every router as a node first, so that isolated routers
	// are present in the graph too
	for _, rtr := range routers {
		tg.gNodes[rtr.ID] = simple.Node(rtr.ID)
		connGraph.AddNode(tg.gNodes[rtr.ID])
	}

	// each link becomes an edge with weight 1
	for _, rtr := range routers {
		for nbr := range rtr.links {
			weightedEdge := simple.WeightedEdge{F: tg.gNodes[rtr.ID], T: tg.gNodes[nbr.ID], W: 1.0}
			connGraph.SetWeightedEdge(weightedEdge)
		}
	}

	tg.conn = connGraph
	return tg
}

// getSPTree returns the shortest path tree rooted in input argument 'from'.
// If the tree is found in the cache it is returned, if not it is computed,
// saved, and returned.
func (tg *topoGraph) getSPTree(from int) path.Shortest {
	spTree, present := tg.cachedSP[from]
	if present {
		return spTree
	}

	spTree = path.DijkstraFrom(tg.gNodes[from], tg.conn)
	tg.cachedSP[from] = spTree

	return spTree
}

// convertNodeSeq extracts the router ids from a sequence of graph nodes
func convertNodeSeq(nsQ []graph.Node) []int {
	rtn := []int{}
	for _, node := range nsQ {
		rtn = append(rtn, int(node.ID()))
	}

	return rtn
}

// routeFrom returns the shortest path from src to dst as a sequence of
// router ids, inclusive of both endpoints.  An empty return means dst is
// unreachable from src.
func (tg *topoGraph) routeFrom(srcID, dstID int) []int {
	// a tree rooted in the source serves directly
	spTree, present := tg.cachedSP[srcID]
	if present {
		nodeSeq, _ := spTree.To(int64(dstID))
		return convertNodeSeq(nodeSeq)
	}

	// a tree rooted in the destination serves too: by symmetry the path
	// is the same, just reversed
	spTree, present = tg.cachedSP[dstID]
	if present {
		revNodeSeq, _ := spTree.To(int64(srcID))
		revRoute := convertNodeSeq(revNodeSeq)

		route := make([]int, 0, len(revRoute))
		for idx := len(revRoute) - 1; idx > -1; idx-- {
			route = append(route, revRoute[idx])
		}
		return route
	}

	// neither endpoint has a cached tree, so root one in the source
	spTree = tg.getSPTree(srcID)
	nodeSeq, _ := spTree.To(int64(dstID))
	return convertNodeSeq(nodeSeq)
}

// checkRoutes validates the loader guarantees on the assembled topology:
// every route-table next hop is a direct neighbor of the router holding the
// entry, and every route-table destination is physically reachable from it
// through the link graph.  All violations fold into one returned error.
func checkRoutes(routers []*Router) error {
	tg := buildTopoGraph(routers)
	errList := []error{}

	for _, rtr := range routers {
		for dst, via := range rtr.routes {
			_, present := rtr.links[via]
			if !present {
				errList = append(errList, fmt.Errorf("router %d routes %d via %d, which is not a neighbor",
					rtr.ID, dst.ID, via.ID))
				continue
			}

			route := tg.routeFrom(rtr.ID, dst.ID)
			if len(route) < 2 {
				errList = append(errList, fmt.Errorf("router %d holds a route to unreachable router %d",
					rtr.ID, dst.ID))
			}
		}
	}

	return ReportErrs(errList)
}

// DeriveRoutes fills each router's table with hop-count shortest-path next
// hops for every reachable non-neighbor destination that has no entry yet.
// Explicit entries supplied by the topology always win and are left alone.
// This is a loader-side convenience run before the first tick; the engine
// itself never computes routes.
func DeriveRoutes(routers []*Router) {
	tg := buildTopoGraph(routers)

	byID := make(map[int]*Router)
	for _, rtr := range routers {
		byID[rtr.ID] = rtr
	}

	for _, rtr := range routers {
		nbrIDs := make([]int, 0, len(rtr.links))
		for nbr := range rtr.links {
			nbrIDs = append(nbrIDs, nbr.ID)
		}

		for _, dst := range routers {
			if dst == rtr {
				continue
			}
			// direct neighbors resolve through the adjacency fallback
			if slices.Contains(nbrIDs, dst.ID) {
				continue
			}
			if _, present := rtr.routes[dst]; present {
				continue
			}

			route := tg.routeFrom(rtr.ID, dst.ID)
			if len(route) < 2 {
				// unreachable, leave it to surface as a forwarding failure
				continue
			}
			rtr.routes[dst] = byID[route[1]]
		}
	}
}
