package wifisim

// net.go holds the run-time representations of routers and of the network
// that drives them through discrete ticks

import (
	"fmt"
	"os"
	"strings"

	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
	"github.com/iti/rngstream"
)

// NetParams gathers the per-run constants of the model.  They are given to
// the network at construction rather than living as process-wide globals so
// that test scenarios can parameterize runs independently.
type NetParams struct {
	NghbrDelay   int     // lookup surcharge for a hop resolved by direct adjacency
	DistantDelay int     // lookup surcharge for a hop resolved through the route table
	DropProb     float64 // per-tick probability an in-transit packet is dropped
	TickLimit    int     // safety cap on Run, 0 means none
	Trace        bool    // per-tick state dumps on stderr
}

// DefaultNetParams returns the parameter values the original lab model used
func DefaultNetParams() NetParams {
	return NetParams{NghbrDelay: 1, DistantDelay: 2, DropProb: 0.05, TickLimit: 0, Trace: false}
}

// A Router is a network node with symmetric-delay links to neighbors, a
// static destination -> next-hop table, and FIFO input and output queues.
// The route table is populated by the topology loader and never mutated by
// the engine.
type Router struct {
	ID     int
	name   string
	links  map[*Router]int     // neighbor -> link delay
	routes map[*Router]*Router // destination -> next-hop neighbor
	input  []*Pckt
	output []*Pckt
	netw   *Network // owning network, set when the network is created
}

// CreateRouter is a constructor
func CreateRouter(id int, name string) *Router {
	rtr := new(Router)
	rtr.ID = id
	rtr.name = name
	rtr.links = make(map[*Router]int)
	rtr.routes = make(map[*Router]*Router)
	rtr.input = make([]*Pckt, 0)
	rtr.output = make([]*Pckt, 0)
	return rtr
}

// Name returns the router's display name
func (rtr *Router) Name() string {
	return rtr.name
}

// LinkDelay returns the delay of the direct link to nbr, and whether one exists
func (rtr *Router) LinkDelay(nbr *Router) (int, bool) {
	delay, present := rtr.links[nbr]
	return delay, present
}

// AddConnection registers one direction of a link to nbr with the given
// delay and, for each listed destination, a route-table entry naming nbr as
// the next hop.  The topology loader calls it once per direction per link;
// symmetry of the delays is checked there, after both directions are in.
func (rtr *Router) AddConnection(nbr *Router, delay int, routes []*Router) error {
	errList := []error{}

	if nbr == rtr {
		errList = append(errList, fmt.Errorf("router %s linked to itself", rtr.name))
	}
	if delay <= 0 {
		errList = append(errList, fmt.Errorf("non-positive delay %d on link %s-%s", delay, rtr.name, nbr.name))
	}

	if len(errList) == 0 {
		rtr.links[nbr] = delay
	}

	for _, dst := range routes {
		if dst == rtr {
			errList = append(errList, fmt.Errorf("router %s routed to itself", rtr.name))
			continue
		}
		rtr.routes[dst] = nbr
	}

	return ReportErrs(errList)
}

// addIncomingPckt appends a packet to the router's input queue.
// Called by the network's delivery phase and by scenario injection.
func (rtr *Router) addIncomingPckt(pckt *Pckt) {
	rtr.input = append(rtr.input, pckt)
}

// addOutgoingPckt appends a packet to the router's output queue
func (rtr *Router) addOutgoingPckt(pckt *Pckt) {
	rtr.output = append(rtr.output, pckt)
}

// RouteFor resolves the next hop toward dst.  An explicit route-table entry
// always wins; direct adjacency is the fallback when no entry exists; nil
// means dst is unreachable from this router.  A router resolves itself to
// nil, as it never appears in its own table or neighbor set.
func (rtr *Router) RouteFor(dst *Router) *Router {
	via, present := rtr.routes[dst]
	if present {
		return via
	}
	_, present = rtr.links[dst]
	if present {
		return dst
	}
	return nil
}

// resolveHop computes the next hop toward target and the full transmission
// delay of that hop: the link delay to the chosen neighbor plus the lookup
// surcharge, which depends on whether the hop was resolved by direct
// adjacency or through the route table.  The bool is false when target is
// unreachable.
func (rtr *Router) resolveHop(target *Router) (*Router, int, bool) {
	via := rtr.RouteFor(target)
	if via == nil {
		return nil, 0, false
	}

	lookup := rtr.netw.prms.DistantDelay
	if via == target {
		lookup = rtr.netw.prms.NghbrDelay
	}

	return via, rtr.links[via] + lookup, true
}

// ProcessIncomingPckts drains the input queue as it stood at the moment of
// the call and handles each packet: terminal delivery, reply synthesis, or
// forwarding.  Packets that cannot be routed are destroyed and reported.
func (rtr *Router) ProcessIncomingPckts(tick int) {
	queue := rtr.input
	rtr.input = make([]*Pckt, 0)

	for _, pckt := range queue {
		if pckt.dst == rtr {
			// terminal endpoint for this packet
			if pckt.isReply {
				rtr.netw.reportDelivered(tick, pckt, rtr)
				continue
			}

			// a request that reached its destination spawns a reply
			// retracing the path to the original source
			via, delay, ok := rtr.resolveHop(pckt.src)
			if !ok {
				rtr.netw.reportUnroutable(tick, pckt, rtr)
				continue
			}

			reply := &Pckt{
				Connection: pckt.Connection,
				src:        rtr,
				dst:        pckt.src,
				via:        via,
				delay:      delay,
				lifetime:   pckt.lifetime,
				isReply:    true,
			}
			rtr.addOutgoingPckt(reply)
			continue
		}

		// somebody else's packet, forward it
		via, delay, ok := rtr.resolveHop(pckt.dst)
		if !ok {
			rtr.netw.reportUnroutable(tick, pckt, rtr)
			continue
		}
		pckt.via = via
		pckt.delay = delay
		rtr.addOutgoingPckt(pckt)
	}
}

func (rtr *Router) String() string {
	in := make([]string, 0, len(rtr.input))
	for _, pckt := range rtr.input {
		in = append(in, pckt.String())
	}
	out := make([]string, 0, len(rtr.output))
	for _, pckt := range rtr.output {
		out = append(out, pckt.String())
	}
	return fmt.Sprintf("Router(id=%d in=[%s] out=[%s])", rtr.ID, strings.Join(in, " "), strings.Join(out, " "))
}

// A Network owns the fixed router set and the packets currently in transit,
// and advances the whole system tick by tick.  Router iteration follows
// insertion order so that runs are reproducible.
type Network struct {
	name       string
	routers    []*Router
	routerByID map[int]*Router
	pckts      []*Pckt // packets in transit, not queued at any router
	prms       NetParams
	tick       int
	rngstrm    *rngstream.RngStream // sole source of loss draws
	tm         *TraceManager

	delivered  int
	lost       int
	unroutable int
	lifetimes  []float64 // lifetimes of delivered replies, for summary statistics
}

// CreateNetwork is a constructor.  The scenario packets are injected into
// their source routers' input queues here, before tick 1, so the first
// router-processing phase resolves their initial hops.
func CreateNetwork(name string, routers []*Router, pckts []*Pckt, prms NetParams, tm *TraceManager) *Network {
	netw := new(Network)
	netw.name = name
	netw.routers = routers
	netw.routerByID = make(map[int]*Router)
	netw.pckts = make([]*Pckt, 0)
	netw.prms = prms
	netw.tm = tm
	netw.rngstrm = rngstream.New(name)
	netw.lifetimes = make([]float64, 0)

	for _, rtr := range routers {
		rtr.netw = netw
		netw.routerByID[rtr.ID] = rtr
	}

	for _, pckt := range pckts {
		pckt.src.addIncomingPckt(pckt)
	}

	return netw
}

// RouterByID looks a router up by its integer id
func (netw *Network) RouterByID(id int) *Router {
	return netw.routerByID[id]
}

// Routers returns the router list in its stable iteration order
func (netw *Network) Routers() []*Router {
	return netw.routers
}

// Tick returns the 1-based index of the last tick executed
func (netw *Network) Tick() int {
	return netw.tick
}

// Params returns the run parameters the network was built with
func (netw *Network) Params() NetParams {
	return netw.prms
}

// InTransit returns the number of packets currently owned by the network
func (netw *Network) InTransit() int {
	return len(netw.pckts)
}

// LivePckts counts every packet still alive anywhere in the system.
// The count never increases from one tick boundary to the next: packets are
// destroyed or replaced one for one by a reply, never duplicated.
func (netw *Network) LivePckts() int {
	n := len(netw.pckts)
	for _, rtr := range netw.routers {
		n += len(rtr.input) + len(rtr.output)
	}
	return n
}

// dropPckts is the loss phase, one independent draw per in-transit packet
func (netw *Network) dropPckts(tick int) {
	kept := netw.pckts[:0]
	for _, pckt := range netw.pckts {
		if netw.rngstrm.RandU01() < netw.prms.DropProb {
			netw.reportLost(tick, pckt)
			continue
		}
		kept = append(kept, pckt)
	}
	netw.pckts = kept
}

// deliverPckts is the delivery/advance phase: count every surviving
// in-transit packet down by one tick and hand the arrivals to their next
// hop's input queue
func (netw *Network) deliverPckts(tick int) {
	kept := netw.pckts[:0]
	for _, pckt := range netw.pckts {
		if pckt.Tick() <= 0 {
			via := pckt.via
			pckt.via = nil
			via.addIncomingPckt(pckt)
			continue
		}
		kept = append(kept, pckt)
	}
	netw.pckts = kept
}

// processIncomingPckts is the router-processing phase, run over the routers
// in stable order
func (netw *Network) processIncomingPckts(tick int) {
	for _, rtr := range netw.routers {
		rtr.ProcessIncomingPckts(tick)
	}
}

// transmitPckts is the transmission phase: every router's output queue is
// drained into the in-transit list, router order first, queue order within
func (netw *Network) transmitPckts(tick int) {
	for _, rtr := range netw.routers {
		netw.pckts = append(netw.pckts, rtr.output...)
		rtr.output = make([]*Pckt, 0)
	}
}

// Advance executes one tick: loss, delivery, router processing,
// transmission, each phase completing for all packets before the next
// begins.  The tick boundary is the only point where packet ownership
// transfers between the network and a router.
func (netw *Network) Advance() {
	netw.tick += 1
	tick := netw.tick

	netw.dump(tick, "pre-deliver")
	netw.dropPckts(tick)
	netw.deliverPckts(tick)
	netw.dump(tick, "post-deliver")
	netw.processIncomingPckts(tick)
	netw.dump(tick, "pre-transmit")
	netw.transmitPckts(tick)
	netw.dump(tick, "post-transmit")
}

// Finished reports whether no packet remains in transit or queued anywhere,
// the termination predicate for Run
func (netw *Network) Finished() bool {
	if len(netw.pckts) > 0 {
		return false
	}
	for _, rtr := range netw.routers {
		if len(rtr.input) > 0 || len(rtr.output) > 0 {
			return false
		}
	}
	return true
}

// horizon used when no tick limit is configured.  Large, but safely inside
// the range vrtime can represent.
const unboundedHorizon float64 = 1e12

// Run drives the network on the event manager, one tick event per virtual
// second, until the system drains or the configured tick limit is reached
func (netw *Network) Run(evtMgr *evtm.EventManager) {
	if netw.Finished() {
		return
	}

	evtMgr.Schedule(netw, nil, advanceNetwork, vrtime.SecondsToTime(1.0))

	horizon := unboundedHorizon
	if netw.prms.TickLimit > 0 {
		horizon = float64(netw.prms.TickLimit) + 1.0
	}
	evtMgr.Run(horizon)
}

// advanceNetwork is the event handler for one tick.  It reschedules itself
// while packets remain and the tick limit has not been hit.
func advanceNetwork(evtMgr *evtm.EventManager, context any, data any) any {
	netw := context.(*Network)
	netw.Advance()

	if netw.Finished() {
		return nil
	}
	if netw.prms.TickLimit > 0 && netw.tick >= netw.prms.TickLimit {
		return nil
	}

	evtMgr.Schedule(netw, nil, advanceNetwork, vrtime.SecondsToTime(1.0))
	return nil
}

// reportDelivered records the terminal event of a request/reply pair:
// the reply arrived back at the original requester
func (netw *Network) reportDelivered(tick int, pckt *Pckt, at *Router) {
	netw.delivered += 1
	netw.lifetimes = append(netw.lifetimes, float64(pckt.lifetime))
	netw.tm.AddPcktEvent(tick, pckt.Connection, at.ID, pckt.src.ID, pckt.dst.ID, StatusDelivered, pckt.lifetime)
}

// reportLost records a random drop during the loss phase.  The source never
// learns of the loss; no reply and no retry exist in this protocol.
func (netw *Network) reportLost(tick int, pckt *Pckt) {
	netw.lost += 1
	netw.tm.AddPcktEvent(tick, pckt.Connection, pckt.via.ID, pckt.src.ID, pckt.dst.ID, StatusLost, pckt.lifetime)
}

// reportUnroutable records a forwarding failure: the current router has
// neither a route-table entry nor a direct link for the target
func (netw *Network) reportUnroutable(tick int, pckt *Pckt, at *Router) {
	netw.unroutable += 1
	fmt.Fprintf(os.Stderr, "%s lost at %s\n", pckt, at)
	netw.tm.AddPcktEvent(tick, pckt.Connection, at.ID, pckt.src.ID, pckt.dst.ID, StatusUnroutable, pckt.lifetime)
}

// dump writes the network state to stderr when tracing is on
func (netw *Network) dump(tick int, phase string) {
	if !netw.prms.Trace {
		return
	}

	inTransit := make([]string, 0, len(netw.pckts))
	for _, pckt := range netw.pckts {
		inTransit = append(inTransit, pckt.String())
	}
	rtrs := make([]string, 0, len(netw.routers))
	for _, rtr := range netw.routers {
		rtrs = append(rtrs, rtr.String())
	}
	fmt.Fprintf(os.Stderr, "t=%d phase=%s routers: %s transit: [%s]\n",
		tick, phase, strings.Join(rtrs, " "), strings.Join(inTransit, " "))
}
