package wifisim

import (
	"fmt"
)

// A Pckt is one unit of simulated traffic, either an original request or
// the reply synthesized when a request reaches its destination.  At any
// instant a Pckt sits in exactly one of three places: a router's input
// queue, a router's output queue, or the network's in-transit list.
type Pckt struct {
	Connection string  // opaque tag grouping a request with its reply
	src        *Router // router that created the packet
	dst        *Router // router the packet is addressed to
	via        *Router // next hop currently being traveled toward, nil when unassigned
	delay      int     // ticks remaining until arrival at via
	lifetime   int     // ticks the packet has existed, carried into the reply
	isReply    bool
}

// CreatePckt is the constructor used for scenario injection.  The packet
// starts with no hop assigned; the source router's first processing phase
// resolves it.
func CreatePckt(connection string, src, dst *Router) *Pckt {
	pckt := new(Pckt)
	pckt.Connection = connection
	pckt.src = src
	pckt.dst = dst
	return pckt
}

// Src returns the packet's originating router
func (pckt *Pckt) Src() *Router {
	return pckt.src
}

// Dst returns the router the packet is addressed to
func (pckt *Pckt) Dst() *Router {
	return pckt.dst
}

// Via returns the next hop currently assigned, possibly nil
func (pckt *Pckt) Via() *Router {
	return pckt.via
}

// Lifetime returns the number of ticks the packet has been in transit
func (pckt *Pckt) Lifetime() int {
	return pckt.lifetime
}

// IsReply reports whether this packet is a synthesized acknowledgment
func (pckt *Pckt) IsReply() bool {
	return pckt.isReply
}

// Tick advances the packet by one simulation step while in transit.
// The delay countdown runs only while a next hop is assigned; the
// lifetime counter always advances.  The caller tests the returned
// delay against zero for arrival.
func (pckt *Pckt) Tick() int {
	if pckt.via != nil {
		pckt.delay -= 1
	}
	pckt.lifetime += 1

	return pckt.delay
}

func (pckt *Pckt) String() string {
	viaID := -1
	if pckt.via != nil {
		viaID = pckt.via.ID
	}
	return fmt.Sprintf("Pckt(conn=%s src=%d dst=%d via=%d D=%d T=%d reply=%v)",
		pckt.Connection, pckt.src.ID, pckt.dst.ID, viaID, pckt.delay, pckt.lifetime, pckt.isReply)
}
