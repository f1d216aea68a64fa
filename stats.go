package wifisim

// stats.go summarizes the outcome of a finished run

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// RunStats aggregates the terminal outcomes of a run and the distribution
// of round-trip lifetimes among the delivered replies
type RunStats struct {
	Ticks        int     // ticks executed before the network drained
	Delivered    int     // request/reply pairs completed
	Lost         int     // packets dropped in transit
	Unroutable   int     // packets destroyed for lack of a route
	MeanLifetime float64 // mean lifetime of delivered replies
	StdvLifetime float64 // standard deviation of those lifetimes
}

// GatherStats computes the run statistics of a network, normally called
// once Finished() holds
func GatherStats(netw *Network) RunStats {
	rs := RunStats{
		Ticks:      netw.tick,
		Delivered:  netw.delivered,
		Lost:       netw.lost,
		Unroutable: netw.unroutable,
	}

	if len(netw.lifetimes) > 0 {
		rs.MeanLifetime = stat.Mean(netw.lifetimes, nil)
		variance := stat.Variance(netw.lifetimes, nil)
		if !math.IsNaN(variance) {
			rs.StdvLifetime = math.Sqrt(variance)
		}
	}

	return rs
}

// Summary renders the statistics as a one-line report for the CLI
func (rs RunStats) Summary() string {
	return fmt.Sprintf("ticks=%d delivered=%d lost=%d unroutable=%d mean-lifetime=%.2f stdv-lifetime=%.2f",
		rs.Ticks, rs.Delivered, rs.Lost, rs.Unroutable, rs.MeanLifetime, rs.StdvLifetime)
}
