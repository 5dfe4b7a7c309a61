// Package probe measures candidate nodes and ranks them by a
// latency-adjusted bandwidth preference score.
package probe

import (
	"errors"
	"sync"
	"time"

	"github.com/Tnze/go-mc/bot"
	"github.com/go-logr/logr"

	"github.com/UAC-Org/mcdns-updater/internal/config"
)

// Pinger performs a single liveness/latency probe against a server address.
type Pinger interface {
	Ping(addr string, timeout time.Duration) (time.Duration, error)
}

// ServerListPinger probes through the Minecraft server list ping protocol.
type ServerListPinger struct{}

// Ping performs one status exchange and returns the measured round trip.
func (ServerListPinger) Ping(addr string, timeout time.Duration) (time.Duration, error) {
	_, delay, err := bot.PingAndListTimeout(addr, timeout)
	return delay, err
}

// ScoredNode pairs a node with its preference score for one run. A score of
// 0 means the probe failed and the node is not eligible for selection.
type ScoredNode struct {
	Node       config.Node
	Preference float64
}

var errNonPositiveLatency = errors.New("probe reported a non-positive latency")

// Scorer converts probe results into preference scores.
type Scorer struct {
	Pinger  Pinger
	Timeout time.Duration
	Log     logr.Logger
}

// Score probes the node once and returns bandwidth² / latency-seconds.
// Any probe failure is reported and converted to 0; there are no retries.
// A non-positive latency also scores 0 rather than dividing by zero.
func (s *Scorer) Score(node config.Node) float64 {
	lat, err := s.Pinger.Ping(node.Addr(), s.Timeout)
	if err != nil {
		s.Log.Error(err, "ping failed", "node", node.Subdomain, "addr", node.Addr())
		return 0
	}

	secs := lat.Seconds()
	if secs <= 0 {
		s.Log.Error(errNonPositiveLatency, "ping failed", "node", node.Subdomain, "addr", node.Addr())
		return 0
	}

	bandwidth := float64(node.Bandwidth)
	return bandwidth * bandwidth / secs
}

// ScoreAll probes every node once, in parallel. Each probe's timeout is
// enforced independently and a failure never affects sibling probes. Results
// come back in input order regardless of completion order.
func (s *Scorer) ScoreAll(nodes []config.Node) []ScoredNode {
	scored := make([]ScoredNode, len(nodes))

	var wg sync.WaitGroup
	for i, node := range nodes {
		wg.Add(1)
		go func(i int, node config.Node) {
			defer wg.Done()
			scored[i] = ScoredNode{Node: node, Preference: s.Score(node)}
		}(i, node)
	}
	wg.Wait()

	return scored
}

// SelectBest picks the entry with the maximum preference. Ties keep the
// first-encountered entry, so the outcome is stable over the input order.
// Returns false when the input is empty or every probe failed (max score 0):
// in that case there is no node available.
func SelectBest(scored []ScoredNode) (ScoredNode, bool) {
	if len(scored) == 0 {
		return ScoredNode{}, false
	}

	best := scored[0]
	for _, sn := range scored[1:] {
		if sn.Preference > best.Preference {
			best = sn
		}
	}

	if best.Preference == 0 {
		return ScoredNode{}, false
	}
	return best, true
}
