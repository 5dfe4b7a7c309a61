// Package updater sequences one full run: probe all nodes, pick the best,
// and publish SRV records through the configured DNS provider.
package updater

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-logr/logr"

	"github.com/UAC-Org/mcdns-updater/internal/config"
	"github.com/UAC-Org/mcdns-updater/internal/dns"
	"github.com/UAC-Org/mcdns-updater/internal/probe"
)

// Updater runs the probe → select → reconcile sequence for one invocation.
// Out receives human-readable progress and audit lines; diagnostics go
// through Log.
type Updater struct {
	Config *config.Config
	Pinger probe.Pinger
	Log    logr.Logger
	Out    io.Writer
}

// Run executes one complete pass. Probe failures only lower scores; when
// every node fails, the run logs "no node available" and ends cleanly
// without touching DNS at all. Any DNS operation failure aborts the run,
// leaving earlier reconciliations in place.
func (u *Updater) Run(ctx context.Context) error {
	cfg := u.Config

	scorer := &probe.Scorer{
		Pinger:  u.Pinger,
		Timeout: time.Duration(cfg.Timeout * float64(time.Second)),
		Log:     u.Log,
	}
	scored := scorer.ScoreAll(cfg.Nodes)

	for _, sn := range scored {
		fmt.Fprintf(u.Out, "tested: node=%s addr=%s, pref=%v\n", sn.Node.Subdomain, sn.Node.Addr(), sn.Preference)
	}

	selected, ok := probe.SelectBest(scored)
	if !ok {
		u.Log.Info("no node available")
		return nil
	}

	fmt.Fprintf(u.Out, "selected: node=%s addr=%s, pref=%v\n", selected.Node.Subdomain, selected.Node.Addr(), selected.Preference)

	provider, err := dns.NewProvider(cfg.Provider, u.Log.WithName("dns-"+cfg.Provider), cfg.ProviderSettings())
	if err != nil {
		return fmt.Errorf("creating DNS provider: %w", err)
	}
	defer func() {
		if err := provider.Close(); err != nil {
			u.Log.Error(err, "closing DNS provider")
		}
	}()

	reconciler := &dns.Reconciler{
		Provider: provider,
		ZoneID:   cfg.ZoneID,
		Log:      u.Log,
		Progress: u.Out,
	}

	// Per-node aliases first, the shared winner record last. The records are
	// independent; the order keeps audit logs reproducible.
	for _, node := range cfg.Nodes {
		alias := dns.ConcatDomain(node.Subdomain, cfg.Subdomain)
		if err := reconciler.Ensure(ctx, alias, node.Host, node.Port); err != nil {
			return err
		}
	}

	return reconciler.Ensure(ctx, cfg.Subdomain, selected.Node.Host, selected.Node.Port)
}
