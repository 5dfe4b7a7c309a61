package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/go-logr/logr"

	"github.com/UAC-Org/mcdns-updater/internal/dns"
)

func init() {
	dns.Register("memory", func(log logr.Logger, settings map[string]string) (dns.Provider, error) {
		return New(log, settings), nil
	})
}

// Provider is an in-memory dns.Provider. It lets the updater run without
// external credentials (dry runs) and backs the package tests.
type Provider struct {
	zoneName string
	log      logr.Logger

	mu      sync.Mutex
	records map[string]dns.Record // keyed by FQDN
	nextID  int
	closed  bool
}

// New creates a memory provider. The optional "zone_name" setting controls
// the name every zone ID resolves to; it defaults to "example.com".
func New(log logr.Logger, settings map[string]string) *Provider {
	zoneName := settings["zone_name"]
	if zoneName == "" {
		zoneName = "example.com"
	}
	return &Provider{
		zoneName: zoneName,
		log:      log,
		records:  make(map[string]dns.Record),
	}
}

// ZoneName resolves any zone ID to the configured zone name.
func (p *Provider) ZoneName(_ context.Context, _ string) (string, error) {
	return p.zoneName, nil
}

// FindSRV returns the stored record at fqdn, or nil when absent.
func (p *Provider) FindSRV(_ context.Context, _ string, fqdn string) (*dns.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.records[fqdn]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// CreateSRV stores a new record at fqdn.
func (p *Provider) CreateSRV(_ context.Context, _ string, fqdn string, data dns.SRVData) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	rec := dns.Record{ID: strconv.Itoa(p.nextID), Name: fqdn, Data: data}
	p.records[fqdn] = rec
	p.log.Info("created record", "fqdn", fqdn, "target", data.Target, "port", data.Port)
	return nil
}

// UpdateSRV overwrites the record identified by recordID.
func (p *Provider) UpdateSRV(_ context.Context, _ string, recordID, fqdn string, data dns.SRVData) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.records[fqdn]
	if !ok || rec.ID != recordID {
		return fmt.Errorf("memory: no record %s at %s", recordID, fqdn)
	}
	rec.Name = fqdn
	rec.Data = data
	p.records[fqdn] = rec
	p.log.Info("updated record", "fqdn", fqdn, "target", data.Target, "port", data.Port)
	return nil
}

// Close marks the provider released.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether Close has been called. For tests.
func (p *Provider) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Records returns a snapshot of the stored records for inspection in tests
// or diagnostics.
func (p *Provider) Records() map[string]dns.Record {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := make(map[string]dns.Record, len(p.records))
	for fqdn, rec := range p.records {
		snapshot[fqdn] = rec
	}
	return snapshot
}
