package dns

import "context"

// Provider is the interface DNS providers must implement. All methods map to
// single provider API calls; any failure is fatal to the current
// reconciliation (see OperationError).
type Provider interface {
	// ZoneName resolves a zone identifier to the zone's canonical name.
	ZoneName(ctx context.Context, zoneID string) (string, error)
	// FindSRV returns the SRV record with exactly the given name, or nil when
	// none exists. At most one result is requested; if the provider holds
	// colliding records at the same name, the first returned is authoritative.
	FindSRV(ctx context.Context, zoneID, fqdn string) (*Record, error)
	// CreateSRV creates a new SRV record.
	CreateSRV(ctx context.Context, zoneID, fqdn string, data SRVData) error
	// UpdateSRV overwrites the record identified by recordID.
	UpdateSRV(ctx context.Context, zoneID, recordID, fqdn string, data SRVData) error
	// Close releases the provider session. Safe to call once after use on
	// every exit path.
	Close() error
}
