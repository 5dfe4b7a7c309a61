package dns

import (
	"context"
	"fmt"
	"io"

	"github.com/go-logr/logr"
)

// OperationError wraps a provider-side failure (zone lookup, listing, create,
// or update). These are never retried: the failing reconciliation aborts the
// run, and prior successful reconciliations are not rolled back.
type OperationError struct {
	Op   string // which provider call failed
	FQDN string // record name being reconciled, if known
	Err  error
}

func (e *OperationError) Error() string {
	if e.FQDN == "" {
		return fmt.Sprintf("dns %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("dns %s for %s: %v", e.Op, e.FQDN, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// Reconciler converges one SRV record per name onto a desired target. It
// shares a single provider session, so calls must stay sequential.
type Reconciler struct {
	Provider Provider
	ZoneID   string
	Log      logr.Logger
	Progress io.Writer
}

// Ensure makes exactly one SRV record exist at
// "_minecraft._tcp.<subdomain>.<zone name>" pointing at host:port with
// priority 0 and weight 0. An existing record at that name is updated in
// place; otherwise one is created. Rerunning with the same target is a no-op
// on remote state, which is what makes whole runs idempotent.
func (r *Reconciler) Ensure(ctx context.Context, subdomain, host string, port int) error {
	zoneName, err := r.Provider.ZoneName(ctx, r.ZoneID)
	if err != nil {
		return &OperationError{Op: "zone lookup", Err: err}
	}
	if zoneName == "" {
		return &OperationError{Op: "zone lookup", Err: fmt.Errorf("zone %s has no name", r.ZoneID)}
	}

	fqdn := ConcatDomain(Service, subdomain, zoneName)

	fmt.Fprintf(r.Progress, "updating %s SRV record to %s:%d...\n", fqdn, host, port)

	existing, err := r.Provider.FindSRV(ctx, r.ZoneID, fqdn)
	if err != nil {
		return &OperationError{Op: "record listing", FQDN: fqdn, Err: err}
	}

	data := SRVData{Target: host, Port: port, Priority: 0, Weight: 0}

	if existing != nil {
		r.Log.V(1).Info("updating existing record", "fqdn", fqdn, "id", existing.ID)
		if err := r.Provider.UpdateSRV(ctx, r.ZoneID, existing.ID, fqdn, data); err != nil {
			return &OperationError{Op: "record update", FQDN: fqdn, Err: err}
		}
	} else {
		r.Log.V(1).Info("creating record", "fqdn", fqdn)
		if err := r.Provider.CreateSRV(ctx, r.ZoneID, fqdn, data); err != nil {
			return &OperationError{Op: "record create", FQDN: fqdn, Err: err}
		}
	}

	fmt.Fprintf(r.Progress, "%s SRV record updated.\n", fqdn)
	return nil
}
