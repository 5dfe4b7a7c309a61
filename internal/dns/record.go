package dns

import (
	"strings"
)

// Service is the SRV service/protocol prefix every managed record lives under.
const Service = "_minecraft._tcp"

// SRVData is the payload of a managed SRV record. Priority and weight are
// always written as 0: relative preference is encoded by which single target
// gets published, not by SRV-native weighting.
type SRVData struct {
	Target   string `json:"target"`
	Port     int    `json:"port"`
	Priority int    `json:"priority"`
	Weight   int    `json:"weight"`
}

// Record is a provider-side SRV record. ID is the provider's identity for the
// record and is required for updates.
type Record struct {
	ID   string
	Name string
	Data SRVData
}

// ConcatDomain joins name components with ".", stripping trailing dots from
// each component first so repeated joins never produce doubled separators or
// dangling dots.
// e.g. ("a.", "b", "c.") → "a.b.c", same as ("a", "b", "c").
func ConcatDomain(parts ...string) string {
	trimmed := make([]string, len(parts))
	for i, part := range parts {
		trimmed[i] = strings.TrimRight(part, ".")
	}
	return strings.Join(trimmed, ".")
}
