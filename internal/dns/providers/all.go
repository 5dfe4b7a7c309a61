// Package providers imports all DNS provider packages to trigger their init() registration.
package providers

import (
	_ "github.com/UAC-Org/mcdns-updater/internal/dns/cloudflare"
	_ "github.com/UAC-Org/mcdns-updater/internal/dns/memory"
)
