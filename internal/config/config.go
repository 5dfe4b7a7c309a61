package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.yaml.in/yaml/v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrInvalid marks configuration validation failures. The run must abort on
// these before any network activity.
var ErrInvalid = errors.New("invalid configuration")

const (
	// DefaultPort is the standard Minecraft Java server port.
	DefaultPort = 25565
	// DefaultTimeout is the per-node probe timeout in seconds.
	DefaultTimeout = 5.0
	// DefaultProvider names the DNS provider used when none is configured.
	DefaultProvider = "cloudflare"
)

// Node is one backend server candidate. Nodes are built once at load time and
// never mutated afterwards.
type Node struct {
	Subdomain string `json:"subdomain" yaml:"subdomain"`

	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`

	// Bandwidth is the node's declared relative network capacity. It enters
	// the preference score squared, so it dominates latency differences.
	Bandwidth int `json:"bandwidth" yaml:"bandwidth"`
}

// Addr returns the node's probe address as host:port.
func (n Node) Addr() string {
	return net.JoinHostPort(n.Host, strconv.Itoa(n.Port))
}

// Config is the full file-driven configuration for a run.
type Config struct {
	APIToken  string `json:"api_token" yaml:"api_token"`
	ZoneID    string `json:"zone_id" yaml:"zone_id"`
	Subdomain string `json:"subdomain" yaml:"subdomain"`

	// Provider selects the registered DNS provider; Settings carries any
	// extra provider-specific connection settings.
	Provider string            `json:"provider" yaml:"provider"`
	Settings map[string]string `json:"settings" yaml:"settings"`

	Nodes   []Node  `json:"nodes" yaml:"nodes"`
	Timeout float64 `json:"timeout" yaml:"timeout"`
}

// Load reads, parses, and validates a configuration file. YAML is accepted
// for .yaml/.yml paths, JSON otherwise. ${ENV_VAR} references in the API
// token and provider settings are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyDefaults()

	cfg.APIToken = os.ExpandEnv(cfg.APIToken)
	for k, v := range cfg.Settings {
		cfg.Settings[k] = os.ExpandEnv(v)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = DefaultProvider
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	for i := range c.Nodes {
		if c.Nodes[i].Port == 0 {
			c.Nodes[i].Port = DefaultPort
		}
	}
}

// Validate checks the preconditions the rest of the system relies on:
// required fields are present, no two nodes share a subdomain, and no node
// host is a literal IP address (an SRV target must be a name).
func (c *Config) Validate() error {
	if c.ZoneID == "" {
		return fmt.Errorf("%w: missing required field 'zone_id'", ErrInvalid)
	}
	if c.Subdomain == "" {
		return fmt.Errorf("%w: missing required field 'subdomain'", ErrInvalid)
	}
	if c.Provider == DefaultProvider && c.APIToken == "" {
		return fmt.Errorf("%w: missing required field 'api_token'", ErrInvalid)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %g", ErrInvalid, c.Timeout)
	}
	if len(c.Nodes) == 0 {
		return fmt.Errorf("%w: no nodes configured", ErrInvalid)
	}

	seen := make(map[string]bool, len(c.Nodes))
	for _, node := range c.Nodes {
		if node.Subdomain == "" {
			return fmt.Errorf("%w: node with empty subdomain", ErrInvalid)
		}
		if seen[node.Subdomain] {
			return fmt.Errorf("%w: conflict subdomains found: %q", ErrInvalid, node.Subdomain)
		}
		seen[node.Subdomain] = true

		if node.Host == "" {
			return fmt.Errorf("%w: node %q has no host", ErrInvalid, node.Subdomain)
		}
		if net.ParseIP(node.Host) != nil {
			return fmt.Errorf("%w: node %q: IP address %q is not allowed for SRV record", ErrInvalid, node.Subdomain, node.Host)
		}
		if node.Port < 1 || node.Port > 65535 {
			return fmt.Errorf("%w: node %q has invalid port %d", ErrInvalid, node.Subdomain, node.Port)
		}
		if node.Bandwidth <= 0 {
			return fmt.Errorf("%w: node %q must declare a positive bandwidth", ErrInvalid, node.Subdomain)
		}
	}
	return nil
}

// ProviderSettings returns the provider settings map with the API token
// merged in under "api_token". The stored map is never mutated.
func (c *Config) ProviderSettings() map[string]string {
	settings := make(map[string]string, len(c.Settings)+1)
	for k, v := range c.Settings {
		settings[k] = v
	}
	if c.APIToken != "" {
		settings["api_token"] = c.APIToken
	}
	return settings
}
