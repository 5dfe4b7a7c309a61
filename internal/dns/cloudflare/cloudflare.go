package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/UAC-Org/mcdns-updater/internal/dns"
)

func init() {
	dns.Register("cloudflare", func(log logr.Logger, settings map[string]string) (dns.Provider, error) {
		return New(log, settings)
	})
}

const defaultBaseURL = "https://api.cloudflare.com/client/v4"

// Client implements dns.Provider against the Cloudflare v4 API.
type Client struct {
	baseURL  string
	apiToken string
	client   *http.Client
	log      logr.Logger
}

// New creates a Cloudflare provider from the given settings map.
// Required settings: api_token. Optional settings: base_url (used by tests).
func New(log logr.Logger, settings map[string]string) (*Client, error) {
	apiToken := settings["api_token"]
	if apiToken == "" {
		return nil, fmt.Errorf("cloudflare: missing required setting 'api_token'")
	}

	baseURL := settings["base_url"]
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		baseURL:  baseURL,
		apiToken: apiToken,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      log,
	}, nil
}

// Close releases idle connections held by the underlying transport.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// apiError is one entry of the "errors" array in a Cloudflare response envelope.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// envelope is the response wrapper every v4 endpoint returns.
type envelope struct {
	Success bool            `json:"success"`
	Errors  []apiError      `json:"errors"`
	Result  json.RawMessage `json:"result"`
}

// doRequest executes one API call and decodes the result payload into out.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("cloudflare: marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	u := strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("cloudflare: build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("cloudflare: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("cloudflare: %s %s returned status %d: decode response: %w", method, path, resp.StatusCode, err)
	}
	if !env.Success {
		if len(env.Errors) > 0 {
			return fmt.Errorf("cloudflare: %s %s failed: %d %s", method, path, env.Errors[0].Code, env.Errors[0].Message)
		}
		return fmt.Errorf("cloudflare: %s %s failed with status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("cloudflare: %s %s: decode result: %w", method, path, err)
		}
	}
	return nil
}

// ZoneName resolves the zone's canonical name from its identifier.
func (c *Client) ZoneName(ctx context.Context, zoneID string) (string, error) {
	var zone struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "zones/"+zoneID, nil, nil, &zone); err != nil {
		return "", err
	}
	return zone.Name, nil
}

// recordResult is the wire shape of a DNS record in list responses.
type recordResult struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Type string      `json:"type"`
	Data dns.SRVData `json:"data"`
}

// FindSRV lists SRV records filtered by exact name, requesting a single
// result. Returns nil when no record exists at that name.
func (c *Client) FindSRV(ctx context.Context, zoneID, fqdn string) (*dns.Record, error) {
	query := url.Values{}
	query.Set("type", "SRV")
	query.Set("name.exact", fqdn)
	query.Set("per_page", "1")

	var results []recordResult
	if err := c.doRequest(ctx, http.MethodGet, "zones/"+zoneID+"/dns_records", query, nil, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}

	rec := results[0]
	c.log.V(1).Info("found existing record", "fqdn", fqdn, "id", rec.ID)
	return &dns.Record{ID: rec.ID, Name: rec.Name, Data: rec.Data}, nil
}

// recordBody is the wire shape of create/update requests.
type recordBody struct {
	Type string      `json:"type"`
	Name string      `json:"name"`
	Data dns.SRVData `json:"data"`
}

// CreateSRV creates a new SRV record at fqdn.
func (c *Client) CreateSRV(ctx context.Context, zoneID, fqdn string, data dns.SRVData) error {
	body := recordBody{Type: "SRV", Name: fqdn, Data: data}
	if err := c.doRequest(ctx, http.MethodPost, "zones/"+zoneID+"/dns_records", nil, body, nil); err != nil {
		return err
	}
	c.log.V(1).Info("record created", "fqdn", fqdn)
	return nil
}

// UpdateSRV overwrites the SRV record identified by recordID.
func (c *Client) UpdateSRV(ctx context.Context, zoneID, recordID, fqdn string, data dns.SRVData) error {
	body := recordBody{Type: "SRV", Name: fqdn, Data: data}
	if err := c.doRequest(ctx, http.MethodPut, "zones/"+zoneID+"/dns_records/"+recordID, nil, body, nil); err != nil {
		return err
	}
	c.log.V(1).Info("record updated", "fqdn", fqdn, "id", recordID)
	return nil
}
