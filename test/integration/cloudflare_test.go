package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"github.com/UAC-Org/mcdns-updater/internal/config"
	_ "github.com/UAC-Org/mcdns-updater/internal/dns/providers"
	"github.com/UAC-Org/mcdns-updater/internal/updater"
)

// fakeCloudflare is a minimal in-memory Cloudflare v4 API for testing.
type fakeCloudflare struct {
	mu       sync.Mutex
	zoneName string
	store    map[string]srvRecord // keyed by record ID
	nextID   int
	calls    []string // tracks endpoint calls in order
}

type srvRecord struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Type string  `json:"type"`
	Data srvData `json:"data"`
}

type srvData struct {
	Target   string `json:"target"`
	Port     int    `json:"port"`
	Priority int    `json:"priority"`
	Weight   int    `json:"weight"`
}

func newFakeCloudflare(zoneName string) *fakeCloudflare {
	return &fakeCloudflare{zoneName: zoneName, store: map[string]srvRecord{}}
}

func (f *fakeCloudflare) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer token123" {
		f.fail(w, http.StatusForbidden, 10000, "Authentication error")
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/zones/zone123":
		f.respond(w, map[string]string{"id": "zone123", "name": f.zoneName})
	case r.Method == http.MethodGet && r.URL.Path == "/zones/zone123/dns_records":
		f.handleList(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/zones/zone123/dns_records":
		f.handleCreate(w, r)
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/zones/zone123/dns_records/"):
		f.handleUpdate(w, r)
	default:
		f.fail(w, http.StatusNotFound, 7003, "Could not route to endpoint")
	}
}

func (f *fakeCloudflare) handleList(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := r.URL.Query().Get("name.exact")
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage == 0 {
		perPage = 100
	}

	results := []srvRecord{}
	for _, rec := range f.store {
		if rec.Name == name && rec.Type == r.URL.Query().Get("type") {
			results = append(results, rec)
		}
		if len(results) >= perPage {
			break
		}
	}
	f.respond(w, results)
}

func (f *fakeCloudflare) handleCreate(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var rec srvRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		f.fail(w, http.StatusBadRequest, 9000, "malformed body")
		return
	}
	f.nextID++
	rec.ID = fmt.Sprintf("rec-%d", f.nextID)
	f.store[rec.ID] = rec
	f.respond(w, rec)
}

func (f *fakeCloudflare) handleUpdate(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := strings.TrimPrefix(r.URL.Path, "/zones/zone123/dns_records/")
	existing, ok := f.store[id]
	if !ok {
		f.fail(w, http.StatusNotFound, 81044, "Record does not exist")
		return
	}

	var rec srvRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		f.fail(w, http.StatusBadRequest, 9000, "malformed body")
		return
	}
	rec.ID = existing.ID
	f.store[id] = rec
	f.respond(w, rec)
}

func (f *fakeCloudflare) respond(w http.ResponseWriter, result interface{}) {
	raw, _ := json.Marshal(result)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"errors":  []interface{}{},
		"result":  json.RawMessage(raw),
	})
}

func (f *fakeCloudflare) fail(w http.ResponseWriter, status, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"errors":  []map[string]interface{}{{"code": code, "message": message}},
		"result":  nil,
	})
}

// byName finds a stored record by FQDN. Empty record when absent.
func (f *fakeCloudflare) byName(name string) (srvRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.store {
		if rec.Name == name {
			return rec, true
		}
	}
	return srvRecord{}, false
}

func (f *fakeCloudflare) recordCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.store)
}

// fakePinger maps addresses to latencies; unknown addresses fail.
type fakePinger struct {
	latencies map[string]time.Duration
}

func (f *fakePinger) Ping(addr string, _ time.Duration) (time.Duration, error) {
	if lat, ok := f.latencies[addr]; ok {
		return lat, nil
	}
	return 0, errors.New("connection refused")
}

func testUpdater(baseURL string, pinger *fakePinger, out *strings.Builder) *updater.Updater {
	return &updater.Updater{
		Config: &config.Config{
			APIToken:  "token123",
			ZoneID:    "zone123",
			Subdomain: "mc",
			Provider:  "cloudflare",
			Settings:  map[string]string{"base_url": baseURL},
			Timeout:   5.0,
			Nodes: []config.Node{
				{Subdomain: "a", Host: "a.example.com", Port: 25565, Bandwidth: 10},
				{Subdomain: "b", Host: "b.example.com", Port: 25570, Bandwidth: 5},
			},
		},
		Pinger: pinger,
		Log:    logr.Discard(),
		Out:    out,
	}
}

func TestFullRunAgainstFakeCloudflare(t *testing.T) {
	fake := newFakeCloudflare("example.com")
	srv := httptest.NewServer(fake)
	defer srv.Close()

	pinger := &fakePinger{latencies: map[string]time.Duration{
		"a.example.com:25565": 2 * time.Second, // score 50
		"b.example.com:25570": 1 * time.Second, // score 25
	}}

	var out strings.Builder
	u := testUpdater(srv.URL, pinger, &out)

	if err := u.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := fake.recordCount(); got != 3 {
		t.Fatalf("expected 3 records (two aliases + winner), got %d", got)
	}

	winner, ok := fake.byName("_minecraft._tcp.mc.example.com")
	if !ok {
		t.Fatal("winner record not published")
	}
	if winner.Data.Target != "a.example.com" || winner.Data.Port != 25565 {
		t.Errorf("winner points at %s:%d, want a.example.com:25565", winner.Data.Target, winner.Data.Port)
	}
	if winner.Data.Priority != 0 || winner.Data.Weight != 0 {
		t.Errorf("priority/weight must be 0, got %d/%d", winner.Data.Priority, winner.Data.Weight)
	}

	for _, name := range []string{"_minecraft._tcp.a.mc.example.com", "_minecraft._tcp.b.mc.example.com"} {
		if _, ok := fake.byName(name); !ok {
			t.Errorf("alias record %s not published", name)
		}
	}

	if !strings.Contains(out.String(), "selected: node=a") {
		t.Errorf("missing selection audit line, got %q", out.String())
	}
}

func TestSecondRunUpdatesInsteadOfCreating(t *testing.T) {
	fake := newFakeCloudflare("example.com")
	srv := httptest.NewServer(fake)
	defer srv.Close()

	pinger := &fakePinger{latencies: map[string]time.Duration{
		"a.example.com:25565": 2 * time.Second,
		"b.example.com:25570": 1 * time.Second,
	}}

	var out strings.Builder
	if err := testUpdater(srv.URL, pinger, &out).Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	firstWinner, _ := fake.byName("_minecraft._tcp.mc.example.com")

	if err := testUpdater(srv.URL, pinger, &out).Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if got := fake.recordCount(); got != 3 {
		t.Fatalf("second run must not add records, got %d", got)
	}
	secondWinner, _ := fake.byName("_minecraft._tcp.mc.example.com")
	if secondWinner.ID != firstWinner.ID {
		t.Error("second run must update the existing record in place")
	}
	if secondWinner.Data != firstWinner.Data {
		t.Errorf("remote state changed across identical runs: %+v vs %+v", secondWinner.Data, firstWinner.Data)
	}

	// every mutation in the second half must be an update
	var sawPost bool
	fake.mu.Lock()
	calls := append([]string(nil), fake.calls...)
	fake.mu.Unlock()
	half := len(calls) / 2
	for _, call := range calls[half:] {
		if strings.HasPrefix(call, "POST ") {
			sawPost = true
		}
	}
	if sawPost {
		t.Errorf("second run issued a create, calls: %v", calls)
	}
}

func TestBadTokenAbortsRun(t *testing.T) {
	fake := newFakeCloudflare("example.com")
	srv := httptest.NewServer(fake)
	defer srv.Close()

	pinger := &fakePinger{latencies: map[string]time.Duration{
		"a.example.com:25565": 2 * time.Second,
		"b.example.com:25570": 1 * time.Second,
	}}

	var out strings.Builder
	u := testUpdater(srv.URL, pinger, &out)
	u.Config.APIToken = "wrong-token"

	if err := u.Run(context.Background()); err == nil {
		t.Fatal("expected error for rejected token, got nil")
	}
	if fake.recordCount() != 0 {
		t.Errorf("no records expected after auth failure, got %d", fake.recordCount())
	}
}
