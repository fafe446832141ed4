package rest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/KilimcininKorOglu/obaidx/internal/config"
	"github.com/KilimcininKorOglu/obaidx/internal/key"
	"github.com/KilimcininKorOglu/obaidx/internal/logging"
	"github.com/KilimcininKorOglu/obaidx/internal/object"
	"github.com/KilimcininKorOglu/obaidx/internal/storage"
	"github.com/KilimcininKorOglu/obaidx/internal/storage/index"
)

func newTestServer(t *testing.T, opts Options) (*Server, *index.Manager) {
	t.Helper()
	m, err := index.NewManager(storage.NewMemoryStore(), index.ManagerOptions{Capacity: 4})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return NewServer(config.DefaultConfig().Server, m, opts), m
}

// do sends a request and decodes the JSON response into out when out is
// not nil.
func do(t *testing.T, s *Server, method, target, body string, out interface{}) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, target, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode response: %v", method, target, err)
		}
	}
	return resp
}

func expectError(t *testing.T, s *Server, method, target, body string, status int, code string) {
	t.Helper()
	var er ErrorResponse
	resp := do(t, s, method, target, body, &er)
	if resp.StatusCode != status {
		t.Errorf("%s %s status = %d, want %d", method, target, resp.StatusCode, status)
	}
	if er.Error != code {
		t.Errorf("%s %s error = %q, want %q (message %q)", method, target, er.Error, code, er.Message)
	}
	if er.Code != status {
		t.Errorf("%s %s code = %d, want %d", method, target, er.Code, status)
	}
}

func createIndex(t *testing.T, s *Server, name, keyType string, unique bool) {
	t.Helper()
	body, _ := json.Marshal(CreateIndexRequest{Name: name, KeyType: keyType, Unique: unique})
	resp := do(t, s, http.MethodPost, "/api/v1/indexes", string(body), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create index %q status = %d, want 201", name, resp.StatusCode)
	}
}

func putEntry(t *testing.T, s *Server, name, k, v string) {
	t.Helper()
	body, _ := json.Marshal(EntryRequest{Key: k, Value: v})
	resp := do(t, s, http.MethodPost, "/api/v1/indexes/"+name+"/entries", string(body), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("put %s=%s status = %d, want 201", k, v, resp.StatusCode)
	}
}

// oddServer holds a unique int32 index "odd" with keys 1, 3, 5, 7, 9.
func oddServer(t *testing.T) (*Server, *index.Manager) {
	t.Helper()
	s, m := newTestServer(t, Options{})
	createIndex(t, s, "odd", "int32", true)
	for _, k := range []string{"5", "1", "9", "3", "7"} {
		putEntry(t, s, "odd", k, "v"+k)
	}
	return s, m
}

func entryKeys(es []Entry) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.Key
	}
	return out
}

// =============================================================================
// Health and Middleware
// =============================================================================

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	var h HealthResponse
	resp := do(t, s, http.MethodGet, "/api/v1/health", "", &h)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if h.Status != "healthy" {
		t.Errorf("Status = %q, want healthy", h.Status)
	}
	if h.Indexes != 0 {
		t.Errorf("Indexes = %d, want 0", h.Indexes)
	}
}

func TestRequestIDHeader(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	resp := do(t, s, http.MethodGet, "/api/v1/health", "", nil)
	if id := resp.Header.Get(logging.RequestIDHeader); !logging.ValidRequestID(id) {
		t.Errorf("generated request ID = %q, want a UUID", id)
	}

	const id = "0b9c2a4e-6d7f-4d3a-9b1e-2f8c5a7d6e10"
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set(logging.RequestIDHeader, id)
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(logging.RequestIDHeader); got != id {
		t.Errorf("echoed request ID = %q, want %q", got, id)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set(logging.RequestIDHeader, "not-a-uuid")
	resp, err = s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(logging.RequestIDHeader); got == "not-a-uuid" {
		t.Error("malformed client request ID was reused")
	}
}

func TestUnknownRoute(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	expectError(t, s, http.MethodGet, "/api/v1/nothing", "", http.StatusNotFound, "not_found")
}

func TestAuditMessage(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{"GET", "/api/v1/health", ""},
		{"POST", "/api/v1/indexes", "REST create index"},
		{"GET", "/api/v1/indexes", "REST list indexes"},
		{"DELETE", "/api/v1/indexes/ages", "REST drop index"},
		{"POST", "/api/v1/indexes/ages/entries", "REST put entry"},
		{"GET", "/api/v1/indexes/ages/entries", "REST scan entries"},
		{"PUT", "/api/v1/indexes/ages/entries/30", "REST set entry"},
		{"DELETE", "/api/v1/indexes/ages/entries/30", "REST remove entry"},
		{"GET", "/api/v1/indexes/ages/entries/30", "REST get entry"},
		{"GET", "/api/v1/indexes/names/prefix/ab", "REST prefix search"},
		{"POST", "/api/v1/indexes/ages/clear", "REST clear index"},
		{"GET", "/other", "REST request"},
	}

	for _, tt := range tests {
		if got := auditMessage(tt.method, tt.path); got != tt.want {
			t.Errorf("auditMessage(%s, %s) = %q, want %q", tt.method, tt.path, got, tt.want)
		}
	}
}

// =============================================================================
// Index Management
// =============================================================================

func TestCreateAndListIndexes(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	createIndex(t, s, "names", "string", true)
	createIndex(t, s, "ages", "int32", false)

	var list IndexListResponse
	do(t, s, http.MethodGet, "/api/v1/indexes", "", &list)
	if len(list.Indexes) != 2 {
		t.Fatalf("len(Indexes) = %d, want 2", len(list.Indexes))
	}
	if list.Indexes[0].Name != "ages" || list.Indexes[1].Name != "names" {
		t.Errorf("Indexes = %+v, want ages then names", list.Indexes)
	}
	if list.Indexes[0].KeyType != "int32" || list.Indexes[0].Unique {
		t.Errorf("ages = %+v, want non-unique int32", list.Indexes[0])
	}

	var ir IndexResponse
	resp := do(t, s, http.MethodGet, "/api/v1/indexes/names", "", &ir)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get index status = %d, want 200", resp.StatusCode)
	}
	if !ir.Unique || ir.Stats == nil {
		t.Errorf("names = %+v, want unique with stats", ir)
	}
}

func TestCreateIndexErrors(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	createIndex(t, s, "ages", "int32", false)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"duplicate", `{"name":"ages","keyType":"int32"}`, http.StatusConflict, "index_exists"},
		{"bad key type", `{"name":"x","keyType":"complex"}`, http.StatusBadRequest, "unsupported_key_type"},
		{"empty name", `{"name":" ","keyType":"int32"}`, http.StatusBadRequest, "invalid_name"},
		{"bad json", `{"name":`, http.StatusBadRequest, "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, s, http.MethodPost, "/api/v1/indexes", tt.body, tt.status, tt.code)
		})
	}
}

func TestDropIndexReleasesValues(t *testing.T) {
	s, m := oddServer(t)

	durable, ok := m.Objects().(*object.Durable)
	if !ok {
		t.Fatalf("Objects() = %T, want *object.Durable", m.Objects())
	}
	if durable.Cached() != 5 {
		t.Fatalf("Cached() = %d, want 5", durable.Cached())
	}

	resp := do(t, s, http.MethodDelete, "/api/v1/indexes/odd", "", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("drop status = %d, want 204", resp.StatusCode)
	}
	if durable.Cached() != 0 {
		t.Errorf("Cached() after drop = %d, want 0", durable.Cached())
	}
	expectError(t, s, http.MethodGet, "/api/v1/indexes/odd", "", http.StatusNotFound, "index_not_found")
}

func TestClearIndex(t *testing.T) {
	s, _ := oddServer(t)

	resp := do(t, s, http.MethodPost, "/api/v1/indexes/odd/clear", "", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("clear status = %d, want 204", resp.StatusCode)
	}

	var cr CountResponse
	do(t, s, http.MethodGet, "/api/v1/indexes/odd/count", "", &cr)
	if cr.Count != 0 {
		t.Errorf("Count after clear = %d, want 0", cr.Count)
	}
	putEntry(t, s, "odd", "1", "again")
}

// =============================================================================
// Entries
// =============================================================================

func TestPutAndGet(t *testing.T) {
	s, _ := oddServer(t)

	var e Entry
	resp := do(t, s, http.MethodGet, "/api/v1/indexes/odd/entries/5", "", &e)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", resp.StatusCode)
	}
	if e.Key != "5" || e.Value != "v5" {
		t.Errorf("entry = %+v, want 5=v5", e)
	}

	var pr PutResponse
	resp = do(t, s, http.MethodPost, "/api/v1/indexes/odd/entries", `{"key":"5","value":"other"}`, &pr)
	if resp.StatusCode != http.StatusOK || pr.Inserted {
		t.Errorf("duplicate put = %d %+v, want 200 not inserted", resp.StatusCode, pr)
	}

	expectError(t, s, http.MethodGet, "/api/v1/indexes/odd/entries/4", "", http.StatusNotFound, "key_not_found")
	expectError(t, s, http.MethodGet, "/api/v1/indexes/odd/entries/abc", "", http.StatusBadRequest, "invalid_key")
	expectError(t, s, http.MethodGet, "/api/v1/indexes/none/entries/1", "", http.StatusNotFound, "index_not_found")
	expectError(t, s, http.MethodPost, "/api/v1/indexes/odd/entries", `{"value":"x"}`, http.StatusBadRequest, "missing_key")
}

func TestNonUniqueDuplicates(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	createIndex(t, s, "ages", "int32", false)
	putEntry(t, s, "ages", "30", "ada")
	putEntry(t, s, "ages", "30", "bob")
	putEntry(t, s, "ages", "40", "cy")

	expectError(t, s, http.MethodGet, "/api/v1/indexes/ages/entries/30", "", http.StatusConflict, "key_not_unique")

	var vr ValuesResponse
	do(t, s, http.MethodGet, "/api/v1/indexes/ages/entries/30?all=true", "", &vr)
	slices.Sort(vr.Values)
	if !slices.Equal(vr.Values, []string{"ada", "bob"}) {
		t.Errorf("Values = %v, want [ada bob]", vr.Values)
	}

	expectError(t, s, http.MethodPut, "/api/v1/indexes/ages/entries/30", `{"value":"z"}`,
		http.StatusBadRequest, "unique_required")

	var rr RemoveResponse
	do(t, s, http.MethodDelete, "/api/v1/indexes/ages/entries/30?value=bob", "", &rr)
	if !rr.Removed || rr.Value != "bob" {
		t.Errorf("remove pair = %+v, want bob removed", rr)
	}
	do(t, s, http.MethodDelete, "/api/v1/indexes/ages/entries/30?value=bob", "", &rr)
	if rr.Removed {
		t.Error("second remove of the same pair reported removed")
	}

	var e Entry
	do(t, s, http.MethodGet, "/api/v1/indexes/ages/entries/30", "", &e)
	if e.Value != "ada" {
		t.Errorf("remaining value = %q, want ada", e.Value)
	}
}

func TestSet(t *testing.T) {
	s, _ := oddServer(t)

	var sr SetResponse
	resp := do(t, s, http.MethodPut, "/api/v1/indexes/odd/entries/3", `{"value":"three"}`, &sr)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("replace status = %d, want 200", resp.StatusCode)
	}
	if !sr.Replaced || sr.Previous == nil || *sr.Previous != "v3" {
		t.Errorf("replace = %+v, want previous v3", sr)
	}

	sr = SetResponse{}
	resp = do(t, s, http.MethodPut, "/api/v1/indexes/odd/entries/4", `{"value":"four"}`, &sr)
	if resp.StatusCode != http.StatusCreated || sr.Replaced {
		t.Errorf("insert via set = %d %+v, want 201 not replaced", resp.StatusCode, sr)
	}

	var e Entry
	do(t, s, http.MethodGet, "/api/v1/indexes/odd/entries/3", "", &e)
	if e.Value != "three" {
		t.Errorf("value after set = %q, want three", e.Value)
	}
}

func TestSetKeySurvivesLaterRequests(t *testing.T) {
	s, m := newTestServer(t, Options{})
	createIndex(t, s, "names", "string", true)

	resp := do(t, s, http.MethodPut, "/api/v1/indexes/names/entries/mmmm", `{"value":"m"}`, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("set status = %d, want 201", resp.StatusCode)
	}
	for i := 0; i < 20; i++ {
		for _, k := range []string{"zzzz", "aaaa"} {
			do(t, s, http.MethodGet, "/api/v1/indexes/names/entries/"+k, "", nil)
		}
	}

	var er EntriesResponse
	do(t, s, http.MethodGet, "/api/v1/indexes/names/entries", "", &er)
	if got := entryKeys(er.Entries); !slices.Equal(got, []string{"mmmm"}) {
		t.Errorf("stored keys = %v, want [mmmm]", got)
	}

	ix, err := m.Index("names")
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if _, err := ix.Get(key.String("mmmm")); err != nil {
		t.Errorf("Get(mmmm) = %v, want found", err)
	}
	if err := ix.Check(); err != nil {
		t.Errorf("Check failed: %v", err)
	}
}

func TestRemove(t *testing.T) {
	s, _ := oddServer(t)

	var rr RemoveResponse
	resp := do(t, s, http.MethodDelete, "/api/v1/indexes/odd/entries/5", "", &rr)
	if resp.StatusCode != http.StatusOK || !rr.Removed || rr.Value != "v5" {
		t.Errorf("remove = %d %+v, want v5 removed", resp.StatusCode, rr)
	}

	expectError(t, s, http.MethodDelete, "/api/v1/indexes/odd/entries/5", "", http.StatusNotFound, "key_not_found")

	var cr CountResponse
	do(t, s, http.MethodGet, "/api/v1/indexes/odd/count", "", &cr)
	if cr.Count != 4 {
		t.Errorf("Count = %d, want 4", cr.Count)
	}
}

// =============================================================================
// Scans
// =============================================================================

func TestScan(t *testing.T) {
	s, _ := oddServer(t)

	tests := []struct {
		name    string
		query   string
		want    []string
		hasMore bool
	}{
		{"all", "", []string{"1", "3", "5", "7", "9"}, false},
		{"inclusive", "?from=3&till=7", []string{"3", "5", "7"}, false},
		{"exclusive", "?from=3&fromExclusive=true&till=7&tillExclusive=true", []string{"5"}, false},
		{"descending", "?order=desc", []string{"9", "7", "5", "3", "1"}, false},
		{"descending bounded", "?from=3&fromExclusive=true&order=desc", []string{"9", "7", "5"}, false},
		{"limit", "?order=desc&limit=2", []string{"9", "7"}, true},
		{"between keys", "?from=4&till=6", []string{"5"}, false},
		{"empty", "?from=10", []string{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var er EntriesResponse
			resp := do(t, s, http.MethodGet, "/api/v1/indexes/odd/entries"+tt.query, "", &er)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want 200", resp.StatusCode)
			}
			if got := entryKeys(er.Entries); !slices.Equal(got, tt.want) {
				t.Errorf("keys = %v, want %v", got, tt.want)
			}
			if er.HasMore != tt.hasMore {
				t.Errorf("HasMore = %v, want %v", er.HasMore, tt.hasMore)
			}
			if er.Count != len(tt.want) {
				t.Errorf("Count = %d, want %d", er.Count, len(tt.want))
			}
		})
	}

	expectError(t, s, http.MethodGet, "/api/v1/indexes/odd/entries?order=sideways", "",
		http.StatusBadRequest, "invalid_parameter")
	expectError(t, s, http.MethodGet, "/api/v1/indexes/odd/entries?limit=0", "",
		http.StatusBadRequest, "invalid_parameter")
	expectError(t, s, http.MethodGet, "/api/v1/indexes/odd/entries?from=x", "",
		http.StatusBadRequest, "invalid_key")
}

func TestPrefix(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	createIndex(t, s, "words", "string", true)
	for _, w := range []string{"abd", "b", "ab", "abc", "a"} {
		putEntry(t, s, "words", w, strings.ToUpper(w))
	}

	var er EntriesResponse
	do(t, s, http.MethodGet, "/api/v1/indexes/words/prefix/ab", "", &er)
	if got := entryKeys(er.Entries); !slices.Equal(got, []string{"ab", "abc", "abd"}) {
		t.Errorf("prefix ab = %v, want [ab abc abd]", got)
	}
	if er.Entries[1].Value != "ABC" {
		t.Errorf("value of abc = %q, want ABC", er.Entries[1].Value)
	}

	er = EntriesResponse{}
	do(t, s, http.MethodGet, "/api/v1/indexes/words/prefix/abcz?search=true", "", &er)
	if got := entryKeys(er.Entries); !slices.Equal(got, []string{"a", "ab", "abc"}) {
		t.Errorf("prefix search abcz = %v, want [a ab abc]", got)
	}

	createIndex(t, s, "odd", "int32", true)
	expectError(t, s, http.MethodGet, "/api/v1/indexes/odd/prefix/1", "",
		http.StatusBadRequest, "prefix_unsupported")
}

func TestRankAndPosition(t *testing.T) {
	s, _ := oddServer(t)

	var rr RankResponse
	do(t, s, http.MethodGet, "/api/v1/indexes/odd/rank/5", "", &rr)
	if rr.Rank != 2 {
		t.Errorf("rank of 5 = %d, want 2", rr.Rank)
	}

	var e Entry
	do(t, s, http.MethodGet, "/api/v1/indexes/odd/at/4", "", &e)
	if e.Key != "9" || e.Value != "v9" {
		t.Errorf("entry at 4 = %+v, want 9=v9", e)
	}

	expectError(t, s, http.MethodGet, "/api/v1/indexes/odd/at/5", "",
		http.StatusNotFound, "position_out_of_range")
	expectError(t, s, http.MethodGet, "/api/v1/indexes/odd/at/x", "",
		http.StatusBadRequest, "invalid_parameter")
}

// =============================================================================
// Flush, Check, Logs and Config
// =============================================================================

func TestFlushAndCheck(t *testing.T) {
	s, _ := oddServer(t)

	resp := do(t, s, http.MethodPost, "/api/v1/flush", "", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("flush status = %d, want 204", resp.StatusCode)
	}
	resp = do(t, s, http.MethodGet, "/api/v1/check", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("check status = %d, want 200", resp.StatusCode)
	}
}

func TestLogs(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	expectError(t, s, http.MethodGet, "/api/v1/logs", "", http.StatusServiceUnavailable, "logs_disabled")

	rec := logging.NewRecorder(50)
	log := logging.New(logging.Config{Level: "info", Format: "json", Writer: io.Discard, Recorder: rec})
	s, _ = newTestServer(t, Options{Logger: log, Recorder: rec})

	createIndex(t, s, "ages", "int32", false)
	do(t, s, http.MethodGet, "/api/v1/health", "", nil)

	var lr LogQueryResponse
	do(t, s, http.MethodGet, "/api/v1/logs?search=create+index", "", &lr)
	if lr.TotalCount != 1 {
		t.Fatalf("TotalCount = %d, want 1", lr.TotalCount)
	}
	if lr.Entries[0].Message != "REST create index" {
		t.Errorf("Message = %q, want REST create index", lr.Entries[0].Message)
	}
	if lr.Entries[0].RequestID == "" {
		t.Error("logged request has no request ID")
	}

	do(t, s, http.MethodGet, "/api/v1/logs?search=health", "", &lr)
	if lr.TotalCount != 0 {
		t.Errorf("health checks logged %d times, want 0", lr.TotalCount)
	}
}

func TestConfig(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	expectError(t, s, http.MethodGet, "/api/v1/config", "", http.StatusNotFound, "config_hidden")

	cfg := config.DefaultConfig()
	s, _ = newTestServer(t, Options{Settings: cfg})

	var got config.Config
	resp := do(t, s, http.MethodGet, "/api/v1/config", "", &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got.Server.Address != cfg.Server.Address {
		t.Errorf("Server.Address = %q, want %q", got.Server.Address, cfg.Server.Address)
	}
	if got.Storage.Backend != cfg.Storage.Backend {
		t.Errorf("Storage.Backend = %q, want %q", got.Storage.Backend, cfg.Storage.Backend)
	}
}
