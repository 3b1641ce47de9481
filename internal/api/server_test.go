package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/nerrad567/graystore/internal/infrastructure/config"
	"github.com/nerrad567/graystore/internal/infrastructure/logging"
	"github.com/nerrad567/graystore/orm"
)

type fakeStore struct {
	databases []string
	schemas   map[string][]orm.TableSchema
	schemaErr error
	healthErr error
}

func (f *fakeStore) Databases() []string { return f.databases }

func (f *fakeStore) Schemas(_ context.Context, name string) ([]orm.TableSchema, error) {
	if f.schemaErr != nil {
		return nil, f.schemaErr
	}
	s, ok := f.schemas[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", orm.ErrUnknownDatabase, name)
	}
	return s, nil
}

func (f *fakeStore) HealthCheck(context.Context) error { return f.healthErr }

type fakeCheck struct{ err error }

func (f fakeCheck) HealthCheck(context.Context) error { return f.err }

func testLogger() *logging.Logger {
	return logging.NewWithWriter(io.Discard, config.LoggingConfig{Level: "error"}, "test")
}

func testServer(t *testing.T, store Store, checks map[string]HealthChecker) *Server {
	t.Helper()
	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			CORS: config.CORSConfig{AllowedOrigins: []string{"http://admin.local"}},
		},
		Logger:  testLogger(),
		Store:   store,
		Checks:  checks,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func sampleStore() *fakeStore {
	return &fakeStore{
		databases: []string{"orm_default.sqlite"},
		schemas: map[string][]orm.TableSchema{
			"orm_default.sqlite": {
				{Name: "orm_Item_t", Version: 1, Columns: []string{"Name", "Index"}},
			},
			"empty.sqlite": nil,
		},
	}
}

func TestNewRequiresDeps(t *testing.T) {
	if _, err := New(Deps{Store: sampleStore()}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: testLogger()}); err == nil {
		t.Error("New() without store should fail")
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		store      *fakeStore
		checks     map[string]HealthChecker
		wantStatus int
		wantBody   string
	}{
		{"healthy", sampleStore(), map[string]HealthChecker{"mqtt": fakeCheck{}}, http.StatusOK, "ok"},
		{"store down", &fakeStore{healthErr: errors.New("disk gone")}, nil, http.StatusServiceUnavailable, "degraded"},
		{"collaborator down", sampleStore(), map[string]HealthChecker{"influxdb": fakeCheck{errors.New("ping failed")}}, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, testServer(t, tt.store, tt.checks).Handler(), "/api/v1/health")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			resp := decode[HealthResponse](t, rec)
			if resp.Status != tt.wantBody || resp.Version != "test" {
				t.Errorf("response = %+v", resp)
			}
			if _, ok := resp.Components["store"]; !ok {
				t.Error("store component missing")
			}
		})
	}
}

func TestListDatabases(t *testing.T) {
	rec := get(t, testServer(t, sampleStore(), nil).Handler(), "/api/v1/databases")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[DatabaseList](t, rec)
	if len(resp.Databases) != 1 || resp.Databases[0] != "orm_default.sqlite" {
		t.Errorf("databases = %v", resp.Databases)
	}
}

func TestTables(t *testing.T) {
	h := testServer(t, sampleStore(), nil).Handler()

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"list", "/api/v1/databases/orm_default.sqlite/tables", http.StatusOK},
		{"list empty", "/api/v1/databases/empty.sqlite/tables", http.StatusOK},
		{"get", "/api/v1/databases/orm_default.sqlite/tables/orm_Item_t", http.StatusOK},
		{"unknown table", "/api/v1/databases/orm_default.sqlite/tables/missing", http.StatusNotFound},
		{"unknown database", "/api/v1/databases/missing.sqlite/tables", http.StatusNotFound},
		{"hidden file", "/api/v1/databases/.secret/tables", http.StatusBadRequest},
		{"traversal", "/api/v1/databases/..%2Fetc%2Fpasswd/tables", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.path)
			if rec.Code != tt.wantStatus {
				t.Errorf("GET %s status = %d, want %d: %s", tt.path, rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}

	rec := get(t, h, "/api/v1/databases/orm_default.sqlite/tables")
	list := decode[TableList](t, rec)
	if list.Database != "orm_default.sqlite" || len(list.Tables) != 1 || list.Tables[0].Version != 1 {
		t.Errorf("table list = %+v", list)
	}

	rec = get(t, h, "/api/v1/databases/empty.sqlite/tables")
	if !strings.Contains(rec.Body.String(), `"tables":[]`) {
		t.Errorf("empty table list = %s", rec.Body.String())
	}
}

func TestTablesUnavailable(t *testing.T) {
	store := sampleStore()
	store.schemaErr = fmt.Errorf("%w: key missing", orm.ErrConnectionUnavailable)
	rec := get(t, testServer(t, store, nil).Handler(), "/api/v1/databases/orm_default.sqlite/tables")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if e := decode[Error](t, rec); e.Code != ErrCodeUnavailable {
		t.Errorf("error = %+v", e)
	}
}

func TestMetricsEndpoints(t *testing.T) {
	h := testServer(t, sampleStore(), nil).Handler()

	rec := get(t, h, "/api/v1/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/metrics status = %d", rec.Code)
	}
	if m := decode[SystemMetrics](t, rec); m.OpenDatabases != 1 || m.Runtime.Goroutines == 0 {
		t.Errorf("metrics = %+v", m)
	}

	rec = get(t, h, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("Prometheus output missing runtime metrics")
	}
}

func TestMiddleware(t *testing.T) {
	h := testServer(t, sampleStore(), nil).Handler()

	t.Run("request id generated", func(t *testing.T) {
		rec := get(t, h, "/api/v1/health")
		if rec.Header().Get("X-Request-ID") == "" {
			t.Error("X-Request-ID header missing")
		}
	})

	t.Run("request id kept", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		req.Header.Set("X-Request-ID", "abc")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if got := rec.Header().Get("X-Request-ID"); got != "abc" {
			t.Errorf("X-Request-ID = %q, want abc", got)
		}
	})

	t.Run("cors allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/databases", nil)
		req.Header.Set("Origin", "http://admin.local")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("preflight status = %d", rec.Code)
		}
		if rec.Header().Get("Access-Control-Allow-Origin") != "http://admin.local" {
			t.Error("allowed origin not echoed")
		}
	})

	t.Run("cors denied", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/databases", nil)
		req.Header.Set("Origin", "http://evil.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("foreign origin allowed")
		}
	})
}

func TestRecovery(t *testing.T) {
	srv := testServer(t, sampleStore(), nil)
	h := srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := get(t, h, "/")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

type Widget struct {
	ID   int `orm:",pk"`
	Name string
}

func TestWithManager(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "other.sqlite"), nil, 0o600); err != nil {
		t.Fatalf("writing file: %v", err)
	}
	m := orm.New(orm.Config{Dir: dir})
	defer m.Close()

	if err := orm.Push(ctx, m, Widget{ID: 1, Name: "gear"}); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	h := testServer(t, m, nil).Handler()
	rec := get(t, h, "/api/v1/databases/"+orm.DefaultDatabase+"/tables/orm_Widget_t")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	schema := decode[orm.TableSchema](t, rec)
	if len(schema.Columns) != 2 {
		t.Errorf("schema = %+v", schema)
	}

	rec = get(t, h, "/api/v1/databases/other.sqlite/tables")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unmanaged file status = %d, want 404", rec.Code)
	}
	info, err := os.Stat(filepath.Join(dir, "other.sqlite"))
	if err != nil || info.Size() != 0 {
		t.Errorf("unmanaged file was modified: %v, %v", info, err)
	}
}

func TestStartClose(t *testing.T) {
	srv := testServer(t, sampleStore(), nil)
	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Close()

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
