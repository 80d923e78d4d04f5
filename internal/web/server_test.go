package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/kartlog/internal/config"
	"github.com/JonMunkholm/kartlog/internal/core"
	"github.com/JonMunkholm/kartlog/internal/metrics"
	"github.com/JonMunkholm/kartlog/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUser = "driver-1"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, ShutdownTimeout: time.Second},
		Upload: config.UploadConfig{
			MaxFileSize:   1 << 20,
			MaxConcurrent: 1,
			MaxWaitTime:   50 * time.Millisecond,
			Timeout:       time.Minute,
		},
	}
}

func exportCSV(rows ...map[string]string) string {
	var b strings.Builder
	b.WriteString(strings.Join(core.ExpectedColumns, ","))
	for _, row := range rows {
		b.WriteString("\n")
		values := make([]string, len(core.ExpectedColumns))
		for i, col := range core.ExpectedColumns {
			values[i] = row[col]
		}
		b.WriteString(strings.Join(values, ","))
	}
	return b.String()
}

func seededStore() *memory.Store {
	s := memory.New()
	s.AddReference(core.KindTrack, testUser, "PFI")
	s.AddReference(core.KindTyre, testUser, "MG Red")
	s.AddReference(core.KindEngine, testUser, "X30 #1")
	return s
}

func newTestServer(t *testing.T, store *memory.Store, cfg *config.Config) (*Server, *metrics.Manager) {
	t.Helper()
	m := metrics.NewManager()
	importer := core.NewImporter(store, store, core.Options{Recorder: m, Location: time.UTC})
	return NewServer(cfg, Deps{Importer: importer, Metrics: m}), m
}

var goodRow = map[string]string{
	core.ColID: "1", core.ColDate: "1708819200000", core.ColCircuit: "PFI",
	core.ColSession: "Heat 1", core.ColTyres: "MG Red", core.ColEngine: "X30 #1",
	core.ColLaps: "12", core.ColRace: "Y",
}

func TestHandleImport_RawBody(t *testing.T) {
	store := seededStore()
	srv, _ := newTestServer(t, store, testConfig())

	bad := map[string]string{core.ColID: "2", core.ColCircuit: "Unknown", core.ColTyres: "MG Red", core.ColEngine: "X30 #1"}
	req := httptest.NewRequest(http.MethodPost, "/api/imports/"+testUser, strings.NewReader(exportCSV(goodRow, bad)))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var summary core.RunSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&summary))
	assert.Equal(t, testUser, summary.UserID)
	assert.Equal(t, 2, summary.InputRows)
	assert.Equal(t, 1, summary.Uploaded)
	assert.Equal(t, 1, summary.Skipped)
	require.Len(t, summary.Skips, 1)
	assert.Equal(t, "REF002", summary.Skips[0].Code)
	assert.Len(t, store.Sessions(), 1)
}

func TestHandleImport_Multipart(t *testing.T) {
	store := seededStore()
	srv, _ := newTestServer(t, store, testConfig())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "Logbook - Log.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(exportCSV(goodRow)))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/imports/"+testUser, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, store.Sessions(), 1)
}

func TestHandleImport_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		setup  func(*memory.Store)
		status int
		code   string
	}{
		{"commit failure", exportCSV(goodRow), func(s *memory.Store) {
			s.FailCommitsAfter(0, errors.New("connection reset by peer"))
		}, http.StatusBadGateway, "BAT001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := seededStore()
			if tt.setup != nil {
				tt.setup(store)
			}
			srv, _ := newTestServer(t, store, testConfig())

			req := httptest.NewRequest(http.MethodPost, "/api/imports/"+testUser, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)

			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestHandleImport_EmptyExports(t *testing.T) {
	for name, body := range map[string]string{
		"empty":       "",
		"header only": strings.Join(core.ExpectedColumns, ","),
	} {
		t.Run(name, func(t *testing.T) {
			store := seededStore()
			srv, _ := newTestServer(t, store, testConfig())

			req := httptest.NewRequest(http.MethodPost, "/api/imports/"+testUser, strings.NewReader(body))
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var summary core.RunSummary
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&summary))
			assert.Zero(t, summary.InputRows)
			assert.Zero(t, summary.Uploaded)
			assert.Empty(t, store.Sessions())
		})
	}
}

func TestHandleImport_MultipartWithoutFile(t *testing.T) {
	srv, _ := newTestServer(t, seededStore(), testConfig())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("note", "no export attached"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/imports/"+testUser, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "SET001", resp.Code)
}

func TestHandleImport_CommitFailureIncludesSummary(t *testing.T) {
	store := seededStore()
	store.FailCommitsAfter(0, errors.New("boom"))
	srv, _ := newTestServer(t, store, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/imports/"+testUser, strings.NewReader(exportCSV(goodRow)))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Summary)
	assert.Equal(t, 0, resp.Summary.Uploaded)
	assert.Equal(t, 1, resp.Summary.Succeeded)
}

func TestHandleImport_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxFileSize = 16
	srv, _ := newTestServer(t, seededStore(), cfg)

	req := httptest.NewRequest(http.MethodPost, "/api/imports/"+testUser, strings.NewReader(exportCSV(goodRow)))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHandleImport_LimitReached(t *testing.T) {
	srv, _ := newTestServer(t, seededStore(), testConfig())
	require.NoError(t, srv.limiter.Acquire(context.Background()))
	defer srv.limiter.Release()

	req := httptest.NewRequest(http.MethodPost, "/api/imports/"+testUser, strings.NewReader(exportCSV(goodRow)))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "IMP001", resp.Code)
}

func TestHandleImport_APIKey(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	srv, _ := newTestServer(t, seededStore(), cfg)

	req := httptest.NewRequest(http.MethodPost, "/api/imports/"+testUser, strings.NewReader(exportCSV(goodRow)))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/imports/"+testUser, strings.NewReader(exportCSV(goodRow)))
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestHandleHealth(t *testing.T) {
	cfg := testConfig()

	srv := NewServer(cfg, Deps{DB: fakePinger{}})
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"ok"`)

	srv = NewServer(cfg, Deps{DB: fakePinger{err: errors.New("down")}})
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, seededStore(), testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/imports/"+testUser, strings.NewReader(exportCSV(goodRow)))
	srv.Router().ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "kartlog_import_sessions_uploaded_total 1")
	assert.Contains(t, rec.Body.String(), `route="/api/imports/{userID}"`)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(&core.SetupError{Op: "user id", Err: errors.New("x")}))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(&core.SetupError{Op: "read export", Err: errors.New("no such file")}))
	assert.Equal(t, http.StatusBadGateway, statusFor(&core.BatchCommitError{Err: errors.New("x")}))
	assert.Equal(t, http.StatusTooManyRequests, statusFor(ErrTooManyImports))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("x")))
}
