package web

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/csvimport/internal/config"
	"github.com/JonMunkholm/csvimport/internal/core"
	"github.com/JonMunkholm/csvimport/internal/mapping"
)

const testTarget = "web_contacts"

type uploadFile struct {
	name string
	data string
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, RequestTimeout: 5 * time.Second, ShutdownTimeout: time.Second},
		Import: config.ImportConfig{
			MaxFileSize:        1024,
			MaxConcurrent:      2,
			MaxWaitTime:        time.Second,
			SessionTTL:         time.Minute,
			PreviewRows:        5,
			AnalyzeParallelism: 2,
			MaxAnalyzeFiles:    3,
		},
		Rate:     config.RateLimitConfig{Enabled: false},
		Security: config.SecurityConfig{EnableCSP: true},
		Logging:  config.LoggingConfig{Level: "error", Format: "text"},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()

	require.NoError(t, core.Replace(core.Target{
		Key:   testTarget,
		Label: "Contacts",
		Fields: []mapping.Field{
			{Name: "email", Label: "Email", Required: true},
			{Name: "name", Label: "Full Name"},
		},
	}))

	svc := core.NewService(core.ServiceConfig{
		MaxFileSize:        cfg.Import.MaxFileSize,
		MaxConcurrent:      cfg.Import.MaxConcurrent,
		MaxWaitTime:        cfg.Import.MaxWaitTime,
		SessionTTL:         cfg.Import.SessionTTL,
		PreviewRows:        cfg.Import.PreviewRows,
		AnalyzeParallelism: cfg.Import.AnalyzeParallelism,
	}, nil)

	ts := httptest.NewServer(NewServer(svc, cfg).Router())
	t.Cleanup(ts.Close)
	return ts
}

func multipartBody(t *testing.T, fields map[string]string, files ...uploadFile) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		part, err := mw.CreateFormFile("file", f.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.data))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func openSession(t *testing.T, ts *httptest.Server, data string) core.Snapshot {
	t.Helper()

	body, ctype := multipartBody(t, map[string]string{"target": testTarget}, uploadFile{name: "contacts.csv", data: data})
	resp, err := http.Post(ts.URL+"/api/sessions", ctype, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var snap core.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	return snap
}

func TestHealthAndReferenceData(t *testing.T) {
	ts := newTestServer(t, testConfig())

	var health map[string]string
	resp := doJSON(t, http.MethodGet, ts.URL+"/healthz", nil, &health)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get("Content-Security-Policy"))

	var encodings []map[string]any
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/encodings", nil, &encodings)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, encodings)

	var delimiters []map[string]string
	doJSON(t, http.MethodGet, ts.URL+"/api/delimiters", nil, &delimiters)
	require.Len(t, delimiters, 4)
	assert.Equal(t, ",", delimiters[0]["value"])

	var targets []core.Target
	doJSON(t, http.MethodGet, ts.URL+"/api/targets", nil, &targets)
	var keys []string
	for _, tg := range targets {
		keys = append(keys, tg.Key)
	}
	assert.Contains(t, keys, testTarget)
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t, testConfig())

	snap := openSession(t, ts, "Contact;Full Name\na@x.com;Ann\nb@x.com;Bob\n")
	assert.Equal(t, ";", snap.Options.Delimiter)
	assert.Equal(t, []string{"Contact", "Full Name"}, snap.Headers)
	assert.Equal(t, "Full Name", snap.Mapping["name"])
	assert.False(t, snap.Ready)

	base := ts.URL + "/api/sessions/" + snap.ID

	var errResp ErrorResponse
	resp := doJSON(t, http.MethodGet, base+"/records", nil, &errResp)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "MAP001", errResp.Code)

	resp = doJSON(t, http.MethodPut, base+"/mapping/email", map[string]string{"header": "Nope"}, &errResp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "MAP003", errResp.Code)

	var updated core.Snapshot
	resp = doJSON(t, http.MethodPut, base+"/mapping/email", map[string]string{"header": "Contact"}, &updated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, updated.Ready)

	var records struct {
		Count   int              `json:"count"`
		Records []map[string]any `json:"records"`
	}
	resp = doJSON(t, http.MethodGet, base+"/records", nil, &records)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, records.Count)
	assert.Equal(t, "b@x.com", records.Records[1]["email"])

	resp = doJSON(t, http.MethodPut, base+"/options", map[string]any{"delimiter": ","}, &updated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, updated.Headers, 1)
	assert.Empty(t, updated.Mapping["email"])

	resp = doJSON(t, http.MethodPut, base+"/options", map[string]any{"delimiter": "::"}, &errResp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "PARSE001", errResp.Code)

	resp = doJSON(t, http.MethodPut, base+"/encoding", map[string]string{"encoding": "klingon"}, &errResp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "ENC001", errResp.Code)

	resp = doJSON(t, http.MethodPut, base+"/encoding", map[string]string{"encoding": "iso-8859-1"}, &updated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, updated.Encoding.Chosen)

	resp = doJSON(t, http.MethodDelete, base+"/mapping", nil, &updated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, updated.Mapping["name"])

	resp = doJSON(t, http.MethodPost, base+"/automatch", nil, &updated)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, base, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, base, nil, &errResp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "SES001", errResp.Code)
}

func TestOpenSession_Errors(t *testing.T) {
	ts := newTestServer(t, testConfig())

	tests := []struct {
		name     string
		fields   map[string]string
		files    []uploadFile
		wantCode int
		wantErr  string
	}{
		{
			name:     "no file",
			fields:   map[string]string{"target": testTarget},
			wantCode: http.StatusBadRequest,
			wantErr:  "FILE003",
		},
		{
			name:     "empty file",
			fields:   map[string]string{"target": testTarget},
			files:    []uploadFile{{name: "empty.csv"}},
			wantCode: http.StatusBadRequest,
			wantErr:  "FILE002",
		},
		{
			name:     "unknown target",
			fields:   map[string]string{"target": "nope"},
			files:    []uploadFile{{name: "a.csv", data: "email\nx\n"}},
			wantCode: http.StatusNotFound,
			wantErr:  "MAP004",
		},
		{
			name:     "file over limit",
			fields:   map[string]string{"target": testTarget},
			files:    []uploadFile{{name: "big.csv", data: "email\n" + strings.Repeat("x", 2000)}},
			wantCode: http.StatusRequestEntityTooLarge,
			wantErr:  "FILE001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ctype := multipartBody(t, tt.fields, tt.files...)
			resp, err := http.Post(ts.URL+"/api/sessions", ctype, body)
			require.NoError(t, err)
			defer resp.Body.Close()

			var errResp ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.Equal(t, tt.wantErr, errResp.Code)
			assert.NotEmpty(t, errResp.Message)
		})
	}
}

func TestAnalyze(t *testing.T) {
	ts := newTestServer(t, testConfig())

	body, ctype := multipartBody(t, map[string]string{"target": testTarget},
		uploadFile{name: "a.csv", data: "email|Full Name\na@x.com|Ann\n"},
		uploadFile{name: "b.csv", data: ""},
	)
	resp, err := http.Post(ts.URL+"/api/analyze", ctype, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var results []core.FileAnalysis
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&results))
	require.Len(t, results, 2)
	assert.Equal(t, "a.csv", results[0].FileName)
	assert.Equal(t, "|", results[0].Delimiter)
	assert.Equal(t, "email", results[0].Mapping["email"])
	assert.Equal(t, "b.csv", results[1].FileName)
	assert.NotEmpty(t, results[1].Error)

	files := make([]uploadFile, 4)
	for i := range files {
		files[i] = uploadFile{name: "f.csv", data: "a\n1\n"}
	}
	body, ctype = multipartBody(t, nil, files...)
	resp2, err := http.Post(ts.URL+"/api/analyze", ctype, body)
	require.NoError(t, err)
	defer resp2.Body.Close()

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&errResp))
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
	assert.Equal(t, "FILE004", errResp.Code)
}

func TestTemplatesAPI(t *testing.T) {
	ts := newTestServer(t, testConfig())
	snap := openSession(t, ts, "Contact,Full Name\na@x.com,Ann\n")

	base := ts.URL + "/api/templates/" + testTarget

	var mapped core.Snapshot
	doJSON(t, http.MethodPut, ts.URL+"/api/sessions/"+snap.ID+"/mapping/email", map[string]string{"header": "Contact"}, &mapped)

	var tpl core.ImportTemplate
	resp := doJSON(t, http.MethodPost, base, map[string]string{"sessionId": snap.ID, "name": "Export A"}, &tpl)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Contact", tpl.Mapping["email"])

	var errResp ErrorResponse
	resp = doJSON(t, http.MethodPost, base, map[string]string{"sessionId": snap.ID, "name": "export a"}, &errResp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "TPL002", errResp.Code)

	resp = doJSON(t, http.MethodPost, base, map[string]string{"sessionId": snap.ID, "bogus": "x"}, &errResp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "REQ001", errResp.Code)

	var list []core.ImportTemplate
	doJSON(t, http.MethodGet, base, nil, &list)
	require.Len(t, list, 1)

	var matches []core.TemplateMatch
	doJSON(t, http.MethodGet, base+"/match?headers=contact,full%20name", nil, &matches)
	require.Len(t, matches, 1)
	assert.Equal(t, tpl.ID, matches[0].Template.ID)

	second := openSession(t, ts, "contact,full name\nb@x.com,Bob\n")
	require.NotNil(t, second.Template)
	assert.Equal(t, "contact", second.Mapping["email"])

	resp = doJSON(t, http.MethodDelete, base+"/"+tpl.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, base+"/"+tpl.ID, nil, &errResp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "TPL001", errResp.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2, UploadLimit: 1}
	ts := newTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		resp := doJSON(t, http.MethodGet, ts.URL+"/healthz", nil, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	var errResp ErrorResponse
	resp := doJSON(t, http.MethodGet, ts.URL+"/healthz", nil, &errResp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "RATE001", errResp.Code)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestIPRateLimiter_Refills(t *testing.T) {
	rl := newIPRateLimiter(60)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.lastCleanup = now

	for i := 0; i < 60; i++ {
		require.True(t, rl.allow("1.2.3.4"), "request %d", i)
	}
	assert.False(t, rl.allow("1.2.3.4"))
	assert.True(t, rl.allow("5.6.7.8"), "buckets are per IP")

	now = now.Add(time.Second)
	assert.True(t, rl.allow("1.2.3.4"), "one token per second refills")

	now = now.Add(visitorTTL + time.Second)
	rl.allow("9.9.9.9")
	assert.Len(t, rl.visitors, 1, "idle visitors are dropped")
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	ts := newTestServer(t, cfg)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/targets", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/targets", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
