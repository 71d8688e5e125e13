package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/recall-cli/internal/config"
	"github.com/sells-group/recall-cli/internal/model"
	"github.com/sells-group/recall-cli/internal/progress"
	"github.com/sells-group/recall-cli/internal/store"
)

type fakeRunner struct {
	st       store.Store
	proceed  chan struct{}
	executed chan string
}

func newFakeRunner(st store.Store) *fakeRunner {
	return &fakeRunner{
		st:       st,
		proceed:  make(chan struct{}),
		executed: make(chan string, 1),
	}
}

func (f *fakeRunner) NewRun(ctx context.Context, sourceFile string) (*model.Run, *progress.Broker, error) {
	run, err := f.st.CreateRun(ctx, sourceFile)
	if err != nil {
		return nil, nil, err
	}
	return run, progress.NewBroker(run.ID), nil
}

func (f *fakeRunner) Execute(ctx context.Context, run *model.Run, broker *progress.Broker, sourcePath string) (*model.RunResult, error) {
	<-f.proceed
	broker.Progress(50, "halfway")
	result := &model.RunResult{VINs: 2, ReportPath: sourcePath}
	if err := f.st.UpdateRunResult(ctx, run.ID, model.RunStatusComplete, result); err != nil {
		return nil, err
	}
	broker.Complete("done", result)
	f.executed <- run.ID
	return result, nil
}

func newTestServer(t *testing.T) (*Server, *fakeRunner, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	cfg := &config.Config{
		Server: config.ServerConfig{Port: 0, UploadDir: t.TempDir()},
	}
	runner := newFakeRunner(st)
	return New(cfg, st, runner), runner, st
}

func uploadRequest(t *testing.T, url string, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, url, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestCreateScan(t *testing.T) {
	s, runner, st := newTestServer(t)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	req := uploadRequest(t, ts.URL+"/api/scans/", "fleet.xlsx", []byte("not a real workbook"))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var accepted struct {
		RunID  string `json:"run_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&accepted))
	assert.NotEmpty(t, accepted.RunID)
	assert.Equal(t, string(model.RunStatusQueued), accepted.Status)

	close(runner.proceed)
	select {
	case id := <-runner.executed:
		assert.Equal(t, accepted.RunID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("scan never executed")
	}

	run, err := st.GetRun(context.Background(), accepted.RunID)
	require.NoError(t, err)
	assert.Equal(t, "fleet.xlsx", run.SourceFile)
}

func TestCreateScan_MissingFile(t *testing.T) {
	s, _, _ := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/scans/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetScan(t *testing.T) {
	s, _, st := newTestServer(t)

	run, err := st.CreateRun(context.Background(), "fleet.xlsx")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scans/"+run.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got model.Run
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, run.ID, got.ID)
}

func TestGetScan_NotFound(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scans/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListScans(t *testing.T) {
	s, _, st := newTestServer(t)
	ctx := context.Background()

	_, err := st.CreateRun(ctx, "a.xlsx")
	require.NoError(t, err)
	b, err := st.CreateRun(ctx, "b.xlsx")
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunStatus(ctx, b.ID, model.RunStatusComplete))

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scans/?status=complete", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []model.Run
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&runs))
	require.Len(t, runs, 1)
	assert.Equal(t, b.ID, runs[0].ID)
}

func TestScanEvents_LiveStream(t *testing.T) {
	s, runner, _ := newTestServer(t)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	req := uploadRequest(t, ts.URL+"/api/scans/", "fleet.xlsx", []byte("x"))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	var accepted struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&accepted))
	resp.Body.Close()

	stream, err := http.Get(ts.URL + "/api/scans/" + accepted.RunID + "/events")
	require.NoError(t, err)
	defer stream.Body.Close()
	assert.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

	close(runner.proceed)

	var kinds []string
	scanner := bufio.NewScanner(stream.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			kinds = append(kinds, strings.TrimPrefix(line, "event: "))
		}
	}
	require.NotEmpty(t, kinds)
	assert.Equal(t, "complete", kinds[len(kinds)-1])
}

func TestScanEvents_FinishedRun(t *testing.T) {
	s, _, st := newTestServer(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "fleet.xlsx")
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunResult(ctx, run.ID, model.RunStatusComplete, &model.RunResult{VINs: 1}))

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scans/"+run.ID+"/events", nil))

	body := rec.Body.String()
	assert.Contains(t, body, "event: complete")
	assert.Contains(t, body, "run complete")
}

func TestScanEvents_UnknownRun(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scans/nope/events", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
