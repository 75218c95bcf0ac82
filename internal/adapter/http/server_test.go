package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/oceansentinel/threat-scoring/internal/adapter/http"
	"github.com/oceansentinel/threat-scoring/internal/domain"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockScorer struct {
	err error
}

func (m *mockScorer) ScoreBatch(_ context.Context, batch domain.Batch) (*domain.ScoringReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	report := domain.NewReport(batch.Location)
	report.BranchStatus["anomaly"] = domain.BranchOK
	return report, nil
}

func newTestServer(readyErr, scoreErr error) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, &mockScorer{err: scoreErr}, slog.Default())
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(fmt.Errorf("not ready yet"), nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestScoreEndpoint(t *testing.T) {
	batchJSON := `{
		"location": {"lat": 29.76, "lon": -95.37},
		"records": [{"timestamp": "2024-04-26T06:00:00Z", "temperature": 22}]
	}`

	t.Run("returns the scored report", func(t *testing.T) {
		srv := newTestServer(nil, nil)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/score", strings.NewReader(batchJSON))

		srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var report domain.ScoringReport
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
		assert.NotEmpty(t, report.ID)
		assert.InDelta(t, 29.76, report.Location.Lat, 1e-9)
	})

	t.Run("rejects malformed payloads", func(t *testing.T) {
		srv := newTestServer(nil, nil)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/score", strings.NewReader("not json"))

		srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Contains(t, body["error"], "malformed reading batch")
	})

	t.Run("propagates scoring failure", func(t *testing.T) {
		srv := newTestServer(nil, errors.New("latitude 999 out of range"))
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/score", strings.NewReader(batchJSON))

		srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Contains(t, body["error"], "latitude")
	})

	t.Run("get is not allowed", func(t *testing.T) {
		srv := newTestServer(nil, nil)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/score", nil)

		srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}
