package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplier-pricing/internal/types"
)

type fakeExtractor struct {
	got []types.ProductConfiguration
	err error
}

func (f *fakeExtractor) Extract(ctx context.Context, configs []types.ProductConfiguration) (*types.BatchReport, error) {
	f.got = configs
	if f.err != nil {
		return nil, f.err
	}
	report := &types.BatchReport{ID: "batch"}
	for _, c := range configs {
		report.Results = append(report.Results, types.FailedResult(c, types.StepAuthenticate, &types.AuthenticationError{Supplier: c.Supplier, Reason: "no account"}))
	}
	report.Tally()
	return report, nil
}

func newTestServer(ext Extractor) *Server {
	return NewServer(types.DefaultConfig(), ext, logrus.New())
}

func post(t *testing.T, s *Server, body string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader(body)))
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestHandleExtract_Configurations(t *testing.T) {
	ext := &fakeExtractor{}
	rec, resp := post(t, newTestServer(ext), `{"supplier":"Supplier1","configurations":[{"product_type":"windows","width":36,"height":48,"material":"vinyl","color":"white"}]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	require.Len(t, ext.got, 1)
	assert.Equal(t, "supplier1", ext.got[0].Supplier)
	require.NotNil(t, resp.Data)
	assert.Equal(t, 1, resp.Data.Failed)
	require.NotNil(t, resp.Summary)
	assert.Equal(t, 1, resp.Summary.Total)
}

func TestHandleExtract_GeneratedMatrix(t *testing.T) {
	ext := &fakeExtractor{}
	rec, _ := post(t, newTestServer(ext), `{"supplier":"supplier3","product_type":"roofing","limit":4}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, ext.got, 4)
}

func TestHandleExtract_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		code int
	}{
		{"invalid body", `{`, nil, http.StatusBadRequest},
		{"empty", `{}`, nil, http.StatusBadRequest},
		{"unknown supplier", `{"supplier":"acme","product_type":"doors"}`, nil, http.StatusBadRequest},
		{"collision", `{"supplier":"supplier1","product_type":"doors","limit":1}`, &types.IntegrityError{Fingerprint: "abc"}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := post(t, newTestServer(&fakeExtractor{err: tt.err}), tt.body)
			assert.Equal(t, tt.code, rec.Code)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestHandleExtract_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&fakeExtractor{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/extract", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&fakeExtractor{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}
