// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package devserver

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T, outputDir string, metrics *Metrics) *Server {
	t.Helper()
	server, err := NewServer(ServerConfig{
		Addr:      "127.0.0.1:0",
		OutputDir: outputDir,
		Metrics:   metrics,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	return server
}

func TestServerServesOutput(t *testing.T) {
	outputDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outputDir, "main.bundle.js"), []byte("// bundle\n"), 0644))

	server := testServer(t, outputDir, nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/main.bundle.js")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "// bundle\n", string(body))

	resp, err = http.Get(ts.URL + "/absent.js")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServerHealth(t *testing.T) {
	server := testServer(t, t.TempDir(), nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServerMetrics(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveBuild(125*time.Millisecond, nil)
	metrics.ObserveBuild(250*time.Millisecond, errors.New("boom"))
	metrics.ObserveModule()
	metrics.ObserveArtifact(1024)

	server := testServer(t, t.TempDir(), metrics)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "modbundle_builds_total 2")
	assert.Contains(t, string(body), "modbundle_build_failures_total 1")
	assert.Contains(t, string(body), "modbundle_modules_processed_total 1")
	assert.Contains(t, string(body), "modbundle_artifact_bytes_total 1024")
}

func TestServerConfigValidation(t *testing.T) {
	_, err := NewServer(ServerConfig{OutputDir: t.TempDir()})
	assert.Error(t, err)
	_, err = NewServer(ServerConfig{Addr: "127.0.0.1:0"})
	assert.Error(t, err)
}
