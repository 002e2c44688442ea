// ABOUTME: Tests for the health command
// ABOUTME: Verifies health check output formatting and exit codes

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jschulte/usmax-nda-sub000/internal/client"
)

func TestFormatHealthHuman(t *testing.T) {
	resp := &client.HealthResponse{Status: "ok"}

	output := formatHealthHuman("http://localhost:8080", resp)

	if !bytes.Contains([]byte(output), []byte("http://localhost:8080")) {
		t.Error("expected output to contain auth service URL")
	}
	if !bytes.Contains([]byte(output), []byte("Status:")) {
		t.Error("expected output to contain status label")
	}
}

func TestFormatHealthJSON(t *testing.T) {
	resp := &client.HealthResponse{Status: "ok"}

	output := formatHealthJSON("http://localhost:8080", resp)

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(output), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if parsed["auth_service"] != "http://localhost:8080" {
		t.Errorf("expected auth service URL in JSON, got %v", parsed["auth_service"])
	}
	if parsed["status"] != "ok" {
		t.Errorf("expected status ok, got %v", parsed["status"])
	}
}

func TestHealthCommand_Success(t *testing.T) {
	resetFlags(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != client.PathHealth {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(client.HealthResponse{Status: "ok"})
	}))
	defer server.Close()
	apiURL = server.URL

	var buf bytes.Buffer
	exitCode := runHealth(context.Background(), &buf)

	if exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
	if !bytes.Contains(buf.Bytes(), []byte("ok")) {
		t.Error("expected ok in output")
	}
}

func TestHealthCommand_Unhealthy(t *testing.T) {
	resetFlags(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(client.ErrorResponse{Error: "database unavailable"})
	}))
	defer server.Close()
	apiURL = server.URL

	var buf bytes.Buffer
	exitCode := runHealth(context.Background(), &buf)

	if exitCode != 2 {
		t.Errorf("expected exit code 2, got %d", exitCode)
	}
	if !bytes.Contains(buf.Bytes(), []byte("database unavailable")) {
		t.Errorf("expected server message in output, got %q", buf.String())
	}
}

func TestHealthCommand_ConnectionError(t *testing.T) {
	resetFlags(t)
	apiURL = "http://localhost:99999"

	var buf bytes.Buffer
	exitCode := runHealth(context.Background(), &buf)

	if exitCode != 2 {
		t.Errorf("expected exit code 2, got %d", exitCode)
	}
	if !bytes.Contains(buf.Bytes(), []byte("Error:")) {
		t.Error("expected error message in output")
	}
}
