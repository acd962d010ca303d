package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRun_MountsFieldsFromGatewayPayload(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/init" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"version":"1","data":"opaque"}`))
	}))
	defer server.Close()

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), options{
		gateway:  server.URL,
		recordID: " rec_1 ",
		aliases:  "a1, a2",
		timeout:  5 * time.Second,
		logLevel: "error",
	}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if received["recordId"] != "rec_1" {
		t.Fatalf("expected normalized record id forwarded, got %v", received)
	}
	out := stdout.String()
	for _, want := range []string{"state idle -> initializing", "init session=1", "mount session=1", "state initializing -> active", "destroy session=1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRun_ReportsGatewayFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal server error"}`))
	}))
	defer server.Close()

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), options{gateway: server.URL, recordID: "rec_1", timeout: time.Second, logLevel: "error"}, &stdout, &stderr)
	if err == nil {
		t.Fatalf("expected init failure")
	}
	if !strings.Contains(stdout.String(), "state initializing -> error") {
		t.Fatalf("expected error transition, got:\n%s", stdout.String())
	}
}

func TestRun_RequiresIdentifiers(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), options{gateway: "http://localhost:1", timeout: time.Second}, &stdout, &stderr); err == nil {
		t.Fatalf("expected missing identifier error")
	}
}
