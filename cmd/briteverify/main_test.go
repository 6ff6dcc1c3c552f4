package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/samvad-hq/briteverify-go/internal/fakeapi"
)

func runCLI(t *testing.T, srvURL string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	common := []string{
		"--api-key", "cli-key",
		"--v1-base-url", srvURL + "/api/v1",
		"--v3-base-url", srvURL + "/api/v3",
		"--storage-type", "bbolt",
		"--bbolt-path", filepath.Join(t.TempDir(), "jobs.db"),
		"--poll-interval", "1",
		"--poll-timeout", "10",
	}
	var out bytes.Buffer
	full := append([]string{args[0]}, append(common, args[1:]...)...)
	err := run(full, &out)
	return out.String(), err
}

func fakeServer(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := httptest.NewServer(fakeapi.New(fakeapi.Options{APIKey: "cli-key", Credits: 1200}).Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestRunUsageAndUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	if err := run(nil, &out); err != nil || !strings.Contains(out.String(), "usage: briteverify") {
		t.Fatalf("usage: %q, %v", out.String(), err)
	}
	if err := run([]string{"frobnicate"}, &out); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestRunBalance(t *testing.T) {
	out, err := runCLI(t, fakeServer(t), "balance")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	var got struct {
		Credits int `json:"credits"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got.Credits != 1200 {
		t.Fatalf("credits = %d", got.Credits)
	}
}

func TestRunVerifyAndBulk(t *testing.T) {
	url := fakeServer(t)

	out, err := runCLI(t, url, "verify", "someone@nowhere.invalid")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !strings.Contains(out, `"invalid"`) {
		t.Fatalf("verify output = %s", out)
	}

	file := writeFile(t, "contacts.csv", "email,external_id\na@example.com,r-1\nbounce@example.com,r-2\n")
	out, err = runCLI(t, url, "bulk", "--file", file)
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	var outcome struct {
		Results []map[string]any `json:"results"`
	}
	if err := json.Unmarshal([]byte(out), &outcome); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(outcome.Results) != 2 {
		t.Fatalf("bulk results = %+v", outcome.Results)
	}
}

func TestRunRejectsBadArguments(t *testing.T) {
	url := fakeServer(t)
	if _, err := runCLI(t, url, "status"); err == nil {
		t.Fatalf("status without id should fail")
	}
	if _, err := runCLI(t, url, "lists", "--date", "yesterday"); err == nil {
		t.Fatalf("bad --date should fail")
	}
	if _, err := runCLI(t, url, "bulk"); err == nil {
		t.Fatalf("bulk without contacts should fail")
	}
}
