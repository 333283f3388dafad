package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "stash.yml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func fixedNow() time.Time {
	return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
}

func TestRun_MinimalGET_Exit0(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfg := writeConfig(t, dir, `
StashConfig:
  Name: Mini
  Defaults:
    URLRoot: `+srv.URL+`
    FlowControl: {DelaySeconds: 0, TimeoutSeconds: 5}
  Sequences:
    - Name: Solo
      Type: Sequential
      Requests:
        - Ping: {Method: GET, URLPath: /health}
`)
	res, err := Run(context.Background(), Options{ConfigPath: cfg, OutDir: dir, Now: fixedNow})
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != ExitSuccess {
		t.Fatalf("expected exit 0, got %d", res.ExitCode)
	}
	entries, _ := os.ReadDir(filepath.Join(res.RunDir, "seq001-Solo"))
	if len(entries) != 1 {
		t.Fatalf("expected one response file, got %v", entries)
	}
}

func TestRun_NonSuccessStatus_Exit1(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfg := writeConfig(t, dir, `
StashConfig:
  Name: NotFound
  Defaults:
    URLRoot: `+srv.URL+`
    FlowControl: {DelaySeconds: 0, TimeoutSeconds: 5}
  Sequences:
    - Name: Solo
      Type: Sequential
      Requests:
        - Ping: {Method: GET, URLPath: /missing}
`)
	res, err := Run(context.Background(), Options{ConfigPath: cfg, OutDir: dir, Now: fixedNow})
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != ExitRequestFailure {
		t.Fatalf("expected exit 1, got %d", res.ExitCode)
	}
}

func TestRun_ValidationError(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, `
StashConfig:
  Name: ""
  Defaults:
    URLRoot: https://x
    FlowControl: {DelaySeconds: 0, TimeoutSeconds: 5}
  Sequences: []
`)
	_, err := Run(context.Background(), Options{ConfigPath: cfg, OutDir: dir, Now: fixedNow})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestRun_DryRun_SkipsExecutorRecordsStatus0(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, `
StashConfig:
  Name: Dry
  Defaults:
    URLRoot: https://example.invalid
    FlowControl: {DelaySeconds: 0, TimeoutSeconds: 5}
  Sequences:
    - Name: Solo
      Type: Sequential
      Requests:
        - Ping: {Method: GET, URLPath: /health}
`)
	res, err := Run(context.Background(), Options{ConfigPath: cfg, OutDir: dir, DryRun: true, Now: fixedNow})
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != ExitSuccess {
		t.Fatalf("expected exit 0 for dry run, got %d", res.ExitCode)
	}
}

func TestRun_SkipExecution_OnlyWritesResolvedConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, `
StashConfig:
  Name: ValidateOnly
  Defaults:
    URLRoot: https://example.invalid
    FlowControl: {DelaySeconds: 0, TimeoutSeconds: 5}
  Sequences:
    - Name: Solo
      Type: Sequential
      Requests:
        - Ping: {Method: GET, URLPath: /health}
`)
	res, err := Run(context.Background(), Options{ConfigPath: cfg, OutDir: dir, SkipExecution: true, Now: fixedNow})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(res.RunDir, "stash-resolved.yml")); err != nil {
		t.Fatalf("expected resolved config written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(res.RunDir, "stash-log.txt")); err == nil {
		t.Fatal("expected no log file to be written when SkipExecution is set")
	}
}

func TestRun_SecretReference_NoSecretsFile_FailsBeforeDispatch(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, `
StashConfig:
  Name: NeedsSecret
  Defaults:
    URLRoot: https://example.invalid
    FlowControl: {DelaySeconds: 0, TimeoutSeconds: 5}
    Headers:
      Authorization:
        $secrets: API_KEY
  Sequences:
    - Name: Solo
      Type: Sequential
      Requests:
        - Ping: {Method: GET, URLPath: /health}
`)
	_, err := Run(context.Background(), Options{ConfigPath: cfg, OutDir: dir, Now: fixedNow})
	if err == nil {
		t.Fatal("expected run without --secrets to fail resolving a $secrets reference rather than redact it into a live request")
	}
}

func TestRun_SkipExecution_SecretReference_NoSecretsFile_Redacts(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, `
StashConfig:
  Name: NeedsSecret
  Defaults:
    URLRoot: https://example.invalid
    FlowControl: {DelaySeconds: 0, TimeoutSeconds: 5}
    Headers:
      Authorization:
        $secrets: API_KEY
  Sequences:
    - Name: Solo
      Type: Sequential
      Requests:
        - Ping: {Method: GET, URLPath: /health}
`)
	res, err := Run(context.Background(), Options{ConfigPath: cfg, OutDir: dir, SkipExecution: true, Now: fixedNow})
	if err != nil {
		t.Fatalf("expected validate/resolve (SkipExecution) to redact rather than fail: %v", err)
	}
	if res.ExitCode != ExitSuccess {
		t.Fatalf("expected exit 0, got %d", res.ExitCode)
	}
}
