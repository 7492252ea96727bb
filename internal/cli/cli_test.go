package cli

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"
)

const memoryConfig = `
http:
  port: 8000
backend:
  driver: memory
  collection: neural-search
  metric: %METRIC%
embedding:
  provider: hashing
  dimensions: 64
ingest:
  state_dir: %STATE%
logging:
  level: error
`

func writeConfig(t *testing.T, metric string) (path, stateDir string) {
	t.Helper()
	dir := t.TempDir()
	stateDir = filepath.Join(dir, "state")
	raw := strings.NewReplacer("%METRIC%", metric, "%STATE%", stateDir).Replace(memoryConfig)
	path = filepath.Join(dir, "nq.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}
	return path, stateDir
}

func execute(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&errOut)
	code = run(root, append([]string{"--env", "test", "--dotenv", ""}, args...), &errOut)
	return code, out.String(), errOut.String()
}

func TestVersion(t *testing.T) {
	code, out, _ := execute(t, "version")
	if code != 0 || !strings.HasPrefix(out, "neuralquery ") {
		t.Errorf("code %d, output %q", code, out)
	}
}

func TestIngest_MemoryBackend(t *testing.T) {
	cfgPath, stateDir := writeConfig(t, "cosine")

	code, out, errOut := execute(t, "--config", cfgPath, "ingest", "--no-progress")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, "Ingested 20 documents") {
		t.Errorf("unexpected output: %q", out)
	}
	if _, err := os.Stat(filepath.Join(stateDir, checkpointFile)); err != nil {
		t.Errorf("checkpoint db not written: %v", err)
	}
}

func TestIngest_ConfigurationError(t *testing.T) {
	cfgPath, _ := writeConfig(t, "hamming")

	code, _, errOut := execute(t, "--config", cfgPath, "ingest", "--no-progress")
	if code != 1 {
		t.Fatalf("exit = %d, want 1", code)
	}
	if !strings.HasPrefix(errOut, "Configuration Error: ") || !strings.Contains(errOut, "backend.metric") {
		t.Errorf("unexpected stderr: %q", errOut)
	}
}

func TestIngest_LockHeld(t *testing.T) {
	cfgPath, stateDir := writeConfig(t, "cosine")
	if err := os.MkdirAll(stateDir, 0o750); err != nil {
		t.Fatal(err)
	}
	held := flock.New(filepath.Join(stateDir, lockFile))
	if ok, err := held.TryLock(); err != nil || !ok {
		t.Fatalf("could not take lock: %v", err)
	}
	defer func() { _ = held.Unlock() }()

	code, _, errOut := execute(t, "--config", cfgPath, "ingest", "--no-progress")
	if code != 1 || !strings.Contains(errOut, "another ingestion run is in progress") {
		t.Errorf("exit %d, stderr %q", code, errOut)
	}
}

func TestSearch_Errors(t *testing.T) {
	cfgPath, _ := writeConfig(t, "cosine")

	code, _, errOut := execute(t, "--config", cfgPath, "search", "ab")
	if code != 1 || !strings.Contains(errOut, "query: must be at least 3 characters") {
		t.Errorf("validation: exit %d, stderr %q", code, errOut)
	}

	// Each invocation builds a fresh in-memory backend, so nothing is indexed.
	code, _, errOut = execute(t, "--config", cfgPath, "search", "docker", "images", "--top-k", "2")
	if code != 1 || !strings.Contains(errOut, "collection not found") {
		t.Errorf("empty backend: exit %d, stderr %q", code, errOut)
	}
}

func TestMissingConfigFile(t *testing.T) {
	code, _, errOut := execute(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "search", "docker")
	if code != 1 || !strings.HasPrefix(errOut, "Configuration Error: ") {
		t.Errorf("exit %d, stderr %q", code, errOut)
	}
}

func TestSearch_RemoteServer(t *testing.T) {
	var lastBody string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		lastBody = string(raw)
		if r.URL.Path != "/search" || r.Header.Get("Authorization") != "Bearer k1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":"unauthorized","message":"missing or invalid API key"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"id":"doc_0","score":0.91,"metadata":{"category":"Docker"}}],"query":"docker images","top_k":1}`))
	}))
	defer ts.Close()

	code, out, errOut := execute(t, "search", "docker", "images", "--server", ts.URL, "--api-key", "k1", "-k", "1")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, "doc_0") || !strings.Contains(out, "category=Docker") {
		t.Errorf("unexpected table: %q", out)
	}

	_, _, _ = execute(t, "search", "docker", "images", "--server", ts.URL, "--api-key", "k1", "-k", "0")
	if !strings.Contains(lastBody, `"top_k":0`) {
		t.Errorf("explicit -k 0 must reach the server, sent %s", lastBody)
	}
	_, _, _ = execute(t, "search", "docker", "images", "--server", ts.URL, "--api-key", "k1")
	if strings.Contains(lastBody, "top_k") {
		t.Errorf("unset --top-k must leave the server default, sent %s", lastBody)
	}

	code, _, errOut = execute(t, "search", "docker", "images", "--server", ts.URL, "--api-key", "bad")
	if code != 1 || !strings.Contains(errOut, "unauthorized") {
		t.Errorf("exit %d, stderr %q", code, errOut)
	}
}
