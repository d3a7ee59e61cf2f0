package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/grapher3d/grapher-core/internal/datastore"
	"github.com/grapher3d/grapher-core/internal/graph"
	"github.com/grapher3d/grapher-core/internal/infrastructure/database"
	"github.com/grapher3d/grapher-core/internal/infrastructure/logging"
)

// writeConfig writes a minimal sqlite config into a temp dir and returns
// its path and the database path.
func writeConfig(t *testing.T, port int, extra string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "grapher.db")
	content := fmt.Sprintf(`
database:
  driver: sqlite3
  path: %q
  busy_timeout: 5

api:
  host: "127.0.0.1"
  port: %d

static:
  dir: %q

logging:
  level: error
  format: text
  output: stdout
%s`, dbPath, port, dir, extra)

	path := filepath.Join(dir, "grapher.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path, dbPath
}

// freePort asks the kernel for an unused TCP port.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// TestRun_InvalidConfig verifies run fails with an invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, "/nonexistent/path/grapher.yaml"); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_UnsupportedDriver verifies config validation stops startup.
func TestRun_UnsupportedDriver(t *testing.T) {
	path, _ := writeConfig(t, 3000, "")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	data = bytes.Replace(data, []byte("driver: sqlite3"), []byte("driver: oracle"), 1)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	err = run(context.Background(), path)
	if err == nil || !strings.Contains(err.Error(), "oracle") {
		t.Fatalf("run() error = %v, want unsupported driver", err)
	}
}

// TestSetup_CreatesTables verifies setup provisions every table.
func TestSetup_CreatesTables(t *testing.T) {
	path, dbPath := writeConfig(t, 3000, "")

	if err := setup(context.Background(), path); err != nil {
		t.Fatalf("setup() error = %v", err)
	}
	// A second run drops and recreates without failing.
	if err := setup(context.Background(), path); err != nil {
		t.Fatalf("second setup() error = %v", err)
	}

	db, err := database.Open(database.Config{Path: dbPath, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	defer db.Close()

	store := datastore.Open(db)
	for _, table := range datastore.NewTables().All() {
		if _, err := store.SelectAll(context.Background(), table); err != nil {
			t.Errorf("table %s not usable after setup: %v", table.Name(), err)
		}
	}
}

// TestRun_ServesUntilCancelled starts the server, checks /healthz and
// shuts it down through the context.
func TestRun_ServesUntilCancelled(t *testing.T) {
	port := freePort(t)
	path, _ := writeConfig(t, port, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, path) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/healthz", port)
	var resp *http.Response
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var err error
		resp, err = http.Get(url) //nolint:noctx // Test polling
		if err == nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if resp == nil {
		cancel()
		t.Fatal("server never answered /healthz")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() returned %v after cancel, want nil", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}

type fakePublisher struct {
	topic   string
	payload []byte
	err     error
}

func (f *fakePublisher) PublishJSON(topic string, v any) error {
	f.topic = topic
	f.payload, _ = json.Marshal(v) //nolint:errcheck // Test double
	return f.err
}

func TestMQTTNotifier(t *testing.T) {
	pub := &fakePublisher{}
	n := &mqttNotifier{client: pub}

	ev := graph.Event{Action: graph.ActionUpdated, Owner: -42, Name: "G1", Timestamp: time.Unix(0, 0).UTC()}
	if err := n.GraphChanged(context.Background(), ev); err != nil {
		t.Fatalf("GraphChanged() = %v", err)
	}
	if pub.topic != "grapher/graphs/-42/updated" {
		t.Errorf("topic = %q", pub.topic)
	}
	var got graph.Event
	if err := json.Unmarshal(pub.payload, &got); err != nil {
		t.Fatalf("payload %s: %v", pub.payload, err)
	}
	if got.Action != ev.Action || got.Owner != ev.Owner || got.Name != ev.Name || !got.Timestamp.Equal(ev.Timestamp) {
		t.Errorf("payload = %+v, want %+v", got, ev)
	}

	pub.err = errors.New("broker down")
	if err := n.GraphChanged(context.Background(), ev); !errors.Is(err, pub.err) {
		t.Errorf("GraphChanged() = %v, want publisher error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := n.GraphChanged(ctx, ev); !errors.Is(err, context.Canceled) {
		t.Errorf("GraphChanged(cancelled) = %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() = %v", err)
	}
	if !strings.HasPrefix(out.String(), "grapher dev") {
		t.Errorf("output = %q", out.String())
	}
}

func TestConfigPathPrecedence(t *testing.T) {
	t.Setenv(configEnv, "/from/env.yaml")

	opts := &rootOptions{}
	if got := opts.path(); got != "/from/env.yaml" {
		t.Errorf("path() = %q, want env value", got)
	}
	opts.configPath = "/from/flag.yaml"
	if got := opts.path(); got != "/from/flag.yaml" {
		t.Errorf("path() = %q, want flag value", got)
	}
}

func TestOpenStore_LogsDialect(t *testing.T) {
	path, _ := writeConfig(t, 3000, "")
	cfg, _, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	db, store, err := openStore(cfg, logging.Discard())
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	defer db.Close()

	if db.Dialect() != database.SQLite {
		t.Errorf("dialect = %q", db.Dialect())
	}
	if err := store.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}
