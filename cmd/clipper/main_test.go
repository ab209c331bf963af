package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clipper-camera/clipper-app/internal/config"
	"github.com/clipper-camera/clipper-app/internal/contacts"
	"github.com/clipper-camera/clipper-app/internal/daemon"
	"github.com/clipper-camera/clipper-app/internal/history"
	"github.com/clipper-camera/clipper-app/internal/ipc"
	"github.com/clipper-camera/clipper-app/internal/processor"
	"github.com/clipper-camera/clipper-app/internal/queue"
	"github.com/clipper-camera/clipper-app/internal/testsupport"
	"github.com/clipper-camera/clipper-app/internal/transfer"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	history    *history.Store
	daemon     *daemon.Daemon
	socketPath string
	configPath string
}

type cliStubExecutor struct{}

func (cliStubExecutor) Upload(context.Context, *queue.Item, transfer.ProgressFunc) error {
	return nil
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	hist := testsupport.MustOpenHistory(t, cfg)

	proc, err := processor.New(processor.Deps{
		Config:   cfg,
		Store:    store,
		History:  hist,
		Executor: cliStubExecutor{},
	})
	if err != nil {
		t.Fatalf("processor.New: %v", err)
	}

	directory, err := contacts.NewDirectory(cfg)
	if err != nil {
		t.Fatalf("contacts.NewDirectory: %v", err)
	}

	d, err := daemon.New(cfg, store, hist, proc, directory, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, nil)
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		history:    hist,
		daemon:     d,
		socketPath: cfg.SocketPath(),
		configPath: configPath,
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	contents := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q
`, cfg.Paths.DataDir, cfg.Paths.LogDir)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("output missing %q:\n%s", want, output)
	}
}

func TestCLISendAndQueueList(t *testing.T) {
	env := setupCLITestEnv(t)

	mediaPath := filepath.Join(t.TempDir(), "clip.jpg")
	testsupport.WriteFile(t, mediaPath, 64)

	out, _, err := runCLI(t, []string{"send", mediaPath, "--to", "u-1"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	requireContains(t, out, "Queued image upload")

	out, _, err = runCLI(t, []string{"queue", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "pending")
	requireContains(t, out, "u-1")
}

func TestCLIQueueListEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"queue", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func TestCLISendRejectsMissingFile(t *testing.T) {
	env := setupCLITestEnv(t)

	missing := filepath.Join(t.TempDir(), "nope.jpg")
	if _, _, err := runCLI(t, []string{"send", missing}, env.socketPath, env.configPath); err == nil {
		t.Fatal("send accepted a missing file")
	}
}

func TestCLIQueueClearKeepsHistory(t *testing.T) {
	env := setupCLITestEnv(t)

	mediaPath := filepath.Join(t.TempDir(), "clip.mp4")
	testsupport.WriteFile(t, mediaPath, 64)

	if _, _, err := runCLI(t, []string{"send", mediaPath}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("send: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "clear"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue clear: %v", err)
	}
	requireContains(t, out, "Removed 1 queued uploads")

	out, _, err = runCLI(t, []string{"history", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	requireContains(t, out, "video")
}

func TestCLIStatus(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Daemon running")
	requireContains(t, out, "Queue database")
}

func TestCLITriggerAndStop(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"trigger"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	requireContains(t, out, "Queue pass requested")

	out, _, err = runCLI(t, []string{"stop"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon stopping")
}
