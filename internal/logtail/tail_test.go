package logtail

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func writeLog(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
}

func TestRunPrintsTrailingLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clipper.log")
	writeLog(t, path, "one\ntwo\nthree\nfour\n")

	var out bytes.Buffer
	if err := Run(context.Background(), path, &out, Options{Lines: 2}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := out.String(); got != "three\nfour\n" {
		t.Fatalf("output = %q", got)
	}
}

func TestRunHandlesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.log")

	var out bytes.Buffer
	if err := Run(context.Background(), path, &out, Options{Lines: 10}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("output = %q", out.String())
	}
}

func TestRunFollowStreamsAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clipper.log")
	writeLog(t, path, "start\n")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var out syncBuffer
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, path, &out, Options{Lines: 1, Follow: true})
	}()

	deadline := time.Now().Add(2 * time.Second)
	appended := false
	for time.Now().Before(deadline) {
		if !appended && strings.Contains(out.String(), "start") {
			file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				t.Fatalf("open for append: %v", err)
			}
			if _, err := file.WriteString("later\n"); err != nil {
				t.Fatalf("append: %v", err)
			}
			file.Close()
			appended = true
		}
		if strings.Contains(out.String(), "later") {
			cancel()
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	err := <-done
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "later") {
		t.Fatalf("appended line never streamed, output = %q", out.String())
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
