package contacts_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/clipper-camera/clipper-app/internal/contacts"
	"github.com/clipper-camera/clipper-app/internal/testsupport"
)

func writeContacts(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contacts.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write contacts: %v", err)
	}
	return path
}

func TestDisplayNameResolvesKnownIDs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Contacts.Path = writeContacts(t, `[{"id":"u-1","name":"Alice"},{"id":"u-2","name":"Bob"}]`)

	dir, err := contacts.NewDirectory(cfg)
	if err != nil {
		t.Fatalf("NewDirectory: %v", err)
	}
	if name := dir.DisplayName("u-1"); name != "Alice" {
		t.Errorf("DisplayName(u-1) = %q", name)
	}
	if name := dir.DisplayName("u-404"); name != "u-404" {
		t.Errorf("unknown ID should fall back to itself, got %q", name)
	}
}

func TestAllReturnsSortedByName(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Contacts.Path = writeContacts(t, `[{"id":"u-2","name":"Zoe"},{"id":"u-1","name":"Alice"}]`)

	dir, err := contacts.NewDirectory(cfg)
	if err != nil {
		t.Fatalf("NewDirectory: %v", err)
	}
	all := dir.All()
	if len(all) != 2 || all[0].Name != "Alice" || all[1].Name != "Zoe" {
		t.Fatalf("All = %+v", all)
	}
}

func TestMissingFileYieldsEmptyDirectory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Contacts.Path = filepath.Join(t.TempDir(), "absent.json")

	dir, err := contacts.NewDirectory(cfg)
	if err != nil {
		t.Fatalf("NewDirectory: %v", err)
	}
	if len(dir.All()) != 0 {
		t.Fatal("missing file should produce an empty directory")
	}
	if name := dir.DisplayName("u-1"); name != "u-1" {
		t.Errorf("DisplayName = %q", name)
	}
}

func TestMalformedFileRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Contacts.Path = writeContacts(t, `{"not":"a list"}`)

	if _, err := contacts.NewDirectory(cfg); err == nil {
		t.Fatal("malformed contacts file accepted")
	}
}

func TestReloadPicksUpChanges(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeContacts(t, `[{"id":"u-1","name":"Alice"}]`)
	cfg.Contacts.Path = path

	dir, err := contacts.NewDirectory(cfg)
	if err != nil {
		t.Fatalf("NewDirectory: %v", err)
	}
	if err := os.WriteFile(path, []byte(`[{"id":"u-1","name":"Alicia"}]`), 0o644); err != nil {
		t.Fatalf("rewrite contacts: %v", err)
	}
	if err := dir.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if name := dir.DisplayName("u-1"); name != "Alicia" {
		t.Errorf("DisplayName after reload = %q", name)
	}
}
