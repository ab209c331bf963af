package contacts

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/clipper-camera/clipper-app/internal/config"
)

// Directory resolves recipient identifiers to human-readable names. Lookups
// for unknown identifiers fall back to the identifier itself so callers never
// render an empty name.
type Directory interface {
	DisplayName(id string) string
	All() []Contact
	Reload() error
}

// Contact is one entry in the recipient directory.
type Contact struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type fileDirectory struct {
	path string

	mu      sync.RWMutex
	entries map[string]string
}

// NewDirectory loads the recipient directory from the configured JSON file.
// A missing path yields an empty directory rather than an error; the daemon
// runs fine without contact names.
func NewDirectory(cfg *config.Config) (Directory, error) {
	dir := &fileDirectory{
		path:    cfg.Contacts.Path,
		entries: make(map[string]string),
	}
	if dir.path == "" {
		return dir, nil
	}
	if err := dir.Reload(); err != nil {
		return nil, err
	}
	return dir, nil
}

func (d *fileDirectory) Reload() error {
	if d.path == "" {
		return nil
	}
	data, err := os.ReadFile(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			d.mu.Lock()
			d.entries = make(map[string]string)
			d.mu.Unlock()
			return nil
		}
		return fmt.Errorf("read contacts file: %w", err)
	}

	var contacts []Contact
	if err := json.Unmarshal(data, &contacts); err != nil {
		return fmt.Errorf("parse contacts file %s: %w", d.path, err)
	}

	entries := make(map[string]string, len(contacts))
	for _, contact := range contacts {
		id := strings.TrimSpace(contact.ID)
		name := strings.TrimSpace(contact.Name)
		if id == "" || name == "" {
			continue
		}
		entries[id] = name
	}

	d.mu.Lock()
	d.entries = entries
	d.mu.Unlock()
	return nil
}

func (d *fileDirectory) DisplayName(id string) string {
	d.mu.RLock()
	name, ok := d.entries[id]
	d.mu.RUnlock()
	if !ok {
		return id
	}
	return name
}

func (d *fileDirectory) All() []Contact {
	d.mu.RLock()
	contacts := make([]Contact, 0, len(d.entries))
	for id, name := range d.entries {
		contacts = append(contacts, Contact{ID: id, Name: name})
	}
	d.mu.RUnlock()

	sort.Slice(contacts, func(i, j int) bool { return contacts[i].Name < contacts[j].Name })
	return contacts
}
