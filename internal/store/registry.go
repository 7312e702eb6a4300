package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zjrosen/klaude/internal/proc"
)

// RegistryEntry is one wrapper instance recorded in a project's
// instances.json. The file is a lightweight directory so CLI commands
// can find live sockets without opening the database.
type RegistryEntry struct {
	InstanceID string    `json:"instanceId"`
	Pid        int       `json:"pid"`
	Tty        string    `json:"tty,omitempty"`
	RootPath   string    `json:"rootPath"`
	SocketPath string    `json:"socketPath"`
	StartedAt  time.Time `json:"startedAt"`
}

// InstanceRegistry reads and rewrites a project's instances.json.
type InstanceRegistry struct {
	path string
}

// NewInstanceRegistry returns the registry for one project hash.
func NewInstanceRegistry(registryDir, projectHash string) *InstanceRegistry {
	return &InstanceRegistry{path: filepath.Join(registryDir, projectHash, "instances.json")}
}

// Path returns the registry file location.
func (r *InstanceRegistry) Path() string {
	return r.path
}

// Load returns the recorded entries. A missing file is an empty registry.
func (r *InstanceRegistry) Load() ([]RegistryEntry, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading instance registry: %w", err)
	}
	var entries []RegistryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing instance registry: %w", err)
	}
	return entries, nil
}

// LoadAlive returns the entries whose pid still answers a signal-0
// probe, dropping dead ones from the file as a side effect.
func (r *InstanceRegistry) LoadAlive() ([]RegistryEntry, error) {
	entries, err := r.Load()
	if err != nil {
		return nil, err
	}
	alive := entries[:0]
	for _, e := range entries {
		if proc.Alive(e.Pid) {
			alive = append(alive, e)
		}
	}
	if len(alive) != len(entries) {
		if err := r.write(alive); err != nil {
			return alive, err
		}
	}
	return alive, nil
}

// Register adds or replaces the entry for one instance, pruning dead
// entries while it has the file open.
func (r *InstanceRegistry) Register(entry RegistryEntry) error {
	entries, err := r.Load()
	if err != nil {
		return err
	}
	out := make([]RegistryEntry, 0, len(entries)+1)
	for _, e := range entries {
		if e.InstanceID == entry.InstanceID || !proc.Alive(e.Pid) {
			continue
		}
		out = append(out, e)
	}
	out = append(out, entry)
	return r.write(out)
}

// Deregister removes one instance's entry.
func (r *InstanceRegistry) Deregister(instanceID string) error {
	entries, err := r.Load()
	if err != nil {
		return err
	}
	out := entries[:0]
	for _, e := range entries {
		if e.InstanceID != instanceID {
			out = append(out, e)
		}
	}
	return r.write(out)
}

// write replaces the file via temp+rename so concurrent readers never
// see a half-written registry.
func (r *InstanceRegistry) write(entries []RegistryEntry) error {
	if entries == nil {
		entries = []RegistryEntry{}
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return fmt.Errorf("creating registry directory: %w", err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling instance registry: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing instance registry: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replacing instance registry: %w", err)
	}
	return nil
}
