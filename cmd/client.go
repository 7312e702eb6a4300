package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zjrosen/klaude/internal/paths"
	"github.com/zjrosen/klaude/internal/store"
	"github.com/zjrosen/klaude/internal/wire"
	"github.com/zjrosen/klaude/internal/wrapper"
)

// instanceTarget is the wrapper instance a CLI verb talks to.
type instanceTarget struct {
	home        string
	projectHash string
	entry       store.RegistryEntry
}

// currentProjectHash prefers the hash exported by a managed TUI over
// hashing the working directory, so verbs issued from inside a session
// land on the right project even below the project root.
func currentProjectHash() (string, string, error) {
	home := paths.Home()
	if hash := os.Getenv(wrapper.EnvProjectHash); hash != "" {
		return home, hash, nil
	}
	rootPath, err := os.Getwd()
	if err != nil {
		return "", "", fmt.Errorf("getting current directory: %w", err)
	}
	return home, paths.ProjectHash(rootPath), nil
}

// findInstance locates the live wrapper instance serving this project.
// KLAUDE_INSTANCE_ID pins the choice inside a managed TUI; otherwise a
// single live instance wins.
func findInstance() (*instanceTarget, error) {
	home, hash, err := currentProjectHash()
	if err != nil {
		return nil, err
	}

	reg := store.NewInstanceRegistry(paths.RegistryDir(home), hash)
	entries, err := reg.LoadAlive()
	if err != nil {
		return nil, fmt.Errorf("reading instance registry: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no klaude instance is running for this project (start one with 'klaude')")
	}

	if want := os.Getenv(wrapper.EnvInstanceID); want != "" {
		for _, e := range entries {
			if e.InstanceID == want {
				return &instanceTarget{home: home, projectHash: hash, entry: e}, nil
			}
		}
		return nil, fmt.Errorf("instance %s from KLAUDE_INSTANCE_ID is not alive", want)
	}
	if len(entries) == 1 {
		return &instanceTarget{home: home, projectHash: hash, entry: entries[0]}, nil
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = store.ShortID(e.InstanceID)
	}
	return nil, fmt.Errorf("multiple klaude instances are running (%s); set KLAUDE_INSTANCE_ID to pick one",
		strings.Join(ids, ", "))
}

// dialInstance returns a socket client for the resolved instance.
func dialInstance() (*wire.Client, *instanceTarget, error) {
	target, err := findInstance()
	if err != nil {
		return nil, nil, err
	}
	return wire.NewClient(target.entry.SocketPath), target, nil
}

// openProject opens the shared store and resolves the current project
// row. The caller closes the store.
func openProject() (*store.Store, *store.Project, error) {
	home, hash, err := currentProjectHash()
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(paths.DBPath(home))
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	project, err := st.GetProjectByHash(hash)
	if err != nil {
		_ = st.Close()
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, fmt.Errorf("no klaude history for this project yet (start one with 'klaude')")
		}
		return nil, nil, err
	}
	return st, project, nil
}

// currentSessionID is the session the calling TUI runs under, when
// managed.
func currentSessionID() string {
	return os.Getenv(wrapper.EnvSessionID)
}

// waitSecondsArg converts the flag to the wire's tri-state: nil means
// "use the server default", an explicit 0 disables waiting.
func waitSecondsArg(cmd *cobra.Command, name string) *float64 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetFloat64(name)
	return &v
}

// printJSON writes v as indented JSON on stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
