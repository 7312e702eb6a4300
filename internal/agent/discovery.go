package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// definitionsSubdir is the directory that holds agent definitions,
// relative to a project root or the user's home directory.
var definitionsSubdir = filepath.Join(".claude", "agents")

// searchDir is one directory on the definition search path.
type searchDir struct {
	path   string
	source Source
}

// searchPath returns the definition directories in precedence order:
// the project's agents directory, then the user's.
func searchPath(projectRoot string) []searchDir {
	dirs := []searchDir{{filepath.Join(projectRoot, definitionsSubdir), SourceProject}}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, searchDir{filepath.Join(home, definitionsSubdir), SourceHome})
	}
	return dirs
}

// Load finds and parses the definition for agentType, searching the
// project directory then the home directory (first match wins).
// Returns ErrNotFound when no definition file exists.
func Load(projectRoot, agentType string) (*Definition, error) {
	return loadFromDirs(searchPath(projectRoot), agentType)
}

// loadFromDirs resolves agentType against the given directories.
func loadFromDirs(dirs []searchDir, agentType string) (*Definition, error) {
	// Type names arrive over the socket; keep lookups inside the
	// definition directories.
	if agentType == "" || strings.ContainsAny(agentType, `/\`) || strings.HasPrefix(agentType, ".") {
		return nil, fmt.Errorf("invalid agent type %q", agentType)
	}

	for _, sd := range dirs {
		path := filepath.Join(sd.path, agentType+".md")
		content, err := os.ReadFile(path) //nolint:gosec // path is <dir>/<type>.md with a validated type name
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading definition file: %w", err)
		}

		def, err := ParseDefinition(string(content), agentType)
		if err != nil {
			return nil, fmt.Errorf("parsing definition %s: %w", path, err)
		}
		def.FilePath = path
		def.Source = sd.source
		return def, nil
	}

	return nil, fmt.Errorf("agent type %q: %w", agentType, ErrNotFound)
}

// List loads every discoverable definition, with project definitions
// shadowing home definitions of the same type. Files with invalid
// frontmatter are skipped. Missing directories are not an error.
func List(projectRoot string) ([]*Definition, error) {
	return listFromDirs(searchPath(projectRoot))
}

// listFromDirs loads every definition under the given directories.
func listFromDirs(dirs []searchDir) ([]*Definition, error) {
	seen := make(map[string]bool)
	var defs []*Definition

	for _, sd := range dirs {
		entries, err := os.ReadDir(sd.path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading agents directory: %w", err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
				continue
			}

			agentType := strings.TrimSuffix(entry.Name(), ".md")
			if seen[agentType] {
				continue
			}

			path := filepath.Join(sd.path, entry.Name())
			content, err := os.ReadFile(path) //nolint:gosec // path is constructed from directory entries
			if err != nil {
				// Skip files we can't read
				continue
			}

			def, err := ParseDefinition(string(content), agentType)
			if err != nil {
				// Skip definitions with invalid frontmatter
				continue
			}
			def.FilePath = path
			def.Source = sd.source
			seen[agentType] = true
			defs = append(defs, def)
		}
	}

	sort.Slice(defs, func(i, j int) bool { return defs[i].Type < defs[j].Type })
	return defs, nil
}

// Types returns the available agent type names sorted alphabetically:
// every discoverable definition plus the well-known general-purpose
// type, which needs no definition file. Unreadable directories are
// treated as empty.
func Types(projectRoot string) []string {
	types := []string{TypeGeneralPurpose}
	defs, _ := List(projectRoot)
	for _, def := range defs {
		if def.Type != TypeGeneralPurpose {
			types = append(types, def.Type)
		}
	}
	sort.Strings(types)
	return types
}
