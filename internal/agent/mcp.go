package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ProjectMCPFile is the per-project MCP server manifest, relative to
// the project root.
const ProjectMCPFile = ".mcp.json"

// mcpManifest is the on-disk shape of the project MCP file.
type mcpManifest struct {
	MCPServers map[string]json.RawMessage `json:"mcpServers"`
}

// LoadProjectMcps reads the project's MCP server manifest. A missing
// file is not an error; it yields no servers.
func LoadProjectMcps(projectRoot string) (map[string]json.RawMessage, error) {
	path := filepath.Join(projectRoot, ProjectMCPFile)
	content, err := os.ReadFile(path) //nolint:gosec // fixed filename under the project root
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading MCP manifest: %w", err)
	}

	var manifest mcpManifest
	if err := json.Unmarshal(content, &manifest); err != nil {
		return nil, fmt.Errorf("parsing MCP manifest %s: %w", path, err)
	}
	return manifest.MCPServers, nil
}

// ResolveMcps decides which MCP servers one agent launch can see.
//
// An explicit mcpServers list in the definition replaces inheritance
// entirely: every name must exist in the project manifest or the
// parent's resolved set, and an unknown name fails the resolution.
// Without an explicit list the result starts from the project manifest
// (unless the definition opts out) and adds the parent's resolved
// servers when the definition opts in; on a name collision the
// parent's entry wins.
func ResolveMcps(def *Definition, project, parent map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	if def != nil && def.MCPServers != nil {
		resolved := make(map[string]json.RawMessage, len(def.MCPServers))
		for _, name := range def.MCPServers {
			if cfg, ok := project[name]; ok {
				resolved[name] = cfg
				continue
			}
			if cfg, ok := parent[name]; ok {
				resolved[name] = cfg
				continue
			}
			return nil, fmt.Errorf("unknown MCP server %q", name)
		}
		return resolved, nil
	}

	resolved := make(map[string]json.RawMessage)
	if def.InheritsProjectMcps() {
		for name, cfg := range project {
			resolved[name] = cfg
		}
	}
	if def.InheritsParentMcps() {
		for name, cfg := range parent {
			resolved[name] = cfg
		}
	}
	return resolved, nil
}

// MarshalMCPConfig renders a resolved server set as the JSON object
// string the runtime backends hand to their child processes. An empty
// set yields an empty string.
func MarshalMCPConfig(resolved map[string]json.RawMessage) (string, error) {
	if len(resolved) == 0 {
		return "", nil
	}
	content, err := json.Marshal(resolved)
	if err != nil {
		return "", fmt.Errorf("encoding MCP config: %w", err)
	}
	return string(content), nil
}
