// Package agent loads and resolves agent definitions. A definition is
// a markdown file with YAML frontmatter describing one agent type: the
// model and runtime it runs on, which child types it may spawn, its MCP
// server visibility, and an instruction body used as the system prompt.
package agent

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// TypeGeneralPurpose is the well-known agent type that may run without
// a definition file.
const TypeGeneralPurpose = "general-purpose"

// ErrNotFound is returned when no definition file exists for a type.
var ErrNotFound = errors.New("agent definition not found")

// Source indicates where an agent definition was discovered.
type Source int

const (
	// SourceProject is a definition from the project's .claude/agents directory.
	SourceProject Source = iota
	// SourceHome is a definition from the user's ~/.claude/agents directory.
	SourceHome
)

// String returns a human-readable representation of the Source.
func (s Source) String() string {
	switch s {
	case SourceProject:
		return "project"
	case SourceHome:
		return "home"
	default:
		return "unknown"
	}
}

// Definition describes one agent type.
type Definition struct {
	// Type is derived from the filename (e.g. "code-reviewer" from
	// "code-reviewer.md").
	Type string `json:"type"`

	// Name is the human-readable display name from frontmatter.
	Name string `json:"name"`

	// Description summarizes what the agent is for.
	Description string `json:"description,omitempty"`

	// AllowedAgents restricts which child types sessions of this agent
	// may spawn. Nil means unrestricted; an empty list allows none.
	AllowedAgents []string `json:"allowedAgents"`

	// Model is the preferred model name.
	Model string `json:"model,omitempty"`

	// Color tags the agent in listings.
	Color string `json:"color,omitempty"`

	// Runtime optionally pins a backend kind by name, overriding the
	// model heuristic in the runtime selector.
	Runtime string `json:"runtime,omitempty"`

	// MCPServers, when non-nil, names exactly the MCP servers visible
	// to the agent, replacing project and parent inheritance.
	MCPServers []string `json:"mcpServers"`

	// InheritProjectMcps controls whether project-level MCP servers are
	// visible. Unset defaults to true.
	InheritProjectMcps *bool `json:"inheritProjectMcps,omitempty"`

	// InheritParentMcps controls whether the parent's resolved MCP
	// servers are added. Unset defaults to false.
	InheritParentMcps *bool `json:"inheritParentMcps,omitempty"`

	// Instructions is the markdown body below the frontmatter, used as
	// the agent's system prompt.
	Instructions string `json:"-"`

	// FilePath is the absolute path the definition was loaded from.
	FilePath string `json:"-"`

	// Source indicates whether the definition came from the project or
	// the home directory.
	Source Source `json:"-"`
}

// Allows reports whether this definition permits spawning the given
// child type. A nil receiver or nil AllowedAgents list is unrestricted.
func (d *Definition) Allows(agentType string) bool {
	if d == nil || d.AllowedAgents == nil {
		return true
	}
	return slices.Contains(d.AllowedAgents, agentType)
}

// InheritsProjectMcps reports whether project-level MCP servers apply.
func (d *Definition) InheritsProjectMcps() bool {
	return d == nil || d.InheritProjectMcps == nil || *d.InheritProjectMcps
}

// InheritsParentMcps reports whether the parent's resolved MCP servers
// are added.
func (d *Definition) InheritsParentMcps() bool {
	return d != nil && d.InheritParentMcps != nil && *d.InheritParentMcps
}

// frontmatter is the YAML header of an agent definition file.
type frontmatter struct {
	Name               string   `yaml:"name"`
	Description        string   `yaml:"description"`
	AllowedAgents      []string `yaml:"allowedAgents"`
	Model              string   `yaml:"model"`
	Color              string   `yaml:"color"`
	Runtime            string   `yaml:"runtime"`
	MCPServers         []string `yaml:"mcpServers"`
	InheritProjectMcps *bool    `yaml:"inheritProjectMcps"`
	InheritParentMcps  *bool    `yaml:"inheritParentMcps"`
}

// frontmatterDelimiter is the standard YAML frontmatter delimiter.
const frontmatterDelimiter = "---"

// ParseDefinition parses an agent definition from file content.
// agentType is the type the file was looked up under; the callers in
// this package derive it from the filename.
func ParseDefinition(content, agentType string) (*Definition, error) {
	fm, body, err := parseFrontmatter(content)
	if err != nil {
		return nil, err
	}

	return &Definition{
		Type:               agentType,
		Name:               fm.Name,
		Description:        fm.Description,
		AllowedAgents:      fm.AllowedAgents,
		Model:              fm.Model,
		Color:              fm.Color,
		Runtime:            fm.Runtime,
		MCPServers:         fm.MCPServers,
		InheritProjectMcps: fm.InheritProjectMcps,
		InheritParentMcps:  fm.InheritParentMcps,
		Instructions:       strings.TrimSpace(body),
	}, nil
}

// parseFrontmatter extracts and parses the YAML frontmatter from
// markdown content and returns the remaining body. Frontmatter must be
// at the start of the file, delimited by "---".
func parseFrontmatter(content string) (frontmatter, string, error) {
	var fm frontmatter

	// Frontmatter must start at the beginning
	if !strings.HasPrefix(content, frontmatterDelimiter) {
		return fm, "", fmt.Errorf("content does not start with frontmatter delimiter")
	}

	// Find the ending delimiter
	rest := content[len(frontmatterDelimiter):]
	yamlContent, body, found := strings.Cut(rest, "\n"+frontmatterDelimiter)
	if !found {
		return fm, "", fmt.Errorf("no closing frontmatter delimiter found")
	}

	// Extract the YAML content (skip the leading newline if present)
	yamlContent = strings.TrimPrefix(yamlContent, "\n")

	// Parse the YAML
	decoder := yaml.NewDecoder(bytes.NewReader([]byte(yamlContent)))
	if err := decoder.Decode(&fm); err != nil {
		return fm, "", fmt.Errorf("parsing YAML: %w", err)
	}

	// Validate required fields
	if fm.Name == "" {
		return fm, "", fmt.Errorf("frontmatter missing required field: name")
	}

	return fm, body, nil
}
