package agent

import (
	"context"
	"time"

	"github.com/zjrosen/klaude/internal/cachemanager"
)

// DefinitionTTL bounds how long a parsed definition is served from
// cache before its file is read again.
const DefinitionTTL = 10 * time.Minute

// Registry serves agent definitions for one project root with a
// read-through cache in front of the filesystem.
type Registry struct {
	projectRoot string
	cache       *cachemanager.ReadThroughCache[string, *Definition, string]
}

// NewRegistry creates a definition registry rooted at projectRoot.
func NewRegistry(projectRoot string) *Registry {
	mem := cachemanager.NewInMemoryCacheManager[string, *Definition](
		"agent-definitions", DefinitionTTL, cachemanager.DefaultCleanupInterval)

	r := &Registry{projectRoot: projectRoot}
	r.cache = cachemanager.NewReadThroughCache(mem,
		func(_ context.Context, agentType string) (*Definition, error) {
			return Load(r.projectRoot, agentType)
		}, false)
	return r
}

// Lookup returns the definition for agentType, reading through the
// cache. Returns ErrNotFound when no definition file exists; misses
// are not cached, so a definition added after a failed lookup is
// picked up immediately.
func (r *Registry) Lookup(ctx context.Context, agentType string) (*Definition, error) {
	return r.cache.Get(ctx, agentType, agentType, DefinitionTTL)
}

// Types returns the available agent type names for this registry's
// project root. Listings bypass the cache; they serve error messages
// and CLI output, not the launch path.
func (r *Registry) Types() []string {
	return Types(r.projectRoot)
}
