package gptstreamenv

import (
	"os"
	"sync"

	"github.com/zjrosen/klaude/internal/log"
	"github.com/zjrosen/klaude/internal/runtime"
)

// Process is a stream-env GPT child. It owns the system prompt temp
// file and removes it once the child has exited.
type Process struct {
	*runtime.BaseProcess

	promptFile  string
	cleanupOnce sync.Once
}

// PromptFile returns the path of the system prompt file, or empty when
// no system prompt was configured.
func (p *Process) PromptFile() string {
	return p.promptFile
}

// Wait blocks until the reader goroutines finish, then removes the
// system prompt file.
func (p *Process) Wait() error {
	err := p.BaseProcess.Wait()
	p.removePromptFileOnce()
	return err
}

func (p *Process) removePromptFileOnce() {
	p.cleanupOnce.Do(func() {
		removePromptFile(p.promptFile)
	})
}

func removePromptFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Debug(log.CatRuntime, "Failed to remove system prompt file", "path", path, "error", err)
	}
}

// Ensure Process implements AgentProcess at compile time.
var _ runtime.AgentProcess = (*Process)(nil)
