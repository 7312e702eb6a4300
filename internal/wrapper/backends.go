package wrapper

// Pull in the runtime backends so their factories register.
import (
	_ "github.com/zjrosen/klaude/internal/runtime/backends/gptexec"
	_ "github.com/zjrosen/klaude/internal/runtime/backends/gptstream"
	_ "github.com/zjrosen/klaude/internal/runtime/backends/gptstreamenv"
	_ "github.com/zjrosen/klaude/internal/runtime/backends/native"
)
