// Package runtime provides backend-agnostic supervision of headless
// agent children.
//
// A wrapper instance launches agent work as child processes. Four
// backend kinds exist: the native runner speaks a typed JSON protocol
// on stdout with an init payload and follow-up messages on stdin, and
// the three one-shot GPT backends emit vendor JSON that a per-backend
// parser maps into the same typed envelope.
//
// Key types:
//   - Backend: factory for spawning a runtime child of one kind
//   - AgentProcess: unified child lifecycle (events, exit state, cancel)
//   - Envelope: normalized event stream from children
//   - Selector: maps an agent definition to a backend kind
//
// Example usage:
//
//	backend, err := runtime.NewBackend(runtime.KindNative)
//	if err != nil {
//	    return err
//	}
//
//	proc, err := backend.Spawn(ctx, runtime.Config{
//	    BinaryPath: "klaude-runner",
//	    WorkDir:    "/path/to/project",
//	    Prompt:     "review the diff",
//	})
//	if err != nil {
//	    return err
//	}
//
//	for env := range proc.Events() {
//	    if env.Type == runtime.EventMessage {
//	        fmt.Println(env.Text)
//	    }
//	}
package runtime
