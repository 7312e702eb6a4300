// Package gptexec provides the exec-style one-shot GPT backend.
//
// The child runs a single prompt via an `exec --json` subcommand and
// emits thread/turn/item events as JSON lines on stdout. The parser
// maps that vendor schema into the shared runtime envelope:
//
//   - thread.started -> claude-session (thread id is the resume handle)
//   - turn.started -> status running
//   - item.completed -> message (agent_message carries the text)
//   - turn.completed -> result with usage
//   - turn.failed / error -> error
//
// The backend is one-shot: follow-up messages are not supported and
// silent startup failures are subject to retry.
package gptexec
