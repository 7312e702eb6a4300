package testutil

import "github.com/zjrosen/klaude/internal/store"

// WithSessionTreeTestData adds the standard session tree used across
// wrapper and CLI tests.
//
// Structure:
//
//	root-1 (tui, active, on inst-1)
//	  ├── agent-1 (general-purpose, running)
//	  │     └── agent-3 (code-reviewer, done)
//	  └── agent-2 (planner, failed)
//	root-2 (tui, done, an earlier finished instance root)
func (b *Builder) WithSessionTreeTestData() *Builder {
	return b.
		WithInstance("inst-1", 4242).
		WithSession("root-1", Tui(), Instance("inst-1"), Title("klaude")).
		WithSession("agent-1", Parent("root-1"), Instance("inst-1"),
			Prompt("review the auth module"), Status(store.StatusRunning)).
		WithSession("agent-2", Parent("root-1"), AgentType("planner"),
			Prompt("plan the migration"), Status(store.StatusFailed)).
		WithSession("agent-3", Parent("agent-1"), AgentType("code-reviewer"),
			Prompt("double-check the diff"), Status(store.StatusDone)).
		WithSession("root-2", Tui(), Title("klaude"), Status(store.StatusDone))
}

// WithConversationTestData layers conversation links and a pending update
// onto the session tree.
func (b *Builder) WithConversationTestData() *Builder {
	return b.
		WithSessionTreeTestData().
		WithLink("root-1", "cc-11111111", LinkTranscript("/tmp/t/root-1.jsonl")).
		WithLink("agent-1", "cc-22222222", LinkSource(store.LinkSourceRuntime)).
		WithLink("root-2", "cc-00000000", LinkEnded()).
		WithUpdate("agent-1", "root-1", "halfway through the auth review")
}
