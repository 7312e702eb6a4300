package runtime

import (
	"context"
	"fmt"
	"strings"
)

// Kind identifies a runtime backend.
type Kind string

const (
	// KindNative is the bidirectional JSON runner backend.
	KindNative Kind = "native"
	// KindGptExec is the one-shot exec-style GPT backend.
	KindGptExec Kind = "gpt-exec"
	// KindGptStream is the one-shot streaming GPT backend.
	KindGptStream Kind = "gpt-stream"
	// KindGptStreamEnv is the one-shot streaming GPT backend that
	// receives its system prompt through an env var pointing at a file.
	KindGptStreamEnv Kind = "gpt-stream-env"
)

// ParseKind maps a definition's runtime string to a Kind. Accepts both
// the canonical kind names and the short config keys ("exec", "stream",
// "stream-env").
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "native":
		return KindNative, nil
	case "gpt-exec", "exec":
		return KindGptExec, nil
	case "gpt-stream", "stream":
		return KindGptStream, nil
	case "gpt-stream-env", "stream-env":
		return KindGptStreamEnv, nil
	default:
		return "", fmt.Errorf("unknown runtime kind %q", s)
	}
}

// OneShot reports whether the kind runs a single prompt and exits.
// One-shot kinds cannot receive follow-up messages and are subject to
// startup retry.
func (k Kind) OneShot() bool {
	return k == KindGptExec || k == KindGptStream || k == KindGptStreamEnv
}

// GptName returns the short config key for a one-shot GPT kind
// ("exec", "stream", "stream-env"), or "" for the native kind.
func (k Kind) GptName() string {
	switch k {
	case KindGptExec:
		return "exec"
	case KindGptStream:
		return "stream"
	case KindGptStreamEnv:
		return "stream-env"
	default:
		return ""
	}
}

// Backend is a factory for spawning runtime children of one kind.
// Implementations handle the backend-specific details of argv
// construction and output parsing.
type Backend interface {
	// Kind returns the backend kind identifier.
	Kind() Kind

	// Spawn creates and starts a runtime child.
	// Context is used for cancellation control.
	Spawn(ctx context.Context, cfg Config) (AgentProcess, error)
}

// ErrUnknownKind is returned when an unregistered backend kind is requested.
var ErrUnknownKind = fmt.Errorf("unknown runtime kind")

// backendRegistry holds registered backend factories.
// Use Register to add new backend kinds.
var backendRegistry = make(map[Kind]func() Backend)

// Register registers a backend factory for the given kind.
// This should be called in init() functions of backend packages.
func Register(kind Kind, factory func() Backend) {
	backendRegistry[kind] = factory
}

// NewBackend creates a Backend for the given kind.
// Returns ErrUnknownKind if the kind is not registered.
func NewBackend(kind Kind) (Backend, error) {
	factory, ok := backendRegistry[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return factory(), nil
}

// RegisteredKinds returns a slice of all registered backend kinds.
func RegisteredKinds() []Kind {
	kinds := make([]Kind, 0, len(backendRegistry))
	for k := range backendRegistry {
		kinds = append(kinds, k)
	}
	return kinds
}

// IsRegistered returns true if the given kind has been registered.
func IsRegistered(kind Kind) bool {
	_, ok := backendRegistry[kind]
	return ok
}
