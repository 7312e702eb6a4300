package runtime

import (
	"fmt"
	"regexp"
)

// Selection is the runtime decision for one agent launch.
type Selection struct {
	Primary  Kind `json:"primary"`
	Fallback Kind `json:"fallback,omitempty"`
}

// HasFallback reports whether a fallback kind is configured.
func (s Selection) HasFallback() bool {
	return s.Fallback != ""
}

// oneShotPrecedence is the order in which configured one-shot backends
// are preferred for GPT-family models.
var oneShotPrecedence = []Kind{KindGptExec, KindGptStream, KindGptStreamEnv}

// gptModelPattern matches GPT-family model names: "gpt-5.1-codex",
// "o4-mini", "o3". The digit requirement after "o" keeps Claude model
// aliases like "opus" out.
var gptModelPattern = regexp.MustCompile(`(?i)^(gpt|o[0-9])`)

// IsGptModel reports whether a model name belongs to the GPT family.
func IsGptModel(model string) bool {
	return gptModelPattern.MatchString(model)
}

// Selector maps an agent definition's runtime hints to a backend kind.
// An explicit runtime name in the definition wins; otherwise GPT-family
// models route to the first configured one-shot backend and everything
// else runs on the native runner.
type Selector struct {
	configured map[Kind]bool
}

// NewSelector creates a selector. The arguments are the one-shot kinds
// that have a binary configured; the native kind is always available.
func NewSelector(configured ...Kind) *Selector {
	s := &Selector{configured: make(map[Kind]bool, len(configured))}
	for _, k := range configured {
		s.configured[k] = true
	}
	return s
}

// Select resolves the backend kind for an agent launch.
//
// runtimeName is the definition's explicit runtime key (may be empty),
// model the definition's model name (may be empty). GPT-family models
// without an explicit runtime get the first configured one-shot backend
// in precedence order (exec, stream, stream-env) with the native runner
// as fallback; every other launch runs native with no fallback.
func (s *Selector) Select(runtimeName, model string) (Selection, error) {
	if runtimeName != "" {
		kind, err := ParseKind(runtimeName)
		if err != nil {
			return Selection{}, err
		}
		if kind.OneShot() && !s.configured[kind] {
			return Selection{}, fmt.Errorf("runtime %s is not configured", kind)
		}
		// An explicit choice never falls back.
		return Selection{Primary: kind}, nil
	}

	if IsGptModel(model) {
		for _, k := range oneShotPrecedence {
			if s.configured[k] {
				return Selection{Primary: k, Fallback: KindNative}, nil
			}
		}
		// No one-shot backend configured; the native runner takes it.
		return Selection{Primary: KindNative}, nil
	}

	return Selection{Primary: KindNative}, nil
}
