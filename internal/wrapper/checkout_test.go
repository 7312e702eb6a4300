package wrapper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/klaude/internal/runtime"
	"github.com/zjrosen/klaude/internal/store"
	"github.com/zjrosen/klaude/internal/wire"
)

func linkSession(t *testing.T, e *testEnv, sessionID, claudeID string) {
	t.Helper()
	require.NoError(t, e.st.ActivateLink(&store.ClaudeSessionLink{
		SessionID:       sessionID,
		ClaudeSessionID: claudeID,
		Source:          store.LinkSourceStartup,
	}))
}

func TestCheckout_SwitchToChild(t *testing.T) {
	e := newTestEnv(t)
	root := e.seedSession(t, "root-1", "", store.AgentTypeTui)
	child := e.seedSession(t, "agent-1", root.ID, "general-purpose")
	linkSession(t, e, child.ID, "cc-child")

	m, launches := newTestTui(t, e, []string{"--flag-a"})
	require.NoError(t, m.LaunchForSession(context.Background(), root.ID, "cc-root"))

	res, err := m.Checkout(context.Background(), wire.CheckoutPayload{SessionID: child.ID})
	require.NoError(t, err)
	assert.Equal(t, wire.CheckoutActivated, res.Status)
	assert.Equal(t, child.ID, res.SessionID)
	assert.Equal(t, "cc-child", res.ClaudeSessionID)

	require.Equal(t, 2, launches.count())
	assert.Equal(t, []string{"--flag-a", "--resume", "cc-child"}, launches.rec(1).args)

	assert.Equal(t, child.ID, m.CurrentSessionID())
	assert.False(t, m.Switching())

	// The session switched away from stays resumable.
	assert.Equal(t, store.StatusActive, sessionStatus(t, e, root.ID))
	assert.Equal(t, store.StatusRunning, sessionStatus(t, e, child.ID))

	assert.Equal(t, []string{
		"wrapper.tui.spawned",
		"wrapper.checkout.requested",
		"wrapper.tui.exited",
	}, e.eventKinds(t, root.ID))
	assert.Equal(t, []string{
		"wrapper.checkout.resume_selected",
		"wrapper.tui.spawned",
		"wrapper.checkout.activated",
	}, e.eventKinds(t, child.ID))
}

func TestCheckout_DefaultsToParent(t *testing.T) {
	e := newTestEnv(t)
	root := e.seedSession(t, "root-1", "", store.AgentTypeTui)
	child := e.seedSession(t, "agent-1", root.ID, "general-purpose")
	linkSession(t, e, root.ID, "cc-root")

	m, launches := newTestTui(t, e, nil)
	require.NoError(t, m.LaunchForSession(context.Background(), child.ID, "cc-child"))

	res, err := m.Checkout(context.Background(), wire.CheckoutPayload{})
	require.NoError(t, err)
	assert.Equal(t, wire.CheckoutActivated, res.Status)
	assert.Equal(t, root.ID, res.SessionID)
	assert.Equal(t, "cc-root", res.ClaudeSessionID)

	require.Equal(t, 2, launches.count())
	assert.Equal(t, root.ID, m.CurrentSessionID())
}

func TestCheckout_AlreadyActive(t *testing.T) {
	e := newTestEnv(t)
	root := e.seedSession(t, "root-1", "", store.AgentTypeTui)
	linkSession(t, e, root.ID, "cc-root")

	m, launches := newTestTui(t, e, nil)
	require.NoError(t, m.LaunchForSession(context.Background(), root.ID, "cc-root"))

	res, err := m.Checkout(context.Background(), wire.CheckoutPayload{SessionID: root.ID})
	require.NoError(t, err)
	assert.Equal(t, wire.CheckoutAlreadyActive, res.Status)
	assert.Equal(t, "cc-root", res.ClaudeSessionID)

	assert.Equal(t, 1, launches.count())
	assert.Contains(t, e.eventKinds(t, root.ID), "wrapper.checkout.already_active")
}

func TestCheckout_ProjectMismatch(t *testing.T) {
	e := newTestEnv(t)
	other, err := e.st.EnsureProject("/elsewhere")
	require.NoError(t, err)
	foreign := &store.Session{ID: "foreign-1", ProjectID: other.ID, AgentType: store.AgentTypeTui}
	require.NoError(t, e.st.CreateSession(foreign))

	m, _ := newTestTui(t, e, nil)
	_, err = m.Checkout(context.Background(), wire.CheckoutPayload{SessionID: foreign.ID})
	assert.Equal(t, wire.CodeSessionProjectMismatch, wire.CodeOf(err))
}

func TestCheckout_NoConversationKnown(t *testing.T) {
	e := newTestEnv(t)
	root := e.seedSession(t, "root-1", "", store.AgentTypeTui)
	child := e.seedSession(t, "agent-1", root.ID, "general-purpose")

	m, _ := newTestTui(t, e, nil)
	zero := 0.0
	_, err := m.Checkout(context.Background(), wire.CheckoutPayload{
		SessionID: child.ID, WaitSeconds: &zero,
	})
	assert.Equal(t, wire.CodeSwitchTargetMissing, wire.CodeOf(err))
}

func TestCheckout_NoTuiLaunchesDirectly(t *testing.T) {
	e := newTestEnv(t)
	root := e.seedSession(t, "root-1", "", store.AgentTypeTui)
	child := e.seedSession(t, "agent-1", root.ID, "general-purpose")
	linkSession(t, e, child.ID, "cc-child")

	m, launches := newTestTui(t, e, nil)

	res, err := m.Checkout(context.Background(), wire.CheckoutPayload{SessionID: child.ID})
	require.NoError(t, err)
	assert.Equal(t, wire.CheckoutActivated, res.Status)
	assert.Equal(t, 1, launches.count())
	assert.Equal(t, child.ID, m.CurrentSessionID())

	// With no session to switch away from, everything lands on the
	// target's log.
	assert.Equal(t, []string{
		"wrapper.checkout.requested",
		"wrapper.checkout.resume_selected",
		"wrapper.tui.spawned",
		"wrapper.checkout.activated",
	}, e.eventKinds(t, child.ID))
}

func TestCheckout_SecondCheckoutRejected(t *testing.T) {
	e := newTestEnv(t)
	root := e.seedSession(t, "root-1", "", store.AgentTypeTui)
	child := e.seedSession(t, "agent-1", root.ID, "general-purpose")
	linkSession(t, e, child.ID, "cc-child")

	// The first TUI shrugs off SIGTERM; the grace timer has to SIGKILL
	// it before the switch can complete.
	m, _ := newTestTui(t, e, nil,
		[]string{"/bin/sh", "-c", "trap '' TERM; sleep 30"},
		[]string{"/bin/sleep", "30"},
	)
	require.NoError(t, m.LaunchForSession(context.Background(), root.ID, "cc-root"))

	type checkoutOutcome struct {
		res *wire.CheckoutResult
		err error
	}
	outcome := make(chan checkoutOutcome, 1)
	go func() {
		res, err := m.Checkout(context.Background(), wire.CheckoutPayload{SessionID: child.ID})
		outcome <- checkoutOutcome{res, err}
	}()

	waitFor(t, 2*time.Second, m.Switching)

	_, err := m.Checkout(context.Background(), wire.CheckoutPayload{SessionID: child.ID})
	assert.Equal(t, wire.CodeCheckoutInProgress, wire.CodeOf(err))

	select {
	case out := <-outcome:
		require.NoError(t, out.err)
		assert.Equal(t, wire.CheckoutActivated, out.res.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("first checkout never resolved")
	}
	assert.Equal(t, child.ID, m.CurrentSessionID())
}

func TestCheckout_StopsTargetRuntime(t *testing.T) {
	e := newTestEnv(t)
	root := e.seedSession(t, "root-1", "", store.AgentTypeTui)
	child := e.seedSession(t, "agent-1", root.ID, "general-purpose")
	linkSession(t, e, child.ID, "cc-child")

	rt, sp := newTestRuntime(t, e, nil)
	m, launches := newTestTui(t, e, nil)
	m.AttachRuntimes(rt)

	sleeper := startSleeper(t)
	f := newFakeProc(runtime.KindNative)
	f.pid = sleeper.Process.Pid
	t.Cleanup(func() { f.finish(runtime.StatusCancelled, runtime.ExitResult{Code: -1}) })
	go func() {
		_ = sleeper.Wait()
		f.finish(runtime.StatusFailed, runtime.ExitResult{Code: -1, Signal: "SIGTERM"})
	}()
	launchFake(t, rt, sp, f, child.ID, runtime.Selection{Primary: runtime.KindNative})

	require.NoError(t, m.LaunchForSession(context.Background(), root.ID, "cc-root"))

	res, err := m.Checkout(context.Background(), wire.CheckoutPayload{SessionID: child.ID})
	require.NoError(t, err)
	assert.Equal(t, wire.CheckoutActivated, res.Status)
	assert.Equal(t, 2, launches.count())
	assert.Nil(t, rt.handleFor(child.ID))

	assert.Equal(t, []string{
		"agent.runtime.spawned",
		"wrapper.checkout.resume_selected",
		"agent.runtime.process.exited",
		"wrapper.checkout.runtime_stopped",
		"wrapper.tui.spawned",
		"wrapper.checkout.activated",
	}, e.eventKinds(t, child.ID))

	// Stopping the runtime settled the session; terminal status is
	// sticky even though the TUI now fronts it.
	assert.Equal(t, store.StatusInterrupted, sessionStatus(t, e, child.ID))
}
