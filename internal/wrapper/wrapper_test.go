package wrapper

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/klaude/internal/store"
	"github.com/zjrosen/klaude/internal/testutil"
	"github.com/zjrosen/klaude/internal/tracing"
)

// testTracer returns a tracer from a disabled provider; spans become
// no-ops.
func testTracer(t *testing.T) trace.Tracer {
	t.Helper()
	provider, err := tracing.NewProvider(tracing.Config{Enabled: false})
	require.NoError(t, err)
	return provider.Tracer()
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// testEnv bundles the store-backed fixtures most wrapper tests need.
type testEnv struct {
	st      *store.Store
	project *store.Project
	rec     *Recorder
	inst    InstanceInfo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := testutil.NewTestStore(t)
	project, err := st.EnsureProject("/repo")
	require.NoError(t, err)
	require.NoError(t, st.CreateInstance(&store.Instance{
		InstanceID: "inst-test",
		ProjectID:  project.ID,
		Pid:        os.Getpid(),
	}))

	rec := NewRecorder(st, project.ID, t.TempDir())
	t.Cleanup(rec.Close)

	return &testEnv{
		st:      st,
		project: project,
		rec:     rec,
		inst: InstanceInfo{
			InstanceID:  "inst-test",
			ProjectID:   project.ID,
			ProjectHash: project.ProjectHash,
			RootPath:    "/repo",
			Pid:         os.Getpid(),
		},
	}
}

// seedSession inserts a session owned by the test instance.
func (e *testEnv) seedSession(t *testing.T, id, parentID, agentType string) *store.Session {
	t.Helper()
	sess := &store.Session{
		ID:         id,
		ProjectID:  e.project.ID,
		ParentID:   parentID,
		AgentType:  agentType,
		InstanceID: e.inst.InstanceID,
	}
	require.NoError(t, e.st.CreateSession(sess))
	return sess
}

// eventKinds lists the kinds recorded for a session, in order.
func (e *testEnv) eventKinds(t *testing.T, sessionID string) []string {
	t.Helper()
	rows, err := e.st.ListSessionEvents(sessionID, 0)
	require.NoError(t, err)
	kinds := make([]string, len(rows))
	for i, row := range rows {
		kinds[i] = row.Kind
	}
	return kinds
}
