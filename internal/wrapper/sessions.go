package wrapper

import (
	"errors"

	"github.com/zjrosen/klaude/internal/store"
	"github.com/zjrosen/klaude/internal/wire"
)

// resolveProjectSession resolves a full or short session id within one
// project. An exact id that exists but belongs to another project is
// reported as a mismatch rather than a miss.
func resolveProjectSession(st *store.Store, projectID int64, idOrSuffix string) (*store.Session, error) {
	sess, err := st.ResolveSessionID(projectID, idOrSuffix)
	if err == nil {
		return sess, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		if other, lookupErr := st.GetSession(idOrSuffix); lookupErr == nil && other.ProjectID != projectID {
			return nil, wire.Errorf(wire.CodeSessionProjectMismatch,
				"session %s belongs to another project", idOrSuffix)
		}
		return nil, wire.Errorf(wire.CodeSessionNotFound, "session %q not found", idOrSuffix)
	}
	return nil, err
}
