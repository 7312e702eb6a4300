// Package paths resolves the on-disk layout shared by every klaude process.
//
// Everything lives under a single data root (~/.klaude by default,
// overridable via KLAUDE_HOME):
//
//	db.sqlite                                    shared store
//	run/<projectHash>/<instanceId>.sock          per-instance IPC endpoint
//	projects/<projectHash>/sessions/<id>.jsonl   per-session event log
//	registry/<projectHash>/instances.json        live instance directory
//	logs/klaude.log                              wrapper debug log
package paths

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
)

// EnvHome overrides the data root when set.
const EnvHome = "KLAUDE_HOME"

// projectHashLen is the number of hex characters kept from the root-path
// digest. Socket paths must stay below the kernel's sun_path limit (108
// bytes on Linux, 104 on macOS), so the hash is truncated rather than
// used whole.
const projectHashLen = 24

// Home returns the klaude data root: $KLAUDE_HOME if set, otherwise
// ~/.klaude. Falls back to ".klaude" relative to the working directory
// when the home directory cannot be determined.
func Home() string {
	if dir := os.Getenv(EnvHome); dir != "" {
		return filepath.Clean(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".klaude"
	}
	return filepath.Join(home, ".klaude")
}

// DBPath returns the shared SQLite database file under the data root.
func DBPath(home string) string {
	return filepath.Join(home, "db.sqlite")
}

// RunDir returns the directory holding per-project socket directories.
func RunDir(home string) string {
	return filepath.Join(home, "run")
}

// ProjectsDir returns the directory holding per-project session logs.
func ProjectsDir(home string) string {
	return filepath.Join(home, "projects")
}

// RegistryDir returns the directory holding per-project instance registries.
func RegistryDir(home string) string {
	return filepath.Join(home, "registry")
}

// LogsDir returns the directory for wrapper debug logs.
func LogsDir(home string) string {
	return filepath.Join(home, "logs")
}

// LogFile returns the default wrapper debug log path.
func LogFile(home string) string {
	return filepath.Join(LogsDir(home), "klaude.log")
}

// ProjectHash derives the stable identifier for a project root:
// SHA-256 of the cleaned absolute path, truncated to 24 hex characters.
func ProjectHash(rootPath string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(rootPath)))
	return hex.EncodeToString(sum[:])[:projectHashLen]
}

// SocketPath returns the Unix socket path for an instance.
func SocketPath(runDir, projectHash, instanceID string) string {
	return filepath.Join(runDir, projectHash, instanceID+".sock")
}

// SessionLogDir returns the directory holding a project's session logs.
func SessionLogDir(projectsDir, projectHash string) string {
	return filepath.Join(projectsDir, projectHash, "sessions")
}

// SessionLogPath returns the JSONL event log path for a session.
func SessionLogPath(projectsDir, projectHash, sessionID string) string {
	return filepath.Join(SessionLogDir(projectsDir, projectHash), sessionID+".jsonl")
}

// InstancesFile returns the registry file listing a project's instances.
func InstancesFile(registryDir, projectHash string) string {
	return filepath.Join(registryDir, projectHash, "instances.json")
}
