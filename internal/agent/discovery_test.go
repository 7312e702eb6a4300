package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scratchDirs creates isolated project and home roots and points the
// home-directory lookup at the latter.
func scratchDirs(t *testing.T) (projectRoot, homeDir string) {
	t.Helper()
	projectRoot = t.TempDir()
	homeDir = t.TempDir()
	t.Setenv("HOME", homeDir)
	return projectRoot, homeDir
}

// writeDefinition writes a definition file for agentType under root's
// agents directory and returns its path.
func writeDefinition(t *testing.T, root, agentType, content string) string {
	t.Helper()
	dir := filepath.Join(root, ".claude", "agents")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, agentType+".md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// defContent builds a minimal valid definition body.
func defContent(name string) string {
	return "---\nname: \"" + name + "\"\n---\n\nDo the work.\n"
}

func TestLoad_ProjectDefinition(t *testing.T) {
	projectRoot, _ := scratchDirs(t)
	path := writeDefinition(t, projectRoot, "code-reviewer", defContent("Code Reviewer"))

	def, err := Load(projectRoot, "code-reviewer")
	require.NoError(t, err)

	assert.Equal(t, "code-reviewer", def.Type)
	assert.Equal(t, "Code Reviewer", def.Name)
	assert.Equal(t, "Do the work.", def.Instructions)
	assert.Equal(t, path, def.FilePath)
	assert.Equal(t, SourceProject, def.Source)
}

func TestLoad_HomeFallback(t *testing.T) {
	projectRoot, homeDir := scratchDirs(t)
	path := writeDefinition(t, homeDir, "researcher", defContent("Researcher"))

	def, err := Load(projectRoot, "researcher")
	require.NoError(t, err)

	assert.Equal(t, "Researcher", def.Name)
	assert.Equal(t, path, def.FilePath)
	assert.Equal(t, SourceHome, def.Source)
}

func TestLoad_ProjectShadowsHome(t *testing.T) {
	projectRoot, homeDir := scratchDirs(t)
	writeDefinition(t, projectRoot, "researcher", defContent("Project Researcher"))
	writeDefinition(t, homeDir, "researcher", defContent("Home Researcher"))

	def, err := Load(projectRoot, "researcher")
	require.NoError(t, err)

	assert.Equal(t, "Project Researcher", def.Name)
	assert.Equal(t, SourceProject, def.Source)
}

func TestLoad_NotFound(t *testing.T) {
	projectRoot, _ := scratchDirs(t)

	_, err := Load(projectRoot, "missing")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "missing")
}

func TestLoad_RejectsUnsafeTypeNames(t *testing.T) {
	projectRoot, _ := scratchDirs(t)

	for _, agentType := range []string{"", "../evil", "a/b", `a\b`, ".hidden", ".."} {
		_, err := Load(projectRoot, agentType)
		require.Error(t, err, "type %q should be rejected", agentType)
		assert.Contains(t, err.Error(), "invalid agent type")
	}
}

func TestLoad_ParseErrorPropagates(t *testing.T) {
	projectRoot, _ := scratchDirs(t)
	writeDefinition(t, projectRoot, "broken", "no frontmatter here")

	_, err := Load(projectRoot, "broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing definition")
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	t.Run("merges project and home with project shadowing", func(t *testing.T) {
		projectRoot, homeDir := scratchDirs(t)
		writeDefinition(t, projectRoot, "code-reviewer", defContent("Project Reviewer"))
		writeDefinition(t, homeDir, "code-reviewer", defContent("Home Reviewer"))
		writeDefinition(t, homeDir, "researcher", defContent("Researcher"))

		defs, err := List(projectRoot)
		require.NoError(t, err)
		require.Len(t, defs, 2)

		// Sorted by type
		assert.Equal(t, "code-reviewer", defs[0].Type)
		assert.Equal(t, "Project Reviewer", defs[0].Name)
		assert.Equal(t, SourceProject, defs[0].Source)
		assert.Equal(t, "researcher", defs[1].Type)
		assert.Equal(t, SourceHome, defs[1].Source)
	})

	t.Run("missing directories return empty slice", func(t *testing.T) {
		projectRoot, _ := scratchDirs(t)

		defs, err := List(projectRoot)
		require.NoError(t, err)
		assert.Empty(t, defs)
	})

	t.Run("skips invalid frontmatter", func(t *testing.T) {
		projectRoot, _ := scratchDirs(t)
		writeDefinition(t, projectRoot, "valid", defContent("Valid"))
		writeDefinition(t, projectRoot, "invalid", "not a definition")

		defs, err := List(projectRoot)
		require.NoError(t, err)
		require.Len(t, defs, 1)
		assert.Equal(t, "valid", defs[0].Type)
	})

	t.Run("skips non-md files and subdirectories", func(t *testing.T) {
		projectRoot, _ := scratchDirs(t)
		writeDefinition(t, projectRoot, "valid", defContent("Valid"))

		dir := filepath.Join(projectRoot, ".claude", "agents")
		require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("not an agent"), 0o644))
		subdir := filepath.Join(dir, "nested")
		require.NoError(t, os.MkdirAll(subdir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(subdir, "deep.md"), []byte(defContent("Deep")), 0o644))

		defs, err := List(projectRoot)
		require.NoError(t, err)
		require.Len(t, defs, 1)
		assert.Equal(t, "valid", defs[0].Type)
	})
}

func TestTypes(t *testing.T) {
	t.Run("always includes general-purpose", func(t *testing.T) {
		projectRoot, _ := scratchDirs(t)

		types := Types(projectRoot)
		assert.Equal(t, []string{TypeGeneralPurpose}, types)
	})

	t.Run("sorted union of discovered types", func(t *testing.T) {
		projectRoot, homeDir := scratchDirs(t)
		writeDefinition(t, projectRoot, "code-reviewer", defContent("Reviewer"))
		writeDefinition(t, homeDir, "researcher", defContent("Researcher"))

		types := Types(projectRoot)
		assert.Equal(t, []string{"code-reviewer", "general-purpose", "researcher"}, types)
	})

	t.Run("general-purpose definition file is not duplicated", func(t *testing.T) {
		projectRoot, _ := scratchDirs(t)
		writeDefinition(t, projectRoot, TypeGeneralPurpose, defContent("General Purpose"))

		types := Types(projectRoot)
		assert.Equal(t, []string{TypeGeneralPurpose}, types)
	})
}
