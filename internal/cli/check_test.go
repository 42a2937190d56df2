package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/curiolabs/curio/internal/config"
)

func TestCurioctl_Check_Files(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "schema.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	present := checkFile("knowledge base schema", path, true)
	require.True(t, present.ok)
	require.Equal(t, path, present.detail)
	require.True(t, present.required)

	missing := checkFile("training data CSV", filepath.Join(dir, "missing.csv"), true)
	require.False(t, missing.ok)
}

func TestCurioctl_Check_Env(t *testing.T) {
	t.Setenv("CURIO_CHECK_TEST_VAR", "1")
	set := checkEnv("CURIO_CHECK_TEST_VAR", true)
	require.True(t, set.ok)

	t.Setenv("CURIO_CHECK_TEST_UNSET", "")
	require.NoError(t, os.Unsetenv("CURIO_CHECK_TEST_UNSET"))
	unset := checkEnv("CURIO_CHECK_TEST_UNSET", false)
	require.False(t, unset.ok)
	require.False(t, unset.required)
}

func TestCurioctl_Check_PathsFollowEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "schema.json")
	trainingPath := filepath.Join(dir, "training.csv")
	require.NoError(t, os.WriteFile(schemaPath, []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(trainingPath, []byte("question,sql\n"), 0o644))

	t.Setenv(config.EnvSchemaPath, schemaPath)
	t.Setenv(config.EnvTrainingDataPath, trainingPath)
	t.Setenv(config.EnvTasksConfigPath, filepath.Join(dir, "tasks.yaml"))
	t.Setenv(config.EnvQuestionDBPath, filepath.Join(dir, "questions.db"))

	results := runChecks()

	require.Equal(t, schemaPath, results[0].detail)
	require.True(t, results[0].ok)
	require.Equal(t, trainingPath, results[1].detail)
	require.True(t, results[1].ok)

	// The tasks config and question database are created on demand, so
	// their absence is reported but is not a failure.
	require.False(t, results[2].ok)
	require.False(t, results[2].required)
	require.False(t, results[3].ok)
	require.False(t, results[3].required)
}

func TestCurioctl_Check_Report(t *testing.T) {
	t.Parallel()

	t.Run("all_required_checks_pass", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		ok := printCheckReport(&buf, []checkResult{
			{kind: "file", name: "knowledge base schema", detail: "schema.json", ok: true, required: true},
			{kind: "env", name: "SLACK_BOT_TOKEN", ok: false, required: false},
		})
		require.True(t, ok)
		require.Contains(t, buf.String(), "All set")
		require.Contains(t, buf.String(), "⚠️")
	})

	t.Run("missing_required_check_fails", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		ok := printCheckReport(&buf, []checkResult{
			{kind: "env", name: "QA_API_URL", ok: false, required: true},
		})
		require.False(t, ok)
		require.Contains(t, buf.String(), "Setup incomplete")
	})
}
