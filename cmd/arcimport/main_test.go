package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/arcimport"
	"github.com/meigma/arcimport/internal/testutil"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), err
}

func sampleArchive(t *testing.T, opts ...testutil.ZipOption) string {
	t.Helper()
	return testutil.WriteZip(t, testutil.Files(map[string]string{
		"app/__init__.star": `load("app.util", "double")
print("hello")
X = double(21)
`,
		"app/util.star":  "def double(n):\n    return n * 2\n",
		"app/data.txt":   "payload",
		"app/res/a.txt":  "a",
		"broken.star":    "def (",
		"other/misc.txt": "misc",
	}), opts...)
}

func TestRun(t *testing.T) {
	t.Parallel()
	zipPath := sampleArchive(t)

	out, err := execute(t, "run", zipPath, "app")
	require.NoError(t, err)
	assert.Contains(t, out, "hello\n")
	assert.Contains(t, out, "X = 42\n")
}

func TestRunNotFound(t *testing.T) {
	t.Parallel()
	zipPath := sampleArchive(t)

	_, err := execute(t, "run", zipPath, "missing")
	require.ErrorIs(t, err, arcimport.ErrModuleNotFound)
}

func TestLs(t *testing.T) {
	t.Parallel()
	zipPath := sampleArchive(t)

	t.Run("entries", func(t *testing.T) {
		t.Parallel()
		out, err := execute(t, "ls", zipPath)
		require.NoError(t, err)
		assert.Contains(t, out, "PATH")
		assert.Contains(t, out, "app/data.txt")
		assert.Contains(t, out, "other/misc.txt")
	})

	t.Run("modules", func(t *testing.T) {
		t.Parallel()
		out, err := execute(t, "ls", "--modules", zipPath)
		require.NoError(t, err)
		assert.Regexp(t, `app\s+package\s+app/__init__\.star`, out)
		assert.Regexp(t, `app\.util\s+module\s+app/util\.star`, out)
		assert.Regexp(t, `broken\s+module\s+broken\.star`, out)
		assert.NotContains(t, out, "misc")
	})
}

func TestInspect(t *testing.T) {
	t.Parallel()
	zipPath := sampleArchive(t)

	out, err := execute(t, "inspect", zipPath, "app")
	require.NoError(t, err)
	assert.Contains(t, out, "package")
	assert.Contains(t, out, "app/__init__.star")
	assert.Contains(t, out, filepath.Join(zipPath, "app"))
	assert.Contains(t, out, "sha256:")
}

func TestCat(t *testing.T) {
	t.Parallel()
	zipPath := sampleArchive(t)

	out, err := execute(t, "cat", zipPath, "app/data.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload", out)

	_, err = execute(t, "cat", zipPath, "app/nope.txt")
	require.ErrorIs(t, err, arcimport.ErrDataNotFound)
}

func TestResources(t *testing.T) {
	t.Parallel()
	zipPath := sampleArchive(t)

	out, err := execute(t, "resources", zipPath, "app")
	require.NoError(t, err)
	assert.Equal(t, "__init__.star\ndata.txt\nres\nutil.star\n", out)

	_, err = execute(t, "resources", zipPath, "app.util")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a package")
}

func TestCheck(t *testing.T) {
	t.Parallel()

	t.Run("failure reported", func(t *testing.T) {
		t.Parallel()
		zipPath := sampleArchive(t)

		out, err := execute(t, "check", "--workers", "2", zipPath)
		require.Error(t, err)
		require.ErrorIs(t, err, arcimport.ErrModuleNotFound)
		assert.Contains(t, err.Error(), "1 of 3 modules failed")
		assert.Contains(t, out, "FAIL broken")
		assert.Contains(t, out, "app.util")
	})

	t.Run("clean archive", func(t *testing.T) {
		t.Parallel()
		zipPath := testutil.WriteZip(t, testutil.Files(map[string]string{
			"a.star":   "A = 1",
			"b/c.star": "C = 2",
		}))

		_, err := execute(t, "check", zipPath)
		require.NoError(t, err)
	})
}

func TestCompileThenRun(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "greet.star")
	require.NoError(t, os.WriteFile(src, []byte("GREETING = 'hi ' + str(N)\n"), 0o600))

	for _, legacy := range []bool{false, true} {
		out := filepath.Join(dir, "build", "greet.starc")
		args := []string{"compile", "--predeclared", "N", src, out}
		if legacy {
			args = append(args, "--legacy-header")
		}
		_, err := execute(t, args...)
		require.NoError(t, err)

		compiled, err := os.ReadFile(out)
		require.NoError(t, err)

		zipPath := testutil.WriteZip(t, map[string][]byte{
			"greet.starc": compiled,
			"greet.star":  []byte("GREETING = 'from source'"),
		})
		imp, err := arcimport.Open(zipPath)
		require.NoError(t, err)

		_, path, err := imp.Loader().Locate("greet")
		require.NoError(t, err)
		assert.Equal(t, "greet.starc", path)

		resolved, err := imp.Loader().Load("greet")
		require.NoError(t, err)
		assert.Equal(t, "greet.starc", resolved.Path)
		require.NoError(t, imp.Close())
	}
}

func TestCompileSyntaxError(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "bad.star")
	require.NoError(t, os.WriteFile(src, []byte("def ("), 0o600))

	_, err := execute(t, "compile", src, filepath.Join(dir, "bad.starc"))
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "bad.starc"))
}

func TestPasswordFromConfigFile(t *testing.T) {
	t.Parallel()
	zipPath := sampleArchive(t, testutil.WithPassword("s3cret"))

	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("password: s3cret\n"), 0o600))

	out, err := execute(t, "--config", cfg, "cat", zipPath, "app/data.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload", out)

	_, err = execute(t, "cat", zipPath, "app/data.txt")
	require.ErrorIs(t, err, arcimport.ErrBadCredential)
}

func TestMissingConfigFile(t *testing.T) {
	t.Parallel()
	zipPath := sampleArchive(t)

	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "none.yaml"), "ls", zipPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestPasswordFromEnv(t *testing.T) {
	zipPath := sampleArchive(t, testutil.WithPassword("envpass"))
	t.Setenv("ARCIMPORT_PASSWORD", "envpass")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	out, err := execute(t, "cat", zipPath, "app/data.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload", out)
}
