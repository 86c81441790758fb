package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/storage/localfs"
	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

// testWorkspace is a corpus, a curation table and a config file in a temp
// directory.
type testWorkspace struct {
	dir        string
	inputRoot  string
	curation   string
	configPath string
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestWorkspace(t *testing.T) *testWorkspace {
	t.Helper()
	dir := t.TempDir()
	ws := &testWorkspace{
		dir:        dir,
		inputRoot:  filepath.Join(dir, "intermediate"),
		curation:   filepath.Join(dir, "curated.csv"),
		configPath: filepath.Join(dir, "gastm.yaml"),
	}
	writeTestFile(t, ws.curation, "chemical_name,resolved_chemical_name\nCH4,Methane\natomic oxygen ion,oxygen\n")
	writeTestFile(t, ws.configPath, strings.Join([]string{
		"curation:",
		"  source: file",
		"  path: " + ws.curation,
		"storage:",
		"  source: localfs",
		"  input_root: " + ws.inputRoot,
		"  sinks: [fs]",
		"log:",
		"  level: error",
		"",
	}, "\n"))
	return ws
}

func (ws *testWorkspace) addDocument(t *testing.T, docID, counts string) {
	t.Helper()
	writeTestFile(t, filepath.Join(ws.inputRoot, localfs.DocumentFile(docID, localfs.RawCountsSuffix)), counts)
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func findCommand(root *cobra.Command, name string) *cobra.Command {
	for _, c := range root.Commands() {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

func TestNewRootCommand_Structure(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "gastm", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	for _, name := range []string{"consolidate", "normalize", "classify", "resolve", "scrub", "migrate", "version"} {
		assert.NotNil(t, findCommand(cmd, name), "subcommand %q", name)
	}
	migrate := findCommand(cmd, "migrate")
	require.NotNil(t, migrate)
	for _, name := range []string{"up", "down", "status", "force"} {
		assert.NotNil(t, findCommand(migrate, name), "migrate subcommand %q", name)
	}
}

func TestNewRootCommand_GlobalFlags(t *testing.T) {
	pf := NewRootCommand().PersistentFlags()
	for _, name := range []string{"config", "log-level", "output", "verbose", "timeout"} {
		assert.NotNil(t, pf.Lookup(name), "flag %q", name)
	}
	assert.Equal(t, "c", pf.Lookup("config").Shorthand)
	assert.Equal(t, "o", pf.Lookup("output").Shorthand)
	assert.Equal(t, "text", pf.Lookup("output").DefValue)
}

func TestRoot_InvalidOutputFormat(t *testing.T) {
	ws := newTestWorkspace(t)
	_, _, err := execute(t, "", "--config", ws.configPath, "-o", "yaml", "version")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestRoot_MissingConfigFile(t *testing.T) {
	_, _, err := execute(t, "", "--config", filepath.Join(t.TempDir(), "absent.yaml"), "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config initialization failed")
}

func TestVersion(t *testing.T) {
	ws := newTestWorkspace(t)
	old := Version
	Version = "1.2.3"
	t.Cleanup(func() { Version = old })

	out, _, err := execute(t, "", "--config", ws.configPath, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "gastm 1.2.3")

	out, _, err = execute(t, "", "--config", ws.configPath, "-o", "json", "version")
	require.NoError(t, err)
	var v versionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "1.2.3", v.Version)
}

func TestGetCLIContext_Missing(t *testing.T) {
	_, err := GetCLIContext(&cobra.Command{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInternal))
}

func TestFormatTable(t *testing.T) {
	out := FormatTable([]string{"NAME", "N"}, [][]string{{"oxygen", "5"}, {"ar", "12"}})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "NAME    N ", lines[0])
	assert.Equal(t, "------  --", lines[1])
	assert.Equal(t, "oxygen  5 ", lines[2])
	assert.Equal(t, "ar      12", lines[3])

	assert.Empty(t, FormatTable(nil, nil))
	assert.Equal(t, "abc", padRight("abc", 2))
}
