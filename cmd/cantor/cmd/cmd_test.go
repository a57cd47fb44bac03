package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testSongBook = `
categories:
  - name: Laudă
    priority: 5
  - name: Generale
songs:
  - title: Sfânt Ești Doamne
    category: Laudă
    slides:
      - Sfânt ești Doamne, vrednic ești
      - Cerul și pământul sunt pline de slava Ta
  - title: Hristos a înviat
    category: Generale
    slides:
      - Hristos a înviat din morți
  - title: Domnul e păstorul meu
    category: Generale
    slides:
      - Nu voi duce lipsă de nimic
synonyms:
  - primary: Hristos
    synonyms: [Cristos]
`

// cliEnv isolates a CLI run from the user's home, config and database.
type cliEnv struct {
	home      string
	dbPath    string
	configDir string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("NO_COLOR", "1")
	for _, key := range []string{
		"CANTOR_DB_PATH", "CANTOR_LOG_LEVEL", "CANTOR_MIN_TERM_FREQUENCY",
		"CANTOR_SYNONYM_TTL", "CANTOR_BOOST_MODE", "CANTOR_TELEMETRY",
	} {
		t.Setenv(key, "")
	}

	return &cliEnv{
		home:      home,
		dbPath:    filepath.Join(home, "songs.db"),
		configDir: t.TempDir(),
	}
}

// run executes the root command with args and returns what it printed.
func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{"--db", e.dbPath, "--config-dir", e.configDir}, args...))

	err := cmd.Execute()
	return buf.String(), err
}

// importBook writes the test song book and imports it.
func (e *cliEnv) importBook(t *testing.T) {
	t.Helper()

	path := filepath.Join(e.home, "book.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testSongBook), 0o644))

	_, err := e.run(t, "import", path)
	require.NoError(t, err)
}
