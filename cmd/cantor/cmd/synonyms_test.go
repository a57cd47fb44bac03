package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/Aman-CERP/cantor/internal/errors"
	"github.com/Aman-CERP/cantor/internal/search"
)

func TestSynonymsCmd_EmptyList(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "synonyms", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "No synonym groups")
}

func TestSynonymsCmd_SetFromJSONThenList(t *testing.T) {
	// Given: a JSON synonym file
	env := newCLIEnv(t)
	path := filepath.Join(env.home, "synonyms.json")
	data := `[{"id":"isus","primary":"Isus","synonyms":["Iisus"]}]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	// When: setting and listing the groups
	out, err := env.run(t, "synonyms", "set", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Saved 1 synonym groups")

	out, err = env.run(t, "synonyms", "list", "--json")
	require.NoError(t, err)

	// Then: the stored groups match the file
	var groups []search.SynonymGroup
	require.NoError(t, json.Unmarshal([]byte(out), &groups))
	require.Len(t, groups, 1)
	assert.Equal(t, "Isus", groups[0].Primary)
	assert.Equal(t, []string{"Iisus"}, groups[0].Synonyms)
}

func TestSynonymsCmd_SetFromYAMLReplaces(t *testing.T) {
	// Given: a library whose book brought one group
	env := newCLIEnv(t)
	env.importBook(t)
	path := filepath.Join(env.home, "synonyms.yaml")
	data := "- primary: Doamne\n  synonyms: [Domnul]\n- primary: har\n  synonyms: [milă]\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	// When: setting groups from YAML
	_, err := env.run(t, "synonyms", "set", path)
	require.NoError(t, err)

	// Then: the listing shows only the new groups
	out, err := env.run(t, "synonyms", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "2 synonym groups")
	assert.Contains(t, out, "Domnul")
	assert.NotContains(t, out, "Cristos")
}

func TestSynonymsCmd_SetRejectsGroupWithoutPrimary(t *testing.T) {
	env := newCLIEnv(t)
	path := filepath.Join(env.home, "synonyms.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- synonyms: [a, b]\n"), 0o644))

	_, err := env.run(t, "synonyms", "set", path)

	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeSynonymsInvalid, cerrors.GetCode(err))
}

func TestSynonymsCmd_SetRejectsNonList(t *testing.T) {
	env := newCLIEnv(t)
	path := filepath.Join(env.home, "synonyms.yaml")
	require.NoError(t, os.WriteFile(path, []byte("primary: Isus\n"), 0o644))

	_, err := env.run(t, "synonyms", "set", path)

	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeSynonymsInvalid, cerrors.GetCode(err))
}
