package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/Aman-CERP/cantor/internal/errors"
	"github.com/Aman-CERP/cantor/internal/store"
)

func TestIndexCmd_StatusAfterImport(t *testing.T) {
	// Given: an imported song book
	env := newCLIEnv(t)
	env.importBook(t)

	// When: asking for the index status as JSON
	out, err := env.run(t, "index", "status", "--json")
	require.NoError(t, err)

	// Then: every song has a document and the index is healthy
	var st store.IndexStatus
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, 3, st.Songs)
	assert.Equal(t, 3, st.StandardDocs)
	assert.True(t, st.StandardHealthy)
	assert.Equal(t, store.BuildMode, st.BuildMode)
}

func TestIndexCmd_StatusText(t *testing.T) {
	env := newCLIEnv(t)
	env.importBook(t)

	out, err := env.run(t, "index", "status")

	require.NoError(t, err)
	assert.Contains(t, out, "Index status")
	assert.Contains(t, out, "Index is healthy")
}

func TestIndexCmd_RemoveThenReindexSong(t *testing.T) {
	// Given: an imported song book
	env := newCLIEnv(t)
	env.importBook(t)

	// When: song 2 is removed from the index
	_, err := env.run(t, "index", "remove", "2")
	require.NoError(t, err)

	// Then: searching no longer finds it and status reports drift
	out, err := env.run(t, "search", "hristos")
	require.NoError(t, err)
	assert.Contains(t, out, "No songs match")

	out, err = env.run(t, "index", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "out of sync")

	// When: the song is indexed again
	out, err = env.run(t, "index", "song", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed song 2")

	// Then: it is found again
	out, err = env.run(t, "search", "hristos")
	require.NoError(t, err)
	assert.Contains(t, out, "1 songs match")
}

func TestIndexCmd_Rebuild(t *testing.T) {
	// Given: an index with a song missing
	env := newCLIEnv(t)
	env.importBook(t)
	_, err := env.run(t, "index", "remove", "1")
	require.NoError(t, err)

	// When: rebuilding
	out, err := env.run(t, "index", "rebuild")

	// Then: every song is indexed again
	require.NoError(t, err)
	assert.Contains(t, out, "Rebuilt index: 3 songs")

	out, err = env.run(t, "index", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Index is healthy")
}

func TestIndexCmd_Category(t *testing.T) {
	env := newCLIEnv(t)
	env.importBook(t)

	out, err := env.run(t, "index", "category", "2")

	require.NoError(t, err)
	assert.Contains(t, out, "Reindexed 2 songs of category 2")
}

func TestIndexCmd_InvalidID(t *testing.T) {
	env := newCLIEnv(t)

	for _, arg := range []string{"abc", "0", "-3"} {
		_, err := env.run(t, "index", "song", "--", arg)
		require.Error(t, err, arg)
		assert.Equal(t, cerrors.ErrCodeInvalidInput, cerrors.GetCode(err), arg)
	}
}

func TestIndexCmd_CheckAndRepair(t *testing.T) {
	// Given: song 3 is missing from the index
	env := newCLIEnv(t)
	env.importBook(t)
	_, err := env.run(t, "index", "remove", "3")
	require.NoError(t, err)

	// When: checking without --repair
	out, err := env.run(t, "index", "check")
	require.NoError(t, err)

	// Then: the missing song is reported
	assert.Contains(t, out, "missing_standard")
	assert.Contains(t, out, "--repair")

	// When: repairing
	out, err = env.run(t, "index", "check", "--repair")
	require.NoError(t, err)
	assert.Contains(t, out, "indexed 1 songs")

	// Then: a second check is clean
	out, err = env.run(t, "index", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "index is consistent")
}
