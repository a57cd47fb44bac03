package cmd

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/Aman-CERP/cantor/internal/errors"
)

func TestSearchCmd_RequiresQuery(t *testing.T) {
	// Given: an empty environment
	env := newCLIEnv(t)

	// When: running search without a query
	_, err := env.run(t, "search")

	// Then: cobra rejects the arguments
	require.Error(t, err)
}

func TestSearchCmd_TextOutput(t *testing.T) {
	// Given: an imported song book
	env := newCLIEnv(t)
	env.importBook(t)

	// When: searching for a title word
	out, err := env.run(t, "search", "hristos")

	// Then: the matching song is listed with its category
	require.NoError(t, err)
	assert.Contains(t, out, "1 songs match")
	assert.Contains(t, out, "a înviat")
	assert.Contains(t, out, "Generale")
	assert.NotContains(t, out, "păstorul")
}

func TestSearchCmd_JSONOutputWithSynonyms(t *testing.T) {
	// Given: a library with the Hristos/Cristos synonym group
	env := newCLIEnv(t)
	env.importBook(t)

	// When: searching the other spelling as JSON
	out, err := env.run(t, "search", "cristos", "--format", "json", "--explain")
	require.NoError(t, err)

	// Then: the song spelled Hristos is found and the plan is included
	var report searchReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "cristos", report.Query)
	require.NotNil(t, report.Plan)
	assert.Contains(t, report.Plan.Terms.Expanded, "hristos")
	require.NotEmpty(t, report.Results)
	assert.Equal(t, "Hristos a înviat", report.Results[0].Title)
}

func TestSearchCmd_CategoryFilter(t *testing.T) {
	// Given: Hristos a înviat belongs to category 2
	env := newCLIEnv(t)
	env.importBook(t)

	// When: searching inside category 1
	out, err := env.run(t, "search", "hristos", "--category", "1")

	// Then: nothing matches
	require.NoError(t, err)
	assert.Contains(t, out, "No songs match")
}

func TestSearchCmd_Explain(t *testing.T) {
	env := newCLIEnv(t)
	env.importBook(t)

	out, err := env.run(t, "search", "sfant", "--explain")

	require.NoError(t, err)
	assert.Contains(t, out, "Query plan")
	assert.Contains(t, out, "Standard query")
	assert.Contains(t, out, "score ")
}

func TestSearchCmd_LongQueryStillSearches(t *testing.T) {
	// Given: an imported song book and a query over the length limit
	env := newCLIEnv(t)
	env.importBook(t)
	query := strings.Repeat("hristos ", 80)

	// When: searching
	out, err := env.run(t, "search", query)

	// Then: the leading words are searched
	require.NoError(t, err)
	assert.Contains(t, out, "a înviat")
	assert.NotContains(t, out, "păstorul")
}

func TestSearchCmd_UnknownFormat(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "search", "har", "--format", "xml")

	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeInvalidInput, cerrors.GetCode(err))
}
