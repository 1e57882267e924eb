package cli

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/erpgate/internal/ir"
)

func TestLookupCommandText(t *testing.T) {
	db := seedDatabase(t, time.Now().UTC())

	out, err := execute(t, "lookup", "--db", db, "move-po1")
	require.NoError(t, err)
	assert.Contains(t, out, "key:      move-po1")
	assert.Contains(t, out, `"operation":"date_change"`)
	assert.NotContains(t, out, "expired")
}

func TestLookupCommandJSON(t *testing.T) {
	db := seedDatabase(t, time.Now().UTC())

	out, err := execute(t, "--format", "json", "lookup", "--db", db, "move-po1")
	require.NoError(t, err)

	var raw struct {
		Status string       `json:"status"`
		Data   LookupResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw))
	assert.Equal(t, "ok", raw.Status)
	assert.Equal(t, "move-po1", raw.Data.Key)
	assert.False(t, raw.Data.Expired)

	var response ir.IRObject
	require.NoError(t, json.Unmarshal(raw.Data.Response, &response))
	assert.Equal(t, ir.IRString("date_change"), response["operation"])
	assert.Equal(t, ir.ResponseFingerprint(mustCanonical(t, response)), raw.Data.ResponseHash)
}

func TestLookupCommandExpired(t *testing.T) {
	db := seedDatabase(t, time.Now().UTC().Add(-48*time.Hour))

	out, err := execute(t, "lookup", "--db", db, "move-po1")
	require.NoError(t, err)
	assert.Contains(t, out, "expired:  yes")
}

func TestLookupCommandNotFound(t *testing.T) {
	db := seedDatabase(t, time.Now().UTC())

	out, err := execute(t, "lookup", "--db", db, "never-used")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E_NOT_FOUND]")

	out, err = execute(t, "--format", "json", "lookup", "--db", db, "never-used")
	require.Error(t, err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_NOT_FOUND", resp.Error.Code)
}

func TestLookupCommandRequiresKey(t *testing.T) {
	_, err := execute(t, "lookup", "--db", "unused.db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func mustCanonical(t *testing.T, obj ir.IRObject) []byte {
	t.Helper()
	data, err := ir.MarshalCanonical(obj)
	require.NoError(t, err)
	return data
}
