package cache

import (
	"encoding/json"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	a := Key("/api/value-calculator/solutions", url.Values{"industryId": {"dc"}, "technologyId": {"cool"}})
	b := Key("api/value-calculator/solutions", url.Values{"technologyId": {"cool"}, "industryId": {"dc"}})
	c := Key("/api/value-calculator/solutions", url.Values{"industryId": {"dc"}, "technologyId": {"other"}})

	assert.Len(t, a, 64)
	assert.Equal(t, a, b, "leading slash and parameter order are irrelevant")
	assert.NotEqual(t, a, c)
}

func TestFileStore_SetGet(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), true, 60, 0)
	require.NoError(t, err)

	_, err = store.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set("k1", "industries", json.RawMessage(`[{"id":"dc"}]`)))
	entry, err := store.Get("k1")
	require.NoError(t, err)
	assert.Equal(t, "industries", entry.Route)
	assert.JSONEq(t, `[{"id":"dc"}]`, string(entry.Data))
	assert.Less(t, entry.Age(), time.Minute)

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, store.Clear())
	count, err = store.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestFileStore_Expired(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), true, 0, 0)
	require.NoError(t, err)

	require.NoError(t, store.Set("k", "r", json.RawMessage(`1`)))
	time.Sleep(5 * time.Millisecond)

	_, err = store.Get("k")
	require.ErrorIs(t, err, ErrExpired)

	_, err = os.Stat(store.path("k"))
	assert.True(t, os.IsNotExist(err), "expired entry removed")
}

func TestFileStore_Disabled(t *testing.T) {
	store, err := NewFileStore("", false, 60, 0)
	require.NoError(t, err)
	assert.False(t, store.Enabled())

	_, err = store.Get("k")
	require.ErrorIs(t, err, ErrDisabled)
	require.ErrorIs(t, store.Set("k", "r", nil), ErrDisabled)
	require.ErrorIs(t, store.Clear(), ErrDisabled)
}

func TestFileStore_InvalidKey(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), true, 60, 0)
	require.NoError(t, err)

	_, err = store.Get("")
	require.ErrorIs(t, err, ErrInvalidKey)
	require.ErrorIs(t, store.Set("", "r", nil), ErrInvalidKey)
}

func TestFileStore_EvictsOldest(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), true, 60, 0)
	require.NoError(t, err)
	store.maxBytes = 600

	payload := json.RawMessage(`"0123456789012345678901234567890123456789"`)
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, store.Set(k, "r", payload))
		time.Sleep(10 * time.Millisecond)
	}

	_, err = store.Get("a")
	require.ErrorIs(t, err, ErrNotFound, "oldest entry evicted")
	_, err = store.Get("e")
	require.NoError(t, err, "newest entry kept")
}

func TestNewFileStore_RequiresDir(t *testing.T) {
	_, err := NewFileStore("", true, 60, 0)
	require.Error(t, err)
}
