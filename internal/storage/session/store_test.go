package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/adsum/internal/models"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewStore(dir, arbor.NewLogger())
	require.NoError(t, err)
	return store.(*Store), dir
}

func TestLoadMissingReturnsNil(t *testing.T) {
	store, _ := newTestStore(t)

	state, err := store.Load("alice.session")

	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	saved := &models.AuthSessionState{
		Blob:       []byte(`[{"name":"session","value":"abc"}]`),
		CapturedAt: time.Now().Truncate(time.Second),
	}

	require.NoError(t, store.Save("alice.session", saved))
	loaded, err := store.Load("alice.session")

	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, saved.Blob, loaded.Blob)
	assert.Equal(t, saved.CapturedAt.Unix(), loaded.CapturedAt.Unix())
}

func TestSaveSetsOwnerOnlyPermissions(t *testing.T) {
	store, dir := newTestStore(t)

	require.NoError(t, store.Save("alice.session", &models.AuthSessionState{Blob: []byte("{}")}))

	info, err := os.Stat(filepath.Join(dir, "alice.session"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSaveReplacesWholeState(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Save("alice.session", &models.AuthSessionState{Blob: []byte("first")}))
	require.NoError(t, store.Save("alice.session", &models.AuthSessionState{Blob: []byte("second")}))

	loaded, err := store.Load("alice.session")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), loaded.Blob)
}

func TestLoadCorruptBlobDiscarded(t *testing.T) {
	store, dir := newTestStore(t)
	path := filepath.Join(dir, "alice.session")
	require.NoError(t, os.WriteFile(path, []byte("not json at all"), 0600))

	state, err := store.Load("alice.session")

	require.NoError(t, err)
	assert.Nil(t, state, "corrupt state behaves like no state")
}

func TestDiscard(t *testing.T) {
	store, dir := newTestStore(t)
	require.NoError(t, store.Save("alice.session", &models.AuthSessionState{Blob: []byte("{}")}))

	require.NoError(t, store.Discard("alice.session"))

	_, err := os.Stat(filepath.Join(dir, "alice.session"))
	assert.True(t, os.IsNotExist(err))
	// Discarding again is a no-op
	assert.NoError(t, store.Discard("alice.session"))
}

func TestAbsolutePathBypassesBaseDir(t *testing.T) {
	store, _ := newTestStore(t)
	other := filepath.Join(t.TempDir(), "elsewhere.session")

	require.NoError(t, store.Save(other, &models.AuthSessionState{Blob: []byte("{}")}))

	_, err := os.Stat(other)
	assert.NoError(t, err)
}
