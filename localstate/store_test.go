package localstate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.yaml")
	s := NewFileStore(path)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	p, err := s.LoadPersistedSession()
	require.NoError(t, err)
	require.False(t, p.AdminSession)

	require.NoError(t, s.SaveAdminSession("admin@travel.com"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), "admin_session: true")

	p, err = s.LoadPersistedSession()
	require.NoError(t, err)
	require.True(t, p.AdminSession)
	require.Equal(t, "admin@travel.com", p.AdminEmail)
	require.Equal(t, 2026, p.SavedAt.Year())

	require.NoError(t, s.ClearPersistedSession())
	require.NoError(t, s.ClearPersistedSession())

	p, err = s.LoadPersistedSession()
	require.NoError(t, err)
	require.Equal(t, Persisted{}, p)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte("admin_session: [not a bool"), 0o600))

	_, err := NewFileStore(path).LoadPersistedSession()
	require.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	var s Store = NewMemoryStore()

	require.NoError(t, s.SaveAdminSession("admin@travel.com"))
	p, err := s.LoadPersistedSession()
	require.NoError(t, err)
	require.True(t, p.AdminSession)

	require.NoError(t, s.ClearPersistedSession())
	p, err = s.LoadPersistedSession()
	require.NoError(t, err)
	require.False(t, p.AdminSession)
}
