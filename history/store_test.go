package history

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state", "comment_history.toml")
	store, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Count("account-1", "2026-10-18"))

	require.NoError(t, store.RecordSuccess("account-1", "2026-10-18", "https://www.nodeseek.com/post-1-1"))
	require.NoError(t, store.RecordSuccess("account-1", "2026-10-18", "https://www.nodeseek.com/post-2-1"))
	require.NoError(t, store.RecordSuccess("account-2", "2026-10-18", "https://www.nodeseek.com/post-3-1"))

	reloaded, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Count("account-1", "2026-10-18"))
	assert.Equal(t, 1, reloaded.Count("account-2", "2026-10-18"))
	assert.Equal(t, 0, reloaded.Count("account-1", "2026-10-19"))
	assert.Equal(t, []string{
		"https://www.nodeseek.com/post-1-1",
		"https://www.nodeseek.com/post-2-1",
	}, reloaded.Threads("account-1", "2026-10-18"))
}

func TestCorruptFileIsEmptyHistory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.toml")
	require.NoError(t, os.WriteFile(path, []byte("{{{ not toml"), 0o600))

	store, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Count("account-1", "2026-10-18"))
}

func TestConcurrentAccounts(t *testing.T) {
	t.Parallel()

	store, err := Open(filepath.Join(t.TempDir(), "history.toml"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, account := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(account string) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				assert.NoError(t, store.RecordSuccess(account, "2026-10-18", "u"))
			}
		}(account)
	}
	wg.Wait()
	for _, account := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, 5, store.Count(account, "2026-10-18"))
	}
}

func TestDayUsesForumTimezone(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2026-10-19", Day(time.Date(2026, 10, 18, 16, 30, 0, 0, time.UTC)))
	assert.Equal(t, "2026-10-18", Day(time.Date(2026, 10, 18, 15, 59, 0, 0, time.UTC)))
}
