package portfolio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderInitialSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.json")
	require.NoError(t, os.WriteFile(path, []byte(validConfigJSON), 0o644))

	l, err := NewLoader(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	snap := l.Snapshot()
	assert.Equal(t, int64(1), snap.Version)
	assert.Len(t, snap.Config.Strategies, 2)
	assert.False(t, snap.LoadedAt.IsZero())
}

func TestLoaderRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"total_capital": 0}`), 0o644))
	_, err := NewLoader(path)
	assert.Error(t, err)

	_, err = NewLoader("")
	assert.Error(t, err)
	_, err = NewLoader(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoaderSubscribeImmediateSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.json")
	require.NoError(t, os.WriteFile(path, []byte(validConfigJSON), 0o644))

	l, err := NewLoader(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	got := make(chan Snapshot, 1)
	l.Subscribe(func(s Snapshot) { got <- s })
	snap := <-got
	assert.Equal(t, int64(1), snap.Version)
}
