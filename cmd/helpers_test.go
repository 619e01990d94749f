package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/citewatch/internal/config"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly-10", truncate("exactly-10", 10))
	assert.Equal(t, "this is...", truncate("this is far too long", 10))
}

func TestInitStoreUnknownDriver(t *testing.T) {
	cfg = &config.Config{}
	cfg.Store.Driver = "oracle"

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store driver")
}

func TestInitStoreSQLite(t *testing.T) {
	cfg = &config.Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = filepath.Join(t.TempDir(), "cmd.db")

	st, err := initStore(context.Background())
	require.NoError(t, err)
	require.NoError(t, st.Close())
}
