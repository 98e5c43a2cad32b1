package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"moneymanager/internal/config"
	"moneymanager/internal/core"
)

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	require.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db"})
	require.NoError(t, err)
	require.Equal(t, SQLiteBackend, cfg.Type)
	require.Equal(t, "x.db", cfg.SQLiteDBPath)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	require.ErrorContains(t, err, "invalid backend type in config: sheets (valid: [sqlite memory])")
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, Config{Type: MemoryBackend}.Validate())
	require.NoError(t, Config{Type: SQLiteBackend, SQLiteDBPath: "a.db"}.Validate())
	require.Error(t, Config{Type: SQLiteBackend}.Validate())
	require.Error(t, Config{Type: "postgres"}.Validate())
	require.Len(t, GetBackendTypes(), 2)
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)

	for _, cfg := range []Config{
		{Type: MemoryBackend},
		{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "sub", "money.db")},
	} {
		t.Run(cfg.Type.String(), func(t *testing.T) {
			res, err := f.CreateBackend(ctx, cfg)
			require.NoError(t, err)
			require.NoError(t, res.Store.Ping(ctx))

			names, err := res.Store.ListCategoriesByType(ctx, core.Income)
			require.NoError(t, err)
			require.Len(t, names, 6)

			require.NoError(t, res.Cleanup())
		})
	}

	_, err := f.CreateBackend(ctx, Config{Type: "postgres"})
	require.Error(t, err)
}

func TestNewMirrorDisabled(t *testing.T) {
	m, err := NewMirror(context.Background(), &config.Config{}, nil)
	require.NoError(t, err)
	require.Nil(t, m)
}

func TestNewMirrorMissingCredentials(t *testing.T) {
	_, err := NewMirror(context.Background(), &config.Config{GoogleSpreadsheetID: "sheet-1"}, nil)
	require.Error(t, err)
}
