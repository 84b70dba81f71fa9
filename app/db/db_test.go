package database

import (
	"log/slog"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-trip-planner-ai/config"
)

func TestNewDatabaseConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	t.Run("builds the url", func(t *testing.T) {
		var cfg config.Config
		cfg.Repositories.Postgres.Host = "db"
		cfg.Repositories.Postgres.Port = "5432"
		cfg.Repositories.Postgres.Username = "trip"
		cfg.Repositories.Postgres.Password = "p@ss"
		cfg.Repositories.Postgres.DB = "trip_planner"
		cfg.Repositories.Postgres.MAXCONWAITINGTIME = 10

		dbCfg, err := NewDatabaseConfig(&cfg, logger)
		require.NoError(t, err)

		u, err := url.Parse(dbCfg.ConnectionURL)
		require.NoError(t, err)
		assert.Equal(t, "postgres", u.Scheme)
		assert.Equal(t, "db:5432", u.Host)
		assert.Equal(t, "/trip_planner", u.Path)
		pass, _ := u.User.Password()
		assert.Equal(t, "p@ss", pass)
		assert.Equal(t, "disable", u.Query().Get("sslmode"))
		assert.Equal(t, 10*time.Second, MaxConnWait(&cfg))
	})

	t.Run("missing host", func(t *testing.T) {
		_, err := NewDatabaseConfig(&config.Config{}, logger)
		assert.Error(t, err)
	})
}
