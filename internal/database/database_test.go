package database

import (
	"path/filepath"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/repoinsight/config"
	"github.com/qs3c/repoinsight/internal/model"
)

func TestNewDB_SQLite(t *testing.T) {
	db, err := NewDB(&config.DatabaseConfig{Driver: "sqlite", Database: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	assert.True(t, db.Migrator().HasTable(&model.JobRecord{}))
}

func TestNewDB_UnknownDriver(t *testing.T) {
	_, err := NewDB(&config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestNewRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := &config.RedisConfig{Host: mr.Host(), Port: atoi(t, mr.Port())}
	client, err := NewRedis(cfg)
	require.NoError(t, err)
	client.Close()

	mr.Close()
	_, err = NewRedis(cfg)
	assert.Error(t, err)
}

func atoi(t *testing.T, s string) int {
	t.Helper()
	n, err := strconv.Atoi(s)
	require.NoError(t, err)
	return n
}
