package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentorhub/pkg/types"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	config := DefaultConfig()
	config.Path = filepath.Join(t.TempDir(), "nested", "mentorhub.db")
	config.RetryDelay = 0

	s, err := Open(config, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty path", func(c *Config) { c.Path = "" }},
		{"zero connections", func(c *Config) { c.MaxConnections = 0 }},
		{"zero lifetime", func(c *Config) { c.ConnMaxLifetime = 0 }},
		{"zero idle time", func(c *Config) { c.ConnMaxIdleTime = 0 }},
		{"zero write timeout", func(c *Config) { c.WriteTimeout = 0 }},
		{"negative retry delay", func(c *Config) { c.RetryDelay = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	config := DefaultConfig()
	config.Path = filepath.Join(t.TempDir(), "mentorhub.db")

	first, err := Open(config, nil)
	require.NoError(t, err)
	require.NoError(t, first.Close())
	require.NoError(t, first.Close(), "second close is a no-op")

	second, err := Open(config, nil)
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	var versions int
	require.NoError(t, second.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&versions))
	assert.Equal(t, 2, versions)
	assert.NoError(t, second.HealthCheck(context.Background()))
}

func TestLoadMigrations_Ordered(t *testing.T) {
	migrations, err := loadMigrations(migrationFiles)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, "001", migrations[0].Version)
	assert.Equal(t, "credentials", migrations[0].Description)
	assert.Equal(t, "integrity_warnings", migrations[1].Description)
}

func TestCredentials_RoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.LoadCredentials(ctx, "http://localhost:5000")
	assert.ErrorIs(t, err, ErrNoCredentials)

	saved := Credentials{
		APIURL:  "http://localhost:5000/",
		Token:   "tok-1",
		UserID:  "m1",
		Role:    types.RoleMentor,
		Name:    "Maya",
		Email:   "maya@example.com",
		SavedAt: time.Date(2024, time.June, 1, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveCredentials(ctx, saved))

	loaded, err := s.LoadCredentials(ctx, "http://localhost:5000")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5000", loaded.APIURL)
	assert.Equal(t, "tok-1", loaded.Token)
	assert.Equal(t, types.RoleMentor, loaded.Role)
	assert.True(t, loaded.SavedAt.Equal(saved.SavedAt))

	saved.Token = "tok-2"
	require.NoError(t, s.SaveCredentials(ctx, saved))
	loaded, err = s.LoadCredentials(ctx, "http://localhost:5000/")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", loaded.Token)

	require.NoError(t, s.DeleteCredentials(ctx, "http://localhost:5000"))
	_, err = s.LoadCredentials(ctx, "http://localhost:5000")
	assert.ErrorIs(t, err, ErrNoCredentials)
	assert.NoError(t, s.DeleteCredentials(ctx, "http://localhost:5000"))
}

func TestSaveCredentials_RequiresTokenAndURL(t *testing.T) {
	s := setupTestStore(t)
	assert.ErrorIs(t, s.SaveCredentials(context.Background(), Credentials{APIURL: "http://x"}), ErrInvalidRecord)
	assert.ErrorIs(t, s.SaveCredentials(context.Background(), Credentials{Token: "t"}), ErrInvalidRecord)
}

func TestWarnings_UpsertAndList(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	first := time.Date(2024, time.June, 1, 8, 0, 0, 0, time.UTC)
	later := first.Add(time.Hour)

	require.NoError(t, s.RecordWarnings(ctx, nil, first))
	require.NoError(t, s.RecordWarnings(ctx, []types.IntegrityWarning{
		{SessionID: "s1", Reason: "missing or invalid startTime"},
		{SessionID: "s2", Reason: "unknown status \"archived\""},
	}, first))
	require.NoError(t, s.RecordWarnings(ctx, []types.IntegrityWarning{
		{SessionID: "s1", Reason: "missing or invalid startTime"},
	}, later))

	records, err := s.ListWarnings(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "s1", records[0].SessionID)
	assert.Equal(t, 2, records[0].Occurrences)
	assert.True(t, records[0].FirstSeen.Equal(first))
	assert.True(t, records[0].LastSeen.Equal(later))

	assert.Equal(t, "s2", records[1].SessionID)
	assert.Equal(t, 1, records[1].Occurrences)

	removed, err := s.ClearWarnings(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	records, err = s.ListWarnings(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestConcurrentWrites(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	seen := time.Date(2024, time.June, 1, 8, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.RecordWarnings(ctx, []types.IntegrityWarning{{SessionID: "shared", Reason: "missing or invalid endTime"}}, seen)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	records, err := s.ListWarnings(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 20, records[0].Occurrences)
}

func TestClosedStoreRejectsWrites(t *testing.T) {
	s := setupTestStore(t)
	require.NoError(t, s.Close())

	err := s.SaveCredentials(context.Background(), Credentials{APIURL: "http://x", Token: "t"})
	assert.ErrorIs(t, err, ErrClosed)
}
