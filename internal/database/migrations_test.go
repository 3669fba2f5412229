package database

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open(DriverSQLite, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrator_LoadMigrations(t *testing.T) {
	migrations, err := NewMigrator(openTestDB(t)).LoadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "create_kv_entries", migrations[0].Name)
	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].Version, migrations[i].Version)
	}
}

func TestMigrator_RunMigrationsIsRepeatable(t *testing.T) {
	db := openTestDB(t)
	migrator := NewMigrator(db)

	require.NoError(t, migrator.RunMigrations())
	require.NoError(t, migrator.RunMigrations())

	statuses, err := migrator.Status()
	require.NoError(t, err)
	for _, s := range statuses {
		assert.True(t, s.Applied, "migration %d should be applied", s.Version)
	}

	_, err = db.Exec(`INSERT INTO kv_entries (entry_key, entry_value) VALUES ('k', 'v')`)
	assert.NoError(t, err)
}

func TestConfig_DSN(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		want    string
		wantErr bool
	}{
		{
			name:   "postgres url",
			config: Config{Driver: DriverPostgres, URL: "postgres://u:p@localhost/db"},
			want:   "postgres://u:p@localhost/db",
		},
		{
			name:   "postgres parts",
			config: Config{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "hall", SSLMode: "disable"},
			want:   "host=db port=5432 user=u password=p dbname=hall sslmode=disable",
		},
		{
			name:   "sqlite",
			config: Config{Driver: DriverSQLite, SQLitePath: "hall.db"},
			want:   "hall.db",
		},
		{
			name:    "sqlite without path",
			config:  Config{Driver: DriverSQLite},
			wantErr: true,
		},
		{
			name:    "unknown driver",
			config:  Config{Driver: "mysql"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.config.DSN()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
