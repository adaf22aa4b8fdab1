package migrate

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

var testMigrations = fstest.MapFS{
	"m/001_create_a.up.sql":   {Data: []byte("CREATE TABLE a (id INTEGER PRIMARY KEY);")},
	"m/001_create_a.down.sql": {Data: []byte("DROP TABLE a;")},
	"m/002_create_b.up.sql":   {Data: []byte("CREATE TABLE b (id INTEGER PRIMARY KEY); CREATE INDEX b_idx ON b (id);")},
	"m/002_create_b.down.sql": {Data: []byte("DROP INDEX b_idx; DROP TABLE b;")},
	"m/005_create_c.up.sql":   {Data: []byte("CREATE TABLE c (id INTEGER PRIMARY KEY);")},
	"m/005_create_c.down.sql": {Data: []byte("DROP TABLE c;")},
	"m/README.md":             {Data: []byte("ignored")},
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n))
	return n == 1
}

func TestFSProviderMigrations(t *testing.T) {
	migrations, err := NewFSProvider(testMigrations, "m", "").Migrations()
	require.NoError(t, err)
	require.Len(t, migrations, 3)

	byVersion := map[int]Migration{}
	for _, m := range migrations {
		byVersion[m.Version] = m
	}
	assert.Equal(t, "create a", byVersion[1].Name)
	assert.Contains(t, byVersion[1].Up, "CREATE TABLE a")
	assert.Contains(t, byVersion[1].Down, "DROP TABLE a")
	assert.Contains(t, byVersion, 5)
}

func TestFSProviderMissingDir(t *testing.T) {
	_, err := NewFSProvider(testMigrations, "absent", "").Migrations()
	assert.Error(t, err)
}

func TestFSProviderConflictingNames(t *testing.T) {
	fsys := fstest.MapFS{
		"m/001_one.up.sql":   {Data: []byte("SELECT 1;")},
		"m/001_two.down.sql": {Data: []byte("SELECT 1;")},
	}
	_, err := NewFSProvider(fsys, "m", "").Migrations()
	assert.ErrorContains(t, err, "named both")
}

func TestPlan(t *testing.T) {
	migrations := []Migration{
		{Version: 1, Up: "u1", Down: "d1"},
		{Version: 2, Up: "u2", Down: "d2"},
		{Version: 5, Up: "u5", Down: "d5"},
	}

	type want struct {
		version int
		down    bool
		to      int
	}
	tests := []struct {
		name    string
		current int
		target  int
		want    []want
		wantErr bool
	}{
		{name: "fresh to latest", current: 0, target: Latest, want: []want{{1, false, 1}, {2, false, 2}, {5, false, 5}}},
		{name: "partial up", current: 1, target: 2, want: []want{{2, false, 2}}},
		{name: "already current", current: 5, target: Latest},
		{name: "down skips version gaps", current: 5, target: 1, want: []want{{5, true, 2}, {2, true, 1}}},
		{name: "down to zero", current: 2, target: 0, want: []want{{2, true, 1}, {1, true, 0}}},
		{name: "unknown target", current: 0, target: 3, wantErr: true},
		{name: "target beyond latest", current: 0, target: 9, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps, err := plan(migrations, tt.current, tt.target)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			got := make([]want, 0, len(steps))
			for _, s := range steps {
				got = append(got, want{s.migration.Version, s.down, s.to})
			}
			assert.Equal(t, len(tt.want), len(got))
			if len(tt.want) > 0 {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestPlanMissingScript(t *testing.T) {
	migrations := []Migration{{Version: 1, Name: "one way", Up: "u1"}}
	_, err := plan(migrations, 1, 0)
	assert.ErrorContains(t, err, "no down script")
}

func TestMigrateUpAndDown(t *testing.T) {
	db := openDB(t)
	var logged []string
	m := NewMigrator(db, NewFSProvider(testMigrations, "m", "test_migrations"), WithLogf(func(template string, args ...interface{}) {
		logged = append(logged, template)
	}))

	st, err := m.Status()
	require.NoError(t, err)
	assert.Equal(t, Status{Current: 0, Latest: 5, Pending: []int{1, 2, 5}}, st)
	assert.False(t, st.UpToDate())

	require.NoError(t, m.MigrateUp())
	st, err = m.Status()
	require.NoError(t, err)
	assert.True(t, st.UpToDate())
	assert.Equal(t, 5, st.Current)
	assert.True(t, tableExists(t, db, "c"))
	assert.Len(t, logged, 3)

	// Already current: nothing to do.
	require.NoError(t, m.MigrateUp())
	assert.Len(t, logged, 3)

	require.NoError(t, m.MigrateTo(1))
	st, err = m.Status()
	require.NoError(t, err)
	assert.Equal(t, 1, st.Current)
	assert.Equal(t, []int{2, 5}, st.Pending)
	assert.True(t, tableExists(t, db, "a"))
	assert.False(t, tableExists(t, db, "b"))
	assert.False(t, tableExists(t, db, "c"))

	require.NoError(t, m.MigrateTo(0))
	st, err = m.Status()
	require.NoError(t, err)
	assert.Equal(t, 0, st.Current)
	assert.False(t, tableExists(t, db, "a"))
}

func TestMigrateFailureRollsBack(t *testing.T) {
	fsys := fstest.MapFS{
		"m/001_ok.up.sql":     {Data: []byte("CREATE TABLE ok (id INTEGER);")},
		"m/002_broken.up.sql": {Data: []byte("CREATE TABLE broken (id INTEGER); THIS IS NOT SQL;")},
	}
	db := openDB(t)
	m := NewMigrator(db, NewFSProvider(fsys, "m", ""))

	assert.ErrorContains(t, m.MigrateUp(), "migration 2 (broken) up failed")
	st, err := m.Status()
	require.NoError(t, err)
	assert.Equal(t, 1, st.Current)
	assert.True(t, tableExists(t, db, "ok"))
	assert.False(t, tableExists(t, db, "broken"))
}

func TestMigrateToUnknownVersion(t *testing.T) {
	m := NewMigrator(openDB(t), NewFSProvider(testMigrations, "m", ""))
	assert.ErrorContains(t, m.MigrateTo(4), "no migration with version 4")
}
