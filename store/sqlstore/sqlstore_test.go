package sqlstore_test

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chirp/database"
	"chirp/database/migrations"
	"chirp/models"
	"chirp/store"
	"chirp/store/sqlstore"
	"chirp/store/storetest"
	"chirp/testutil"
	"chirp/toggle"
)

func newStore(t *testing.T, db *sql.DB, dialect string) *sqlstore.Store {
	t.Helper()
	gdb, err := database.MigrateAndOpenGorm(db, dialect)
	require.NoError(t, err)
	s := sqlstore.New(gdb, testutil.FixedClock(), testutil.NewStubIDGenerator())
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func newSQLiteStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	return newStore(t, db, migrations.SQLite)
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, storetest.Harness{
		New: func(t *testing.T) store.Store {
			return newSQLiteStore(t)
		},
		MissingID: "id-9999",
	})
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("CHIRP_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CHIRP_TEST_POSTGRES_DSN not set")
	}

	storetest.Run(t, storetest.Harness{
		New: func(t *testing.T) store.Store {
			db, err := database.OpenPostgres(context.Background(), dsn)
			require.NoError(t, err)
			_, err = db.Exec(`DROP TABLE IF EXISTS comments, follows, reposts, likes, posts, users, schema_migrations`)
			require.NoError(t, err)
			return newStore(t, db, migrations.Postgres)
		},
		MissingID: "id-9999",
	})
}

func TestSQLiteStore_FollowIsOneRow(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	alice := &models.User{Handle: "alice", Email: "a@example.com"}
	bob := &models.User{Handle: "bob", Email: "b@example.com"}
	require.NoError(t, s.CreateUser(ctx, alice))
	require.NoError(t, s.CreateUser(ctx, bob))

	require.NoError(t, s.AddMember(ctx, toggle.Follow, bob.ID, alice.ID))
	require.NoError(t, s.AddMember(ctx, toggle.Follow, bob.ID, alice.ID))

	following, err := s.FollowCounts(ctx, alice.ID)
	require.NoError(t, err)
	followers, err := s.FollowCounts(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, following.Following)
	assert.Equal(t, 1, followers.Followers)

	fixed, err := s.ReconcileFollows(ctx)
	require.NoError(t, err)
	assert.Zero(t, fixed)
}

func TestSQLiteStore_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	u := &models.User{Handle: "alice", Email: "a@example.com", Bio: "old"}
	require.NoError(t, s.CreateUser(ctx, u))

	name := "Alice A."
	got, err := s.UpdateProfile(ctx, u.ID, models.ProfileUpdate{FullName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", got.FullName)
	assert.Equal(t, "old", got.Bio)

	got, err = s.UpdateProfile(ctx, u.ID, models.ProfileUpdate{})
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", got.FullName)
}
