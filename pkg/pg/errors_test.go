package pg_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/kvsession/pkg/pg"
)

func TestErrorHelpers(t *testing.T) {
	wrap := func(code string) error {
		return fmt.Errorf("exec: %w", &pgconn.PgError{Code: code})
	}

	assert.True(t, pg.IsNotFoundError(fmt.Errorf("scan: %w", pgx.ErrNoRows)))
	assert.False(t, pg.IsNotFoundError(nil))

	assert.True(t, pg.IsDuplicateKeyError(wrap("23505")))
	assert.False(t, pg.IsDuplicateKeyError(wrap("23503")))
	assert.True(t, pg.IsForeignKeyViolationError(wrap("23503")))

	assert.True(t, pg.IsSerializationError(wrap("40001")))
	assert.True(t, pg.IsSerializationError(wrap("40P01")))
	assert.False(t, pg.IsSerializationError(errors.New("boom")))
	assert.False(t, pg.IsSerializationError(nil))
}

func TestConnect_InvalidConfig(t *testing.T) {
	ctx := context.Background()

	_, err := pg.Connect(ctx, pg.Config{})
	assert.ErrorIs(t, err, pg.ErrEmptyConnectionString)

	_, err = pg.Connect(ctx, pg.Config{ConnectionString: "postgres://%zz"})
	assert.ErrorIs(t, err, pg.ErrFailedToParseDBConfig)
}

func TestMigrate_MissingDir(t *testing.T) {
	err := pg.Migrate(context.Background(), nil, pg.Config{MigrationsPath: "/does/not/exist"}, slog.New(slog.DiscardHandler))
	assert.ErrorIs(t, err, pg.ErrMigrationsDirNotFound)
}
