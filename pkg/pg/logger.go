package pg

import "context"

// migrationLogger routes goose output to the application logger instead of
// stdout. *slog.Logger satisfies it.
type migrationLogger interface {
	InfoContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}
