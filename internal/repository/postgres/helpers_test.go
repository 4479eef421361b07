package postgres

import (
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/utafrali/marketplace/pkg/database"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	return database.NewMockPool(t)
}

// anyArgs matches n arguments of any value. pgxmock rejects a call whose
// argument count differs from the expectation's.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
