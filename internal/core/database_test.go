// AngelaMos | 2026
// database_test.go

package core

import (
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, EscapeLike("100%"))
	assert.Equal(t, `a\_b`, EscapeLike("a_b"))
	assert.Equal(t, `c:\\dir`, EscapeLike(`c:\dir`))
	assert.Equal(t, "matrix", EscapeLike("matrix"))
}

func TestDuplicateConstraint(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "uq_movies_title",
	})

	name, ok := DuplicateConstraint(err)
	assert.True(t, ok)
	assert.Equal(t, "uq_movies_title", name)

	_, ok = DuplicateConstraint(&pgconn.PgError{Code: "23503"})
	assert.False(t, ok)
	_, ok = DuplicateConstraint(assert.AnError)
	assert.False(t, ok)
}

func TestJitteredDuration(t *testing.T) {
	base := time.Hour
	for range 20 {
		d := jitteredDuration(base)
		assert.GreaterOrEqual(t, d, base)
		assert.LessOrEqual(t, d, base+base/7+1)
	}
	assert.Equal(t, time.Duration(0), jitteredDuration(0))
}

func TestRedisKey(t *testing.T) {
	assert.Equal(t, "cache:movies:3", RedisKey("cache", "movies", "", "3"))
}
