package storage

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap("noop", nil))

	err := Wrap("insert help request", sql.ErrConnDone)
	assert.True(t, errors.Is(err, ErrPersistence))
	assert.True(t, errors.Is(err, sql.ErrConnDone))
	assert.Contains(t, err.Error(), "insert help request")
}
