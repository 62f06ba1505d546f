package util

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapErrorf(t *testing.T) {
	orig := errors.New("disk on fire")
	err := WrapErrorf(orig, ErrInternalServerError, "reading block %d", 3)

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, ErrInternalServerError, e.Code())
	assert.True(t, errors.Is(err, orig))
	assert.Equal(t, "reading block 3: disk on fire", err.Error())
}

func TestErrorCode(t *testing.T) {
	inner := WrapErrorf(errors.New("no route"), ErrNotFound, "shortest path")
	assert.Equal(t, ErrNotFound, ErrorCode(fmt.Errorf("query: %w", inner)))
	assert.Equal(t, ErrInternalServerError, ErrorCode(errors.New("plain")))
}

func TestAbs(t *testing.T) {
	assert.Equal(t, int64(4), Abs(int64(-4)))
	assert.Equal(t, 2.5, Abs(2.5))
}

func TestStringToFloat64(t *testing.T) {
	v, err := StringToFloat64("-7.80")
	require.NoError(t, err)
	assert.Equal(t, -7.8, v)

	_, err = StringToFloat64("north")
	assert.Error(t, err)
}
