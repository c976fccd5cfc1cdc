package xid

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgumentError(t *testing.T) {
	err := newArgumentError("dst", "must have at least 12 bytes (got 4)", io.ErrShortBuffer)

	assert.Equal(t, "xid: dst must have at least 12 bytes (got 4)", err.Error())
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.ErrorIs(t, err, io.ErrShortBuffer)
	assert.NotErrorIs(t, err, ErrInvalidID)

	plain := newArgumentError("bytes", "must not be nil", nil)
	assert.Equal(t, []error{ErrInvalidArgument}, plain.Unwrap())
}

func TestParseError(t *testing.T) {
	withOffset := newParseError([]byte("9m4e2mr0-i3e8a215n4g"), 8, "invalid character")
	assert.Equal(t, `xid: cannot parse "9m4e2mr0-i3e8a215n4g": invalid character at offset 8`, withOffset.Error())
	assert.ErrorIs(t, withOffset, ErrInvalidID)

	noOffset := newParseError([]byte("abc"), -1, "length must be 20 characters")
	assert.Equal(t, `xid: cannot parse "abc": length must be 20 characters`, noOffset.Error())

	long := newParseError([]byte(strings.Repeat("x", 200)), -1, "too long")
	assert.Len(t, long.Input, 64)
}

func TestConfigError(t *testing.T) {
	err := newConfigError("CounterSeed", "16777216", "out of range", "must be between 0 and 16777215")

	assert.Equal(t,
		"xid: invalid configuration: CounterSeed=16777216 (out of range) - must be between 0 and 16777215",
		err.Error())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestErrorHelpers(t *testing.T) {
	parseErr := fmt.Errorf("loading row: %w", newParseError([]byte("x"), -1, "length must be 20 characters"))
	argErr := fmt.Errorf("loading row: %w", newArgumentError("bytes", "must not be nil", nil))
	cfgErr := fmt.Errorf("startup: %w", newConfigError("MachineID", "x", "not a machine id", "must be 6 hexadecimal digits"))
	other := errors.New("other")

	assert.True(t, IsParseError(parseErr))
	assert.False(t, IsParseError(argErr))
	assert.True(t, IsArgumentError(argErr))
	assert.False(t, IsArgumentError(other))
	assert.True(t, IsConfigError(cfgErr))
	assert.False(t, IsConfigError(parseErr))

	pe, ok := GetParseError(parseErr)
	require.True(t, ok)
	assert.Equal(t, -1, pe.Offset)
	_, ok = GetParseError(other)
	assert.False(t, ok)

	ce, ok := GetConfigError(cfgErr)
	require.True(t, ok)
	assert.Equal(t, "MachineID", ce.Field)
	_, ok = GetConfigError(other)
	assert.False(t, ok)
}
