package xid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLayoutConstants(t *testing.T) {
	assert.Equal(t, RawLen, TimestampLen+MachineLen+PidLen+CounterLen)
	assert.Equal(t, RawLen, CounterOffset+CounterLen)
	assert.Equal(t, 4, MachineOffset)
	assert.Equal(t, 7, PidOffset)
	assert.Equal(t, 9, CounterOffset)
	assert.Equal(t, EncodedLen, (RawLen*8+4)/5)
}

func TestDecompose(t *testing.T) {
	id := FromParts(0x5106FC9A, [MachineLen]byte{0xbc, 0x82, 0x37}, 0x5581, 0x36D289)

	c := Decompose(id)
	assert.Equal(t, uint32(0x5106FC9A), c.Timestamp)
	assert.Equal(t, time.Unix(0x5106FC9A, 0).UTC(), c.Time)
	assert.Equal(t, [MachineLen]byte{0xbc, 0x82, 0x37}, c.Machine)
	assert.Equal(t, uint16(0x5581), c.Pid)
	assert.Equal(t, uint32(0x36D289), c.Counter)

	// reassembling the components yields the same id
	assert.Equal(t, id, FromParts(c.Timestamp, c.Machine, c.Pid, c.Counter))
}

func TestLayoutCapacity(t *testing.T) {
	c := LayoutCapacity()

	assert.Equal(t, int64(16_777_216), c.IDsPerSecond)
	assert.Equal(t, int64(16_777_216), c.Machines)
	assert.Equal(t, int64(65_536), c.Processes)
	assert.Equal(t, time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), c.First)
	assert.Equal(t, time.Date(2106, 2, 7, 6, 28, 15, 0, time.UTC), c.Last)
	assert.Equal(t,
		"IDsPerSecond: 16777216, Machines: 16777216, Processes: 65536, Range: 1970-01-01T00:00:00Z..2106-02-07T06:28:15Z",
		c.String())
}
