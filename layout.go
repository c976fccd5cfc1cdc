// Package xid - layout.go describes the fixed field layout of an identifier.
//
// The layout is not configurable: four big-endian fields are packed back to
// back, and byte-wise order of the whole value equals (timestamp, machine,
// process, counter) order only because of that packing.

package xid

import (
	"fmt"
	"time"
)

// Field offsets and lengths inside the 12 raw bytes.
//
//	┌──────────────────┬─────────────┬──────────┬─────────────┐
//	│ 4 bytes: seconds │ 3: machine  │ 2: pid   │ 3: counter  │
//	│   offset 0-3     │ offset 4-6  │ 7-8      │ 9-11        │
//	└──────────────────┴─────────────┴──────────┴─────────────┘
const (
	TimestampOffset = 0
	TimestampLen    = 4
	MachineOffset   = TimestampOffset + TimestampLen // 4
	MachineLen      = 3
	PidOffset       = MachineOffset + MachineLen // 7
	PidLen          = 2
	CounterOffset   = PidOffset + PidLen // 9
	CounterLen      = 3

	// MaxCounter is the largest counter value (2^24 - 1). The counter
	// wraps to zero after it.
	MaxCounter = 1<<24 - 1

	// MaxTimestamp is the last representable second (2106-02-07T06:28:15Z).
	MaxTimestamp = 1<<32 - 1
)

// Components is the decomposed form of an identifier.
//
// The struct is a plain value; changing it does not affect the ID it came
// from.
type Components struct {
	// Timestamp is the raw unsigned seconds since the Unix epoch.
	Timestamp uint32 `json:"timestamp"`

	// Time is Timestamp as a UTC time.
	Time time.Time `json:"time"`

	// Machine is the 3-byte machine id.
	Machine [MachineLen]byte `json:"machine"`

	// Pid is the 16-bit process id.
	Pid uint16 `json:"pid"`

	// Counter is the 24-bit counter.
	Counter uint32 `json:"counter"`
}

// String renders the components for humans, e.g. in CLI output.
func (c Components) String() string {
	return fmt.Sprintf("time=%s machine=%x pid=%d counter=%d",
		c.Time.Format(time.RFC3339), c.Machine[:], c.Pid, c.Counter)
}

// Decompose splits id into its four fields.
//
// This is a pure function, no generator is needed.
func Decompose(id ID) Components {
	return Components{
		Timestamp: id.Timestamp(),
		Time:      id.Time(),
		Machine:   id.Machine(),
		Pid:       id.Pid(),
		Counter:   id.Counter(),
	}
}

// Capacity holds the theoretical limits of the fixed layout.
//
// This is useful for capacity planning and for documenting the limits in
// tooling output.
type Capacity struct {
	// IDsPerSecond is how many ids one process can mint per second before
	// the counter wraps.
	IDsPerSecond int64

	// Machines is the size of the machine id space.
	Machines int64

	// Processes is the size of the process id space.
	Processes int64

	// First and Last bound the representable timestamps.
	First time.Time
	Last  time.Time
}

// LayoutCapacity returns the capacity of the identifier layout.
func LayoutCapacity() Capacity {
	return Capacity{
		IDsPerSecond: MaxCounter + 1,
		Machines:     1 << (MachineLen * 8),
		Processes:    1 << (PidLen * 8),
		First:        time.Unix(0, 0).UTC(),
		Last:         time.Unix(MaxTimestamp, 0).UTC(),
	}
}

// String returns a human-readable description of the capacity.
func (c Capacity) String() string {
	return fmt.Sprintf("IDsPerSecond: %d, Machines: %d, Processes: %d, Range: %s..%s",
		c.IDsPerSecond, c.Machines, c.Processes,
		c.First.Format(time.RFC3339), c.Last.Format(time.RFC3339))
}
