// Package xid - id.go provides the ID type with encoding and utility methods.
//
// The ID type wraps the 12 raw bytes of an identifier and provides
// construction, field extraction, ordering, text/binary/JSON marshaling and
// database integration.

package xid

import (
	"bytes"
	"database/sql/driver"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"slices"
	"time"
)

// ID is a 12-byte, time-sortable, globally unique identifier.
//
// # Value Semantics
//
// ID is an array, not a slice: it is copied on assignment, it can be used as
// a map key, and == compares all 12 bytes. No method mutates the receiver
// except the Unmarshal/Scan family, which require a pointer.
//
// # Layout
//
// Four big-endian fields, see layout.go:
//   - Timestamp: bytes 0-3 (unsigned seconds since the Unix epoch)
//   - Machine: bytes 4-6
//   - Process: bytes 7-8
//   - Counter: bytes 9-11
//
// # Interface Implementations
//
//   - fmt.Stringer: 20-character text form
//   - encoding.TextMarshaler/Unmarshaler: text form
//   - json.Marshaler/Unmarshaler: text form as JSON string, zero id as null
//   - encoding.BinaryMarshaler/Unmarshaler: 12 raw bytes
//   - sql.Scanner/driver.Valuer: text form (sorts correctly as TEXT)
//
// Example:
//
//	id := xid.New()
//	fmt.Println(id)            // "9m4e2mr0ui3e8a215n4g"
//	fmt.Println(id.Time())     // second the id was minted
//	fmt.Println(id.Counter())  // 24-bit counter
type ID [RawLen]byte

// Zero is the zero value of ID. It decodes from "00000000000000000000".
var Zero ID

// ============================================================================
// Construction
// ============================================================================

// FromBytes copies a 12-byte slice into an ID.
//
// Returns an *ArgumentError (errors.Is ErrInvalidArgument) if b is nil or
// its length is not exactly 12.
//
// Example:
//
//	id, err := xid.FromBytes(row.RawID)
func FromBytes(b []byte) (ID, error) {
	var id ID
	if b == nil {
		return id, newArgumentError("bytes", "must not be nil", nil)
	}
	if len(b) != RawLen {
		return id, newArgumentError("bytes", fmt.Sprintf("must have length of %d (got %d)", RawLen, len(b)), nil)
	}
	copy(id[:], b)
	return id, nil
}

// FromString decodes the 20-character text form.
//
// Returns a *ParseError (errors.Is ErrInvalidID) on bad length, a character
// outside the alphabet, or non-zero padding bits.
//
// Example:
//
//	id, err := xid.FromString("9m4e2mr0ui3e8a215n4g")
func FromString(s string) (ID, error) {
	var id ID
	err := decode((*[RawLen]byte)(&id), []byte(s))
	return id, err
}

// MustParse is like FromString but panics on error.
//
// Only use this with constants, e.g. in tests and fixtures.
func MustParse(s string) ID {
	id, err := FromString(s)
	if err != nil {
		panic(err)
	}
	return id
}

// ParseHex decodes the 24-digit hexadecimal rendering of the raw bytes.
func ParseHex(s string) (ID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Zero, newParseError([]byte(s), -1, "invalid hexadecimal")
	}
	if len(b) != RawLen {
		return Zero, newParseError([]byte(s), -1, "hexadecimal must encode 12 bytes")
	}
	return ID(b), nil
}

// FromTimestamp builds a deterministic id from a raw timestamp and a seed.
//
// The seed is written big-endian into bytes 4-11: its top three bytes become
// the machine id, the next two the process id and the low three the
// counter. A seed of 0 yields SmallestWithTime for that second; seeds compare
// in numeric order within one second. Useful for reproducible fixtures.
//
// Example:
//
//	a := xid.FromTimestamp(0x7FFFFFFF, 0)
//	b := xid.FromTimestamp(0x7FFFFFFF, 1) // a.Compare(b) == -1
func FromTimestamp(ts uint32, seed uint64) ID {
	var id ID
	binary.BigEndian.PutUint32(id[TimestampOffset:], ts)
	binary.BigEndian.PutUint64(id[MachineOffset:], seed)
	return id
}

// FromTime is FromTimestamp for a time.Time. Sub-second precision is
// truncated, never rounded.
func FromTime(t time.Time, seed uint64) ID {
	return FromTimestamp(uint32(t.Unix()), seed)
}

// FromParts assembles an id from explicit field values.
//
// Counter values above MaxCounter are truncated to 24 bits.
func FromParts(ts uint32, machine [MachineLen]byte, pid uint16, counter uint32) ID {
	var id ID
	binary.BigEndian.PutUint32(id[TimestampOffset:], ts)
	copy(id[MachineOffset:], machine[:])
	binary.BigEndian.PutUint16(id[PidOffset:], pid)
	putCounter(id[CounterOffset:], counter)
	return id
}

// SmallestWithTime returns the smallest id for the second containing t.
//
// The timestamp is t truncated to whole seconds and every other field is
// zero, so the result is an inclusive lower bound for "all ids minted at or
// after t":
//
//	lo := xid.SmallestWithTime(since)
//	rows, err := db.Query("SELECT ... WHERE id >= ?", lo)
func SmallestWithTime(t time.Time) ID {
	return FromTime(t, 0)
}

func putCounter(b []byte, c uint32) {
	_ = b[2] // bounds check hint
	b[0] = byte(c >> 16)
	b[1] = byte(c >> 8)
	b[2] = byte(c)
}

// ============================================================================
// Field Extraction
// ============================================================================

// Timestamp returns the raw timestamp field as unsigned seconds.
//
// The field is unsigned, so values above 0x7FFFFFFF are dates after
// 2038-01-19 rather than before 1970.
func (id ID) Timestamp() uint32 {
	return binary.BigEndian.Uint32(id[TimestampOffset:])
}

// Time returns the timestamp field as a UTC time at one-second precision.
//
// Example:
//
//	id := xid.New()
//	fmt.Printf("minted at %v, %v ago\n", id.Time(), id.Age())
func (id ID) Time() time.Time {
	return time.Unix(int64(id.Timestamp()), 0).UTC()
}

// Age returns the duration since the id's timestamp.
func (id ID) Age() time.Duration {
	return time.Since(id.Time())
}

// Machine returns a copy of the 3-byte machine id.
func (id ID) Machine() [MachineLen]byte {
	var m [MachineLen]byte
	copy(m[:], id[MachineOffset:PidOffset])
	return m
}

// Pid returns the 16-bit process id.
func (id ID) Pid() uint16 {
	return binary.BigEndian.Uint16(id[PidOffset:])
}

// Counter returns the 24-bit counter.
func (id ID) Counter() uint32 {
	b := id[CounterOffset:]
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

// Components returns all fields at once. See Decompose.
func (id ID) Components() Components {
	return Decompose(id)
}

// IsZero reports whether every byte is zero.
func (id ID) IsZero() bool {
	return id == Zero
}

// ============================================================================
// Encoding Methods
// ============================================================================

// String returns the 20-character text form.
//
// Computed on every call; the ID itself holds no cache, so it stays a plain
// comparable array.
//
// Performance: one 20-byte allocation
func (id ID) String() string {
	var text [EncodedLen]byte
	encode(&text, (*[RawLen]byte)(&id))
	return string(text[:])
}

// Encode writes the text form into dst, which must hold at least 20 bytes,
// and returns dst[:20].
func (id ID) Encode(dst []byte) []byte {
	encode((*[EncodedLen]byte)(dst[:EncodedLen]), (*[RawLen]byte)(&id))
	return dst[:EncodedLen]
}

// AppendText appends the text form to dst (encoding.TextAppender).
func (id ID) AppendText(dst []byte) ([]byte, error) {
	var text [EncodedLen]byte
	encode(&text, (*[RawLen]byte)(&id))
	return append(dst, text[:]...), nil
}

// Hex returns the 24-digit lowercase hexadecimal rendering of the raw bytes.
func (id ID) Hex() string {
	return hex.EncodeToString(id[:])
}

// Base64URL returns the raw bytes in unpadded URL-safe base64 (16 chars).
func (id ID) Base64URL() string {
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// Format returns the id rendered in the named format.
//
// Supported formats:
//   - "xid", "text", "": 20-character text form (default)
//   - "hex", "x": hexadecimal raw bytes
//   - "base64", "b64": unpadded URL-safe base64 raw bytes
//
// Unknown formats fall back to the text form.
func (id ID) Format(format string) string {
	switch format {
	case "hex", "x":
		return id.Hex()
	case "base64", "b64":
		return id.Base64URL()
	default:
		return id.String()
	}
}

// ============================================================================
// Binary Encoding
// ============================================================================

// Bytes returns a fresh copy of the 12 raw bytes.
//
// Callers may modify the returned slice; the id is unaffected.
func (id ID) Bytes() []byte {
	b := make([]byte, RawLen)
	copy(b, id[:])
	return b
}

// PutBytes writes exactly 12 bytes at the start of dst.
//
// Returns an *ArgumentError wrapping io.ErrShortBuffer and leaves dst
// untouched if fewer than 12 bytes are available.
//
// Example:
//
//	buf := make([]byte, 64)
//	n, err := id.PutBytes(buf[off:])
//	off += n
func (id ID) PutBytes(dst []byte) (int, error) {
	if len(dst) < RawLen {
		return 0, newArgumentError("dst", fmt.Sprintf("must have at least %d bytes (got %d)", RawLen, len(dst)), io.ErrShortBuffer)
	}
	return copy(dst, id[:]), nil
}

// AppendBytes appends the 12 raw bytes to dst.
func (id ID) AppendBytes(dst []byte) []byte {
	return append(dst, id[:]...)
}

// WriteTo writes the 12 raw bytes to w (io.WriterTo).
func (id ID) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(id[:])
	return int64(n), err
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (id ID) MarshalBinary() ([]byte, error) {
	return id.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
//
// Returns an *ArgumentError if data is not exactly 12 bytes.
func (id *ID) UnmarshalBinary(data []byte) error {
	v, err := FromBytes(data)
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// ============================================================================
// Text and JSON Marshaling
// ============================================================================

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	text := make([]byte, EncodedLen)
	encode((*[EncodedLen]byte)(text), (*[RawLen]byte)(&id))
	return text, nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	return decode((*[RawLen]byte)(id), text)
}

var jsonNull = []byte("null")

// MarshalJSON implements json.Marshaler.
//
// The zero id marshals as null so optional id fields round trip through
// JSON without inventing a value.
//
// Example:
//
//	type Event struct {
//	    ID     xid.ID `json:"id"`
//	    Parent xid.ID `json:"parent"`
//	}
//	// {"id":"9m4e2mr0ui3e8a215n4g","parent":null}
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return jsonNull, nil
	}
	b := make([]byte, 0, EncodedLen+2)
	b = append(b, '"')
	b, _ = id.AppendText(b)
	return append(b, '"'), nil
}

// UnmarshalJSON implements json.Unmarshaler.
//
// Accepts a JSON string holding the text form, or null for the zero id.
func (id *ID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, jsonNull) {
		*id = Zero
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return newParseError(data, -1, "expected JSON string")
	}
	return decode((*[RawLen]byte)(id), data[1:len(data)-1])
}

// ============================================================================
// SQL Database Integration
// ============================================================================

// Scan implements sql.Scanner.
//
// Supported column values:
//   - string / []byte of 20 characters: text form (TEXT, VARCHAR)
//   - []byte of 12 bytes: raw form (BLOB, BYTEA, BINARY(12))
//   - nil: zero id
//
// Example:
//
//	var id xid.ID
//	err := db.QueryRow("SELECT id FROM events WHERE name = ?", name).Scan(&id)
func (id *ID) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*id = Zero
		return nil
	case string:
		return id.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == RawLen {
			copy(id[:], v)
			return nil
		}
		return id.UnmarshalText(v)
	default:
		return newArgumentError("value", fmt.Sprintf("of type %T cannot be scanned into xid.ID", value), nil)
	}
}

// Value implements driver.Valuer.
//
// Ids are stored in their text form: it is printable, and because the
// alphabet is ascending, ORDER BY on the column is creation order. The zero
// id is stored as NULL.
//
// Recommended schema:
//
//	CREATE TABLE events (id CHAR(20) PRIMARY KEY, ...);
func (id ID) Value() (driver.Value, error) {
	if id.IsZero() {
		return nil, nil
	}
	return id.String(), nil
}

// ============================================================================
// Ordering
// ============================================================================

// Compare returns the ordering of two ids by unsigned byte-wise comparison.
//
// Returns:
//   - -1 if id sorts before other
//   - 0 if the ids are equal
//   - 1 if id sorts after other
//
// The result orders by timestamp, then machine, then process, then counter.
func (id ID) Compare(other ID) int {
	return bytes.Compare(id[:], other[:])
}

// Before reports whether id sorts before other.
func (id ID) Before(other ID) bool {
	return id.Compare(other) < 0
}

// After reports whether id sorts after other.
func (id ID) After(other ID) bool {
	return id.Compare(other) > 0
}

// Equal reports whether both ids hold the same 12 bytes.
func (id ID) Equal(other ID) bool {
	return id == other
}

// Sort sorts ids in ascending order in place.
func Sort(ids []ID) {
	slices.SortFunc(ids, ID.Compare)
}
