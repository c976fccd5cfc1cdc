// Package xid - encoding.go converts identifiers between the 12-byte raw
// form and the 20-character text form.
//
// # Text Form
//
// The 96 raw bits are read as a big-endian bit stream and cut into 5-bit
// groups. 96 is not a multiple of 5, so the stream is padded with four zero
// bits to make 20 groups (100 bits). Each group indexes the alphabet
//
//	0123456789abcdefghijklmnopqrstuv
//
// which is listed in ascending ASCII order. Ascending symbol order equals
// ascending 5-bit value, so comparing two text forms with a plain string
// comparison gives the same result as comparing the raw bytes.
//
// # Strict Decoding
//
// The decoder rejects any text whose four padding bits are not zero. Such a
// string cannot be produced by the encoder, and accepting it would give one
// id several spellings. Every accepted text form therefore re-encodes to
// itself.
//
// # Thread Safety
//
// All functions in this file are pure. The decode table is built once at
// package init time and is read-only afterwards.
package xid

const (
	// Encoding is the 32-symbol alphabet of the text form.
	Encoding = "0123456789abcdefghijklmnopqrstuv"

	// RawLen is the length of the binary form in bytes.
	RawLen = 12

	// EncodedLen is the length of the text form in characters.
	EncodedLen = 20

	// invalidSymbol marks bytes outside the alphabet in decodeMap.
	invalidSymbol = 0xFF

	// paddingMask selects the unused low bits of the last symbol.
	paddingMask = 0x0F
)

// decodeMap provides O(1) character-to-value lookups.
var decodeMap [256]byte

func init() {
	for i := range decodeMap {
		decodeMap[i] = invalidSymbol
	}
	for i := 0; i < len(Encoding); i++ {
		decodeMap[Encoding[i]] = byte(i)
	}
}

// encode writes the text form of id into dst.
//
// Bits are shifted into an accumulator one byte at a time and drained five
// at a time; the single bit left after the last byte is emitted with four
// zero bits of padding.
func encode(dst *[EncodedLen]byte, id *[RawLen]byte) {
	var acc uint64
	bits, j := 0, 0
	for _, b := range id {
		acc = acc<<8 | uint64(b)
		bits += 8
		for bits >= 5 {
			bits -= 5
			dst[j] = Encoding[(acc>>bits)&0x1F]
			j++
		}
	}
	// 96 = 19*5 + 1: exactly one bit is left.
	dst[j] = Encoding[(acc<<(5-bits))&0x1F]
}

// decode parses a text form into id. id is only written on success.
func decode(id *[RawLen]byte, src []byte) error {
	if len(src) != EncodedLen {
		return newParseError(src, -1, "length must be 20 characters")
	}

	var out [RawLen]byte
	var acc uint64
	bits, j := 0, 0
	for i := 0; i < EncodedLen; i++ {
		v := decodeMap[src[i]]
		if v == invalidSymbol {
			return newParseError(src, i, "invalid character")
		}
		acc = acc<<5 | uint64(v)
		bits += 5
		if bits >= 8 {
			bits -= 8
			out[j] = byte(acc >> bits)
			j++
		}
	}

	// 100 - 96 = 4 padding bits remain in the accumulator.
	if acc&paddingMask != 0 {
		return newParseError(src, EncodedLen-1, "non-zero padding bits")
	}

	*id = out
	return nil
}
