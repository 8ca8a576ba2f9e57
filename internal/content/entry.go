package content

import (
	"hash/adler32"
	"time"
	"unicode/utf16"

	"github.com/buildpal-oss/buildpal/internal/fingerprint"
)

// Entry owns one immutable byte buffer of a file, spec §3's Content
// Entry. Once published it is never mutated — a changed file produces a
// brand new Entry, never an in-place edit, so every reader holding a
// reference sees a consistent snapshot forever.
type Entry struct {
	Identity fingerprint.FileID
	Bytes    []byte
	Checksum uint32
	ModTime  time.Time
}

// Bytes' checksum uses the exact Adler-32 algorithm spec §4.2 pins
// (BASE=65521, NMAX=5552, chunked-by-16 with periodic modulo
// reduction) so that identical byte sequences produce identical
// checksums across implementations. That's precisely the algorithm
// Go's standard hash/adler32 package implements, so there is no reason
// to hand-roll it the way the original C++ tooling did before such a
// library existed — see DESIGN.md.
func checksum(data []byte) uint32 {
	return adler32.Checksum(data)
}

// newEntry builds a Content Entry for data read from a file with the
// given identity and modification time, normalizing UTF-16 input to
// UTF-8 first per spec §4.2's encoding policy.
func newEntry(id fingerprint.FileID, data []byte, mtime time.Time) *Entry {
	normalized := normalizeEncoding(data)
	return &Entry{
		Identity: id,
		Bytes:    normalized,
		Checksum: checksum(normalized),
		ModTime:  mtime,
	}
}

// normalizeEncoding converts UTF-16 LE/BE input (detected via BOM) to
// UTF-8, leaving anything else (including UTF-8 with or without its own
// BOM) untouched. This mirrors the original's convertEncodingIfNeeded: a
// narrow, hand-rolled transform, not a general encoding library call —
// see DESIGN.md for why golang.org/x/text/encoding/unicode isn't
// grounded here.
func normalizeEncoding(data []byte) []byte {
	switch {
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xFE:
		return utf16ToUTF8(data[2:], false)
	case len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF:
		return utf16ToUTF8(data[2:], true)
	default:
		return data
	}
}

func utf16ToUTF8(data []byte, bigEndian bool) []byte {
	n := len(data) / 2
	units := make([]uint16, n)
	for i := 0; i < n; i++ {
		if bigEndian {
			units[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
		} else {
			units[i] = uint16(data[2*i+1])<<8 | uint16(data[2*i])
		}
	}
	return []byte(string(utf16.Decode(units)))
}
