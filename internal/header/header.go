// Package header defines the Header Descriptor, the unit both the Header
// Tracker and the Result Cache pass around to name a resolved include.
//
// Split out as its own package (rather than living in internal/scanner
// or internal/resultcache) because both of those packages need it and
// neither should import the other — grounded on the same shape as
// original_source/Extensions/HeaderScanner/headerScanner_.hpp's Header
// struct.
package header

import (
	"github.com/buildpal-oss/buildpal/internal/content"
	"github.com/buildpal-oss/buildpal/internal/intern"
)

// Location classifies how a header was found, spec §3's `location`
// attribute.
type Location int

const (
	LocationRelative Location = iota
	LocationRegular
	LocationSystem
)

func (l Location) String() string {
	switch l {
	case LocationRelative:
		return "relative"
	case LocationSystem:
		return "system"
	default:
		return "regular"
	}
}

// Descriptor names one resolved header file. Two Descriptors are equal
// iff (Dir, Name) are identity-equal — handles from the same interner
// namespace compare by pointer, so Equal is the only correct comparison;
// never compare Descriptors with ==.
type Descriptor struct {
	Dir      intern.Dir
	Name     intern.HeaderName
	Content  *content.Entry
	Checksum uint32
	Location Location
}

// Equal reports whether d and other name the same (dir, name) pair.
func (d Descriptor) Equal(other Descriptor) bool {
	return d.Dir.Equal(other.Dir) && d.Name.Equal(other.Name)
}

// UsesBuffer reports whether d's content came from entry — used to find
// every Header Descriptor invalidated when the Content Cache replaces
// entry.
func (d Descriptor) UsesBuffer(entry *content.Entry) bool {
	return d.Content == entry
}
