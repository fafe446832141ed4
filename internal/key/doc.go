// Package key implements the typed key values stored in index pages.
//
// A Key is a tagged union over the scalar, string, binary, GUID, decimal and
// object-reference types an index can be declared over. Keys of the same
// Type are totally ordered by Compare. Every Key also carries an inclusion
// flag that only matters when the key is used as a range endpoint:
//
//	from := key.Int32(3)             // inclusive by default
//	till := key.Int32(7).Exclusive() // open upper bound
package key
