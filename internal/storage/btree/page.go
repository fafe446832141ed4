// Package btree provides the B+ Tree engine behind obaidx indexes.
package btree

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/KilimcininKorOglu/obaidx/internal/object"
	"github.com/KilimcininKorOglu/obaidx/internal/storage"
)

// Page image layout:
//
//	byte 0:      flags (pageFlagLeaf)
//	bytes 1-4:   key count n (uint32)
//	bytes 5-7:   reserved
//	keys:        fixed codec:    n * width bytes inline
//	             variable codec: (n+1) uint32 offsets, then the key blob
//	refs:        leaf:     n value handles (uint64)
//	             internal: n+1 child page ids (uint64), the last one is
//	                       the rightmost child
const (
	pageHeaderLen = 8
	pageFlagLeaf  = 1
)

// ErrCorruptedPage is returned when a page image fails to decode.
var ErrCorruptedPage = storage.ErrCorruptedPage

// page is one decoded tree node. A leaf holds n keys and n values; an
// internal page holds n keys and n+1 children with
// max(children[i]) <= keys[i] <= min(children[i+1]).
type page[K any] struct {
	id       storage.PageID
	leaf     bool
	keys     []K
	values   []object.Handle
	children []storage.PageID
}

func (p *page[K]) size() int { return len(p.keys) }

func (p *page[K]) keyAt(i int) K { return p.keys[i] }

// compare returns the order of k relative to the key at slot i.
func (p *page[K]) compare(c Codec[K], k K, i int) int {
	return c.Compare(k, p.keys[i])
}

// lowerBound returns the first slot whose key is >= k.
func (p *page[K]) lowerBound(c Codec[K], k K) int {
	lo, hi := 0, len(p.keys)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if p.compare(c, k, mid) > 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// upperBound returns the first slot whose key is > k.
func (p *page[K]) upperBound(c Codec[K], k K) int {
	lo, hi := 0, len(p.keys)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if p.compare(c, k, mid) >= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// search returns the slot selected by a bound: lowerBound when inclusive,
// upperBound otherwise.
func (p *page[K]) search(c Codec[K], k K, inclusive bool) int {
	if inclusive {
		return p.lowerBound(c, k)
	}
	return p.upperBound(c, k)
}

// insertValue inserts a leaf entry at slot i.
func (p *page[K]) insertValue(i int, k K, v object.Handle) {
	p.keys = slices.Insert(p.keys, i, k)
	p.values = slices.Insert(p.values, i, v)
}

// insertChild inserts separator k at slot i with child to its right.
func (p *page[K]) insertChild(i int, k K, child storage.PageID) {
	p.keys = slices.Insert(p.keys, i, k)
	p.children = slices.Insert(p.children, i+1, child)
}

// removeValue deletes the leaf entry at slot i.
func (p *page[K]) removeValue(i int) {
	p.clearSlot(i)
	p.keys = slices.Delete(p.keys, i, i+1)
	p.values = slices.Delete(p.values, i, i+1)
}

// removeChild deletes separator i and the child to its right.
func (p *page[K]) removeChild(i int) {
	p.clearSlot(i)
	p.keys = slices.Delete(p.keys, i, i+1)
	p.children = slices.Delete(p.children, i+1, i+2)
}

// clearSlot drops the reference held by slot i so variable keys are not
// retained by the backing array after a delete.
func (p *page[K]) clearSlot(i int) {
	var zero K
	p.keys[i] = zero
}

// moveTail moves the items from slot i on to the empty page dst.
// For internal pages dst receives children from i+1 on and the key at i is
// returned as the separator; it no longer belongs to either page.
func (p *page[K]) moveTail(i int, dst *page[K]) (sep K) {
	if p.leaf {
		dst.keys = append(dst.keys[:0], p.keys[i:]...)
		dst.values = append(dst.values[:0], p.values[i:]...)
		clear(p.keys[i:])
		p.keys = p.keys[:i]
		p.values = p.values[:i]
		return dst.keys[0]
	}

	sep = p.keys[i]
	dst.keys = append(dst.keys[:0], p.keys[i+1:]...)
	dst.children = append(dst.children[:0], p.children[i+1:]...)
	clear(p.keys[i:])
	p.keys = p.keys[:i]
	p.children = p.children[:i+1]
	return sep
}

// absorb appends every item of src. For internal pages sep becomes the key
// between the last child of p and the first child of src.
func (p *page[K]) absorb(sep K, src *page[K]) {
	if p.leaf {
		p.keys = append(p.keys, src.keys...)
		p.values = append(p.values, src.values...)
		return
	}
	p.keys = append(p.keys, sep)
	p.keys = append(p.keys, src.keys...)
	p.children = append(p.children, src.children...)
}

// encode serializes the page into the image layout above.
func (p *page[K]) encode(c Codec[K]) []byte {
	n := len(p.keys)
	buf := make([]byte, pageHeaderLen, pageHeaderLen+n*(refWidth+max(c.Width(), 8))+refWidth)
	if p.leaf {
		buf[0] = pageFlagLeaf
	}
	binary.LittleEndian.PutUint32(buf[1:5], uint32(n))

	if c.Width() > 0 {
		for _, k := range p.keys {
			buf = c.Append(buf, k)
		}
	} else {
		table := len(buf)
		buf = append(buf, make([]byte, 4*(n+1))...)
		blob := len(buf)
		for i, k := range p.keys {
			binary.LittleEndian.PutUint32(buf[table+4*i:], uint32(len(buf)-blob))
			buf = c.Append(buf, k)
		}
		binary.LittleEndian.PutUint32(buf[table+4*n:], uint32(len(buf)-blob))
	}

	if p.leaf {
		for _, v := range p.values {
			buf = binary.LittleEndian.AppendUint64(buf, uint64(v))
		}
	} else {
		for _, id := range p.children {
			buf = binary.LittleEndian.AppendUint64(buf, uint64(id))
		}
	}
	return buf
}

// decodePage parses an image produced by encode.
func decodePage[K any](c Codec[K], id storage.PageID, img []byte) (*page[K], error) {
	corrupt := func(format string, args ...interface{}) error {
		return errors.Wrapf(ErrCorruptedPage, "page %d: %s", id, fmt.Sprintf(format, args...))
	}

	if len(img) < pageHeaderLen {
		return nil, corrupt("image of %d bytes", len(img))
	}
	p := &page[K]{id: id, leaf: img[0]&pageFlagLeaf != 0}
	n := int(binary.LittleEndian.Uint32(img[1:5]))
	rest := img[pageHeaderLen:]
	if n*refWidth > len(rest) {
		return nil, corrupt("count %d exceeds image of %d bytes", n, len(img))
	}

	p.keys = make([]K, n)
	if w := c.Width(); w > 0 {
		if len(rest) < n*w {
			return nil, corrupt("%d keys need %d bytes, have %d", n, n*w, len(rest))
		}
		for i := range p.keys {
			k, err := c.Decode(rest[i*w : (i+1)*w])
			if err != nil {
				return nil, corrupt("key %d: %v", i, err)
			}
			p.keys[i] = k
		}
		rest = rest[n*w:]
	} else {
		if len(rest) < 4*(n+1) {
			return nil, corrupt("offset table truncated")
		}
		table := rest[:4*(n+1)]
		blobLen := int(binary.LittleEndian.Uint32(table[4*n:]))
		rest = rest[4*(n+1):]
		if len(rest) < blobLen {
			return nil, corrupt("key blob truncated")
		}
		blob := rest[:blobLen]
		for i := range p.keys {
			lo := int(binary.LittleEndian.Uint32(table[4*i:]))
			hi := int(binary.LittleEndian.Uint32(table[4*(i+1):]))
			if lo > hi || hi > blobLen {
				return nil, corrupt("key %d spans [%d, %d) of %d", i, lo, hi, blobLen)
			}
			k, err := c.Decode(blob[lo:hi])
			if err != nil {
				return nil, corrupt("key %d: %v", i, err)
			}
			p.keys[i] = k
		}
		rest = rest[blobLen:]
	}

	refs := n
	if !p.leaf {
		refs = n + 1
	}
	if len(rest) != refs*refWidth {
		return nil, corrupt("%d refs need %d bytes, have %d", refs, refs*refWidth, len(rest))
	}
	if p.leaf {
		p.values = make([]object.Handle, n)
		for i := range p.values {
			p.values[i] = object.Handle(binary.LittleEndian.Uint64(rest[i*refWidth:]))
		}
	} else {
		p.children = make([]storage.PageID, n+1)
		for i := range p.children {
			p.children[i] = storage.PageID(binary.LittleEndian.Uint64(rest[i*refWidth:]))
		}
	}
	return p, nil
}
