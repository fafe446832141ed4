// Package btree implements the ordered index engine: a B+ Tree mapping
// typed keys to object handles.
//
// # Structure
//
// The tree is generic over the key type K. A Codec[K] supplies the order
// and the page encoding of keys, so a single page implementation serves
// every key type:
//
//   - fixed codecs (bool, integers, floats, GUID, object references) store
//     keys inline and derive the page capacity from the 4KB page budget
//   - variable codecs (string, bytes, decimal) store keys in a blob area and
//     cap pages at VariableCapacity items
//
// Leaf pages hold (key, value handle) items; internal pages hold n keys and
// n+1 children. Every non-root page holds between capacity/3 and capacity
// keys. Unique trees reject duplicate keys; non-unique trees keep equal keys
// in insertion order.
//
// # Persistence
//
// Pages are kept decoded in a page table and written to a storage.PageStore
// by Flush. Meta captures the root record needed to reopen a tree.
//
// # Iteration
//
// A Cursor walks the tree with a stack of (page id, position) frames. Every
// mutation bumps the tree's update counter. A cursor in ModeStrict fails with
// ErrConcurrentStructuralChange once the counter moves; a cursor in
// ModeTolerant repositions itself just past the last entry it returned.
//
// # Usage
//
//	tree, err := btree.New(btree.Int64, btree.Options{Unique: true})
//	ok, err := tree.Put(42, handle)
//	entries, err := tree.Find(btree.Incl(int64(10)), btree.Excl(int64(100)))
//
//	cur := tree.Cursor(nil, nil, btree.Descending, btree.ModeTolerant)
//	for k, v, ok := cur.Next(); ok; k, v, ok = cur.Next() {
//		...
//	}
//	if err := cur.Err(); err != nil {
//		...
//	}
package btree
