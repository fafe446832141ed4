// Package object defines the boundary between the index engine and the
// object store that owns the indexed values.
//
// # Overview
//
// Leaf pages of a B+ tree never hold values directly. They hold a Handle,
// an opaque stable identifier the store assigns to every persisted object.
// The engine only needs three capabilities from the store:
//
//   - MakePersistent: make sure a value has a Handle before it is indexed
//   - HandleOf: look up the Handle of an already persisted value
//   - Resolve: map a Handle back to the live value
//
// # Heap
//
// Heap is an in-memory arena implementing Store. Objects are identified by
// pointer identity, so only pointer values can be made persistent:
//
//	heap := object.NewHeap()
//	h, err := heap.MakePersistent(&Document{Title: "report"})
//	doc, err := heap.Resolve(h)
package object
