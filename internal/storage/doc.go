// Package storage provides the page store the index engine persists its
// pages into.
//
// # Overview
//
// The engine sees storage through the PageStore interface: allocate a page
// id, write a page image of any length under it, read it back, free it.
// Three implementations are provided:
//
//   - MemoryStore: page images kept in a map, ids recycled through a FreeList
//   - FileStore: page images written into fixed 4KB pages of a PageManager
//     file, spilling into chained overflow pages when they do not fit
//   - pebblestore.Store (subpackage): page images kept in a Pebble LSM
//
// # File Layout
//
// A PageManager file is an array of 4KB pages. Page 0 holds the FileHeader
// (magic, version, page size, page count, free list head, root page).
// Every other page starts with a 16-byte PageHeader followed by data.
//
// # Usage
//
//	pm, err := storage.OpenPageManager("/var/lib/obaidx/index.db", storage.DefaultOptions())
//	store := storage.NewFileStore(pm)
//
//	id, err := store.Allocate()
//	err = store.Write(id, image)
//	image, err = store.Read(id)
package storage
