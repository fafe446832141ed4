// Package index exposes typed-key indexes over stored objects.
//
// # Overview
//
// An Index is declared over one key.Type and dispatches every operation to
// a B+ Tree engine specialized for that type. Values are objects of an
// object.Store: the index keeps their handles in the leaves and resolves
// them on the way out.
//
//	ix, err := index.New(key.TypeString, index.Options{Unique: true})
//
//	ok, err := ix.Put(key.String("alice"), user)
//	old, err := ix.Set(key.String("alice"), other)
//	obj, err := ix.Get(key.String("alice"))
//	objs, err := ix.Range(key.String("a").Ptr(), key.String("b").Exclusive().Ptr(), btree.Ascending)
//
// # Cursors
//
// Cursor yields values and DictCursor yields (key, value) pairs. Both take
// an explicit btree.Mode: strict cursors fail once the index is modified,
// tolerant cursors resume after the last entry they returned.
//
// # Manager
//
// A Manager owns named indexes sharing one storage.PageStore. Their root
// records are kept in a catalogue page reachable from the store's root, so
// reopening the store restores every index.
//
//	m, err := index.NewManager(store, index.ManagerOptions{})
//	users, err := m.CreateIndex("users.name", key.TypeString, true)
//	err = m.Flush()
package index
