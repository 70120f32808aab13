// Package mmap provides read-only memory-mapped file access.
//
// An index file is written once and never mutated in place, so a mapping
// stays valid for the lifetime of the reader that owns it. Queries read
// fixed-width fields and varint-coded posting lists directly out of the
// mapped region without copying.
//
//	m, err := mmap.Open("index")
//	if err != nil { ... }
//	defer m.Close()
//	data := m.Data
//
// Unix platforms use mmap(2); Windows uses CreateFileMapping/MapViewOfFile.
// Callers must not touch Data after Close.
package mmap
