// Package mmap provides read-only memory-mapped file access.
//
//	f, err := mmap.Open("runs/v1/part-000001.seg")
//	if err != nil { ... }
//	defer f.Close()
//
//	data := f.Bytes()
//
// The returned bytes are valid until Close. Unix uses mmap(2); Windows uses
// CreateFileMapping/MapViewOfFile.
package mmap
