// Copyright 2024 The RocksDB-Go Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package vfs is the filesystem abstraction the blob storage subsystem is
// built against: create/open/read/write/flush/fsync on named files, nothing
// more, trimmed to the subset blobfile and blobsource actually exercise.
package vfs

import (
	"io"
	"os"
	"path/filepath"
)

// File is a readable, writable sequence of bytes.
type File interface {
	io.Closer
	io.Reader
	io.ReaderAt
	io.Writer
	Stat() (os.FileInfo, error)
	Sync() error
}

// FS is a namespace for files. Names are filepath names.
type FS interface {
	// Create creates the named file for writing, truncating it if it
	// already exists.
	Create(name string) (File, error)

	// Open opens the named file for reading.
	Open(name string) (File, error)

	// Remove removes the named file.
	Remove(name string) error

	// MkdirAll creates a directory and all necessary parents.
	MkdirAll(dir string, perm os.FileMode) error

	// List returns a listing of the given directory, names relative to dir.
	List(dir string) ([]string, error)

	// Stat returns an os.FileInfo describing the named file.
	Stat(name string) (os.FileInfo, error)

	// PathJoin joins path elements into a single path.
	PathJoin(elem ...string) string
}

// Default is the FS backed by the operating system.
var Default FS = defaultFS{}

type defaultFS struct{}

func (defaultFS) Create(name string) (File, error) {
	return os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
}

func (defaultFS) Open(name string) (File, error) {
	return os.OpenFile(name, os.O_RDONLY, 0)
}

func (defaultFS) Remove(name string) error {
	return os.Remove(name)
}

func (defaultFS) MkdirAll(dir string, perm os.FileMode) error {
	return os.MkdirAll(dir, perm)
}

func (defaultFS) List(dir string) ([]string, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Readdirnames(-1)
}

func (defaultFS) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

func (defaultFS) PathJoin(elem ...string) string {
	return filepath.Join(elem...)
}
