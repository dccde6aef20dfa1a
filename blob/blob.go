// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package blob resolves firmware names to their raw bytes.
//
// A Store reports a missing firmware with an error wrapping ErrNotExist; any
// other error means the store itself is unusable.
package blob

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"
)

// ErrNotExist is wrapped by the error a Store returns when the name is not
// present.
var ErrNotExist = errors.New("blob: does not exist")

// Store resolves a firmware name to its content.
type Store interface {
	// Load returns the content of name. The returned slice is owned by the
	// caller.
	Load(ctx context.Context, name string) ([]byte, error)
	String() string
}

// Dir is a Store reading files from a directory.
type Dir struct {
	root string
	fsys fs.FS
}

// NewDir returns a Store serving the files in root.
func NewDir(root string) *Dir {
	return &Dir{root: root, fsys: os.DirFS(root)}
}

func (d *Dir) String() string {
	return d.root
}

// Load implements Store.
func (d *Dir) Load(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !fs.ValidPath(name) || strings.Contains(name, "\\") {
		return nil, errors.New("blob: invalid name " + name)
	}
	b, err := fs.ReadFile(d.fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &notExistError{store: d.root, name: name}
	}
	return b, err
}

// Search is a Store trying each Store in order and returning the first hit.
//
// An error other than ErrNotExist from any of them aborts the search.
type Search []Store

func (s Search) String() string {
	names := make([]string, len(s))
	for i := range s {
		names[i] = s[i].String()
	}
	return strings.Join(names, ":")
}

// Load implements Store.
func (s Search) Load(ctx context.Context, name string) ([]byte, error) {
	for _, st := range s {
		b, err := st.Load(ctx, name)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, ErrNotExist) {
			return nil, err
		}
	}
	return nil, &notExistError{store: s.String(), name: name}
}

// Memory is a Store holding its blobs in memory. The zero value is empty and
// ready to use.
type Memory struct {
	mu    sync.Mutex
	blobs map[string][]byte
	// Err, when set, is returned by Load for every name. Useful in tests to
	// simulate a broken store.
	Err error
}

func (m *Memory) String() string {
	return "memory"
}

// Set stores a copy of b under name.
func (m *Memory) Set(name string, b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blobs == nil {
		m.blobs = map[string][]byte{}
	}
	m.blobs[name] = append([]byte(nil), b...)
}

// Load implements Store.
func (m *Memory) Load(ctx context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	b, ok := m.blobs[name]
	if !ok {
		return nil, &notExistError{store: "memory", name: name}
	}
	return append([]byte(nil), b...), nil
}

type notExistError struct {
	store string
	name  string
}

func (e *notExistError) Error() string {
	return "blob: " + path.Join(e.store, e.name) + " does not exist"
}

func (e *notExistError) Unwrap() error {
	return ErrNotExist
}

var _ Store = &Dir{}
var _ Store = Search{}
var _ Store = &Memory{}
