// Package handlers provides HTTP handlers for the web API.
// This file contains the FacesHandler struct and constructor.
// Handler methods are organized in separate files:
//   - encode.go: storing a user's face encodings (Encode)
//   - match.go: matching against one user or all users (Match, Identify)
package handlers

import (
	"sync"

	"github.com/kozaktomas/faceid/internal/config"
	"github.com/kozaktomas/faceid/internal/database"
	"github.com/kozaktomas/faceid/internal/faceembed"
	"github.com/kozaktomas/faceid/internal/matcher"
)

// FacesHandler handles face encoding and matching endpoints
type FacesHandler struct {
	config    *config.Config
	store     database.Store
	extractor faceembed.Extractor
	matcher   *matcher.Matcher
	locks     *userLocks
}

// NewFacesHandler creates a new faces handler
func NewFacesHandler(cfg *config.Config, store database.Store, extractor faceembed.Extractor, m *matcher.Matcher) *FacesHandler {
	return &FacesHandler{
		config:    cfg,
		store:     store,
		extractor: extractor,
		matcher:   m,
		locks:     newUserLocks(),
	}
}

// userLocks serializes work per user ID. Entries are dropped once unused.
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[int64]*userLock)}
}

// Lock blocks until the caller holds the lock for id and returns its release func.
func (l *userLocks) Lock(id int64) func() {
	l.mu.Lock()
	ul, ok := l.locks[id]
	if !ok {
		ul = &userLock{}
		l.locks[id] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *userLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
