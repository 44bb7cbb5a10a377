// ABOUTME: Process-wide registry of player sessions keyed by id
// ABOUTME: Sessions remove themselves when their scheduler exits
package player

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionNotFound = errors.New("session not found")
)

// Registry holds live players
type Registry struct {
	base     Options
	sessions sync.Map // id -> *Player
}

// NewRegistry creates a registry. base supplies the collaborators and
// buffer sizes for every player it creates.
func NewRegistry(base Options) *Registry {
	return &Registry{base: base}
}

// Create starts a player for uri under id. An empty id gets a generated
// one. Duplicate ids are rejected with ErrSessionExists.
func (r *Registry) Create(ctx context.Context, id, uri string, metadata json.RawMessage) (*Player, error) {
	if id == "" {
		id = uuid.NewString()
	}

	opts := r.base
	opts.ID = id
	opts.URI = uri
	opts.Metadata = metadata
	p := New(opts)

	if _, loaded := r.sessions.LoadOrStore(id, p); loaded {
		return nil, ErrSessionExists
	}

	if err := p.Start(ctx); err != nil {
		r.sessions.CompareAndDelete(id, p)
		return nil, err
	}

	go func() {
		<-p.Done()
		if r.sessions.CompareAndDelete(id, p) {
			if err := p.Err(); err != nil {
				log.Printf("Session %s ended: %v", id, err)
			} else {
				log.Printf("Session %s ended", id)
			}
		}
	}()

	log.Printf("Session %s created for %s", id, uri)
	return p, nil
}

// Get returns the player for id
func (r *Registry) Get(id string) (*Player, bool) {
	v, ok := r.sessions.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Player), true
}

// Remove stops and forgets the player for id
func (r *Registry) Remove(id string) bool {
	v, ok := r.sessions.LoadAndDelete(id)
	if !ok {
		return false
	}
	v.(*Player).Stop()
	log.Printf("Session %s removed", id)
	return true
}

// List returns all players ordered by id
func (r *Registry) List() []*Player {
	var players []*Player
	r.sessions.Range(func(_, v any) bool {
		players = append(players, v.(*Player))
		return true
	})
	slices.SortFunc(players, func(a, b *Player) int { return strings.Compare(a.ID(), b.ID()) })
	return players
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	n := 0
	r.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// StopAll stops every session and waits until each has ended or ctx is done
func (r *Registry) StopAll(ctx context.Context) {
	players := r.List()
	for _, p := range players {
		r.Remove(p.ID())
	}
	for _, p := range players {
		select {
		case <-p.Done():
		case <-ctx.Done():
			return
		}
	}
}
