// Package registry tracks long-running requests by caller-supplied id so
// the UI can cancel them.
package registry

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrCancelled is returned by operations that observed a cancelled token
// before their next side effect.
var ErrCancelled = errors.New("request cancelled")

// Token is checked by long-running work before each observable side effect.
type Token interface {
	Cancelled() bool
}

// None is a token that is never cancelled.
var None Token = noneToken{}

type noneToken struct{}

func (noneToken) Cancelled() bool { return false }

// Request is one active request.
type Request struct {
	ID        string
	Action    string
	StartedAt time.Time
	cancelled atomic.Bool
}

func (r *Request) Cancelled() bool {
	return r.cancelled.Load()
}

// Check returns ErrCancelled once the request has been cancelled.
func Check(t Token) error {
	if t != nil && t.Cancelled() {
		return ErrCancelled
	}
	return nil
}

type Registry struct {
	mu       sync.Mutex
	requests map[string]*Request
	now      func() time.Time
}

func New() *Registry {
	return &Registry{requests: make(map[string]*Request), now: time.Now}
}

// Register starts tracking id. An empty id yields a token that cannot be
// cancelled. Registering an id that is still active cancels the older
// request.
func (r *Registry) Register(id, action string) Token {
	if id == "" {
		return None
	}
	req := &Request{ID: id, Action: action, StartedAt: r.now()}
	r.mu.Lock()
	if old, ok := r.requests[id]; ok {
		old.cancelled.Store(true)
	}
	r.requests[id] = req
	r.mu.Unlock()
	return req
}

// Cancel flags id as cancelled and forgets it. It reports whether id was
// active.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return false
	}
	req.cancelled.Store(true)
	delete(r.requests, id)
	return true
}

// IsCancelled reports whether id is unknown or was cancelled.
func (r *Registry) IsCancelled(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	return !ok || req.Cancelled()
}

// Release forgets a finished request. Releasing with a stale token leaves a
// newer registration for the same id in place.
func (r *Registry) Release(id string, t Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req, ok := r.requests[id]; ok && Token(req) == t {
		delete(r.requests, id)
	}
}

// Info describes an active request.
type Info struct {
	ID        string    `json:"requestId"`
	Action    string    `json:"action"`
	StartedAt time.Time `json:"timestamp"`
}

// Active returns a snapshot of the active requests.
func (r *Registry) Active() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Info, 0, len(r.requests))
	for _, req := range r.requests {
		out = append(out, Info{ID: req.ID, Action: req.Action, StartedAt: req.StartedAt})
	}
	return out
}
