// Package sse fans server-sent events out to the extension's open streams.
package sse

import (
	"io"
	"sync"

	"github.com/gin-gonic/gin"
)

// Message is one event addressed to every stream registered under Key.
type Message struct {
	Key   string
	Event string
	Data  interface{}
}

type client struct {
	key string
	ch  chan Message
}

type Manager struct {
	mu        sync.RWMutex
	clients   map[string]map[*client]struct{}
	broadcast chan Message
	done      chan struct{}
	closeOnce sync.Once
}

func NewManager() *Manager {
	return &Manager{
		clients:   make(map[string]map[*client]struct{}),
		broadcast: make(chan Message, 256),
		done:      make(chan struct{}),
	}
}

// Run delivers queued messages until Close is called.
func (m *Manager) Run() {
	for {
		select {
		case msg := <-m.broadcast:
			m.deliver(msg)
		case <-m.done:
			return
		}
	}
}

func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.done) })
}

func (m *Manager) deliver(msg Message) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for c := range m.clients[msg.Key] {
		select {
		case c.ch <- msg:
		default:
			// Slow reader; drop rather than block the fan-out.
		}
	}
}

// Send queues an event for key. It never blocks the caller.
func (m *Manager) Send(key, event string, data interface{}) {
	select {
	case m.broadcast <- Message{Key: key, Event: event, Data: data}:
	default:
	}
}

func (m *Manager) subscribe(key string) *client {
	c := &client{key: key, ch: make(chan Message, 32)}
	m.mu.Lock()
	if m.clients[key] == nil {
		m.clients[key] = make(map[*client]struct{})
	}
	m.clients[key][c] = struct{}{}
	m.mu.Unlock()
	return c
}

func (m *Manager) unsubscribe(c *client) {
	m.mu.Lock()
	delete(m.clients[c.key], c)
	if len(m.clients[c.key]) == 0 {
		delete(m.clients, c.key)
	}
	m.mu.Unlock()
}

// Subscribers reports how many streams are open for key.
func (m *Manager) Subscribers(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients[key])
}

// ServeHTTP streams events for key until the request ends.
func (m *Manager) ServeHTTP(c *gin.Context, key string) {
	sub := m.subscribe(key)
	defer m.unsubscribe(sub)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.SSEvent("connected", gin.H{"key": key})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case msg := <-sub.ch:
			c.SSEvent(msg.Event, msg.Data)
			return true
		case <-c.Request.Context().Done():
			return false
		case <-m.done:
			return false
		}
	})
}
