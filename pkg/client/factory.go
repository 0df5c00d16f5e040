package client

import (
	"context"
	"sync"
)

// Factory hands out logged-in clients, memoized per instance URL so repeated
// operations against the same instance reuse one session and one response
// cache. Pass a Factory to the operation packages instead of constructing
// clients inline.
type Factory struct {
	mu      sync.Mutex
	clients map[string]*Client
}

// NewFactory returns an empty Factory.
func NewFactory() *Factory {
	return &Factory{clients: make(map[string]*Client)}
}

// Get returns a logged-in client for cfg.URL, reusing an existing session
// for the same URL and username when one exists.
func (f *Factory) Get(ctx context.Context, cfg Config) (*Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := cfg.URL + "\x00" + cfg.Username
	if c, ok := f.clients[key]; ok {
		return c, nil
	}

	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.Login(ctx); err != nil {
		return nil, err
	}
	f.clients[key] = c
	return c, nil
}

// Forget drops the memoized client for url and username, forcing the next
// Get to log in again.
func (f *Factory) Forget(url, username string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.clients, url+"\x00"+username)
}
