package remote

import (
	"context"
	"fmt"
	"net/url"
	"sync"
)

// Pool hands out one Client per host so a failing host trips only its own
// breaker.
type Pool struct {
	template ClientConfig

	mu      sync.Mutex
	clients map[string]*Client
}

// NewPool creates a pool. Every client is built from template with its
// Name set to the host and registered in template.Registry if set.
func NewPool(template ClientConfig) *Pool {
	return &Pool{
		template: template,
		clients:  make(map[string]*Client),
	}
}

// For returns the client for host, creating it on first use.
func (p *Pool) For(host string) *Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[host]; ok {
		return c
	}
	cfg := p.template
	cfg.Name = host
	if cfg.Breaker != nil {
		b := *cfg.Breaker
		b.Name = host
		cfg.Breaker = &b
	}
	c := NewClient(cfg)
	p.clients[host] = c
	return c
}

func (p *Pool) client(rawURL string) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("unsupported artifact url %q", rawURL)
	}
	return p.For(u.Host), nil
}

// Probe probes rawURL with the client for its host. Only http and https
// URLs are accepted.
func (p *Pool) Probe(ctx context.Context, rawURL string) (*ProbeResult, error) {
	c, err := p.client(rawURL)
	if err != nil {
		return nil, err
	}
	return c.Probe(ctx, rawURL)
}

// Digest downloads rawURL with the client for its host.
func (p *Pool) Digest(ctx context.Context, rawURL string) (string, int64, error) {
	c, err := p.client(rawURL)
	if err != nil {
		return "", 0, err
	}
	return c.Digest(ctx, rawURL)
}
