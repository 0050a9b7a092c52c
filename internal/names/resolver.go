// Package names enriches learned neighbors with reverse DNS names for
// events; the admin API does not expose them. Lookups are best-effort: failures are cached
// as empty names so a dead resolver never stalls the event path.
package names

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
)

type cached struct {
	name    string
	fetched time.Time
}

// Resolver answers PTR queries against a single nameserver with a bounded
// positive/negative cache.
type Resolver struct {
	server  string
	timeout time.Duration
	ttl     time.Duration
	maxSize int
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[string]cached

	// exchange is swapped out by tests.
	exchange func(msg *dns.Msg, server string) (*dns.Msg, error)
}

// NewResolver creates a resolver against server ("host:port"; port 53 is
// appended when missing).
func NewResolver(server string, timeout time.Duration, maxSize int, logger *slog.Logger) *Resolver {
	if !strings.Contains(server, ":") {
		server += ":53"
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if maxSize <= 0 {
		maxSize = 1024
	}
	r := &Resolver{
		server:  server,
		timeout: timeout,
		ttl:     10 * time.Minute,
		maxSize: maxSize,
		logger:  logger,
		cache:   make(map[string]cached),
	}
	r.exchange = func(msg *dns.Msg, srv string) (*dns.Msg, error) {
		client := &dns.Client{Timeout: r.timeout}
		resp, _, err := client.Exchange(msg, srv)
		return resp, err
	}
	return r
}

// Lookup returns the PTR name for the dotted-quad ip, or "" when there is
// none. Results, including misses, are cached.
func (r *Resolver) Lookup(ip string) string {
	r.mu.Lock()
	if c, ok := r.cache[ip]; ok && time.Since(c.fetched) < r.ttl {
		r.mu.Unlock()
		return c.name
	}
	r.mu.Unlock()

	name := r.query(ip)

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.cache) >= r.maxSize {
		// Cheap pressure valve: drop the whole cache rather than track
		// recency for a best-effort enrichment.
		r.cache = make(map[string]cached)
	}
	r.cache[ip] = cached{name: name, fetched: time.Now()}
	return name
}

func (r *Resolver) query(ip string) string {
	arpa, err := dns.ReverseAddr(ip)
	if err != nil {
		return ""
	}

	msg := new(dns.Msg)
	msg.SetQuestion(arpa, dns.TypePTR)
	msg.RecursionDesired = true

	resp, err := r.exchange(msg, r.server)
	if err != nil {
		r.logger.Debug("PTR lookup failed", "ip", ip, "error", err)
		return ""
	}
	if resp.Rcode != dns.RcodeSuccess {
		return ""
	}
	for _, rr := range resp.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, ".")
		}
	}
	return ""
}

// CacheLen returns the number of cached lookups.
func (r *Resolver) CacheLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

// String describes the resolver target.
func (r *Resolver) String() string {
	return fmt.Sprintf("ptr-resolver(%s)", r.server)
}
