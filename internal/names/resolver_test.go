package names

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/miekg/dns"
)

func testResolver(exchange func(msg *dns.Msg, server string) (*dns.Msg, error)) *Resolver {
	r := NewResolver("127.0.0.1:53", time.Second, 8, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.exchange = exchange
	return r
}

func ptrResponse(q *dns.Msg, name string) *dns.Msg {
	resp := new(dns.Msg)
	resp.SetReply(q)
	resp.Answer = append(resp.Answer, &dns.PTR{
		Hdr: dns.RR_Header{Name: q.Question[0].Name, Rrtype: dns.TypePTR, Class: dns.ClassINET, Ttl: 300},
		Ptr: name,
	})
	return resp
}

func TestLookupReturnsPTR(t *testing.T) {
	var queried string
	r := testResolver(func(msg *dns.Msg, server string) (*dns.Msg, error) {
		queried = msg.Question[0].Name
		return ptrResponse(msg, "printer.lan."), nil
	})

	if got := r.Lookup("10.0.0.2"); got != "printer.lan" {
		t.Errorf("Lookup = %q, want printer.lan", got)
	}
	if queried != "2.0.0.10.in-addr.arpa." {
		t.Errorf("queried %q, want 2.0.0.10.in-addr.arpa.", queried)
	}
}

func TestLookupCachesResults(t *testing.T) {
	calls := 0
	r := testResolver(func(msg *dns.Msg, server string) (*dns.Msg, error) {
		calls++
		return ptrResponse(msg, "host.lan."), nil
	})

	r.Lookup("10.0.0.2")
	r.Lookup("10.0.0.2")
	if calls != 1 {
		t.Errorf("exchange calls = %d, want 1 (cached)", calls)
	}
}

func TestLookupCachesFailures(t *testing.T) {
	calls := 0
	r := testResolver(func(msg *dns.Msg, server string) (*dns.Msg, error) {
		calls++
		return nil, errors.New("timeout")
	})

	if got := r.Lookup("10.0.0.3"); got != "" {
		t.Errorf("Lookup on failure = %q, want empty", got)
	}
	r.Lookup("10.0.0.3")
	if calls != 1 {
		t.Errorf("exchange calls = %d, want 1 (failure cached)", calls)
	}
}

func TestLookupNXDomain(t *testing.T) {
	r := testResolver(func(msg *dns.Msg, server string) (*dns.Msg, error) {
		resp := new(dns.Msg)
		resp.SetRcode(msg, dns.RcodeNameError)
		return resp, nil
	})
	if got := r.Lookup("10.0.0.4"); got != "" {
		t.Errorf("Lookup on NXDOMAIN = %q, want empty", got)
	}
}

func TestCacheBound(t *testing.T) {
	r := testResolver(func(msg *dns.Msg, server string) (*dns.Msg, error) {
		return ptrResponse(msg, "x.lan."), nil
	})
	for i := 0; i < 40; i++ {
		r.Lookup(fmt.Sprintf("10.0.%d.%d", i/10, i%10))
	}
	if r.CacheLen() > 8 {
		t.Errorf("cache size %d exceeds bound 8", r.CacheLen())
	}
}
