package pool_test

import (
	"testing"

	"github.com/jkluft/conartist/pool"
)

type packet struct {
	n int
}

func TestAcquireReleaseRoundTrip(t *testing.T) {
	p := pool.New[packet]("pkt", 2)
	s1, v1, ok := p.Acquire()
	if !ok {
		t.Fatal("expected slot")
	}
	v1.n = 7
	s2, _, ok := p.Acquire()
	if !ok {
		t.Fatal("expected slot")
	}
	if _, _, ok := p.Acquire(); ok {
		t.Fatal("expected exhaustion")
	}
	p.Release(s1)
	s3, v3, ok := p.Acquire()
	if !ok {
		t.Fatal("expected reuse of released slot")
	}
	if v3.n != 0 {
		t.Fatalf("expected zeroed slot, got %d", v3.n)
	}
	_ = s2
	_ = s3
}

func TestInUseAccounting(t *testing.T) {
	p := pool.New[packet]("pkt", 4)
	if p.InUse() != 0 {
		t.Fatalf("expected 0 in use, got %d", p.InUse())
	}
	s, _, _ := p.Acquire()
	if p.InUse() != 1 {
		t.Fatalf("expected 1 in use, got %d", p.InUse())
	}
	p.Release(s)
	if p.InUse() != 0 {
		t.Fatalf("expected 0 in use after release, got %d", p.InUse())
	}
}
