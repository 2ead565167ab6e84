package channel_test

import (
	"sync"
	"testing"

	"github.com/jkluft/conartist/channel"
)

func TestFIFOSingleProducer(t *testing.T) {
	c := channel.New(4)
	for _, v := range []int{1, 2, 3} {
		if !c.Push(v) {
			t.Fatalf("push %d failed", v)
		}
	}
	for _, want := range []int{1, 2, 3} {
		got, ok := c.Pop()
		if !ok || got.(int) != want {
			t.Fatalf("got %v, want %d", got, want)
		}
	}
}

func TestFIFOAcrossProducers(t *testing.T) {
	c := channel.New(4)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Push("p1")
		c.Push("p2")
		c.Push("p3")
	}()
	wg.Wait()
	c.Push("p4")

	var got []string
	for i := 0; i < 4; i++ {
		v, ok := c.Pop()
		if !ok {
			t.Fatal("unexpected close")
		}
		got = append(got, v.(string))
	}
	// p1,p2,p3 must appear in that relative order; p4 was pushed after
	// thread A finished, so it must appear after all three.
	idx := map[string]int{}
	for i, v := range got {
		idx[v] = i
	}
	if !(idx["p1"] < idx["p2"] && idx["p2"] < idx["p3"] && idx["p3"] < idx["p4"]) {
		t.Fatalf("bad order: %v", got)
	}
}

func TestTryPopEmpty(t *testing.T) {
	c := channel.New(2)
	if _, ok := c.TryPop(); ok {
		t.Fatal("expected empty")
	}
}

func TestBlockingPushPop(t *testing.T) {
	c := channel.New(1)
	c.Push(1)
	done := make(chan struct{})
	go func() {
		c.Push(2) // blocks until the pop below
		close(done)
	}()
	v, ok := c.Pop()
	if !ok || v.(int) != 1 {
		t.Fatalf("got %v", v)
	}
	<-done
	v, ok = c.Pop()
	if !ok || v.(int) != 2 {
		t.Fatalf("got %v", v)
	}
}

func TestCloseDrainsThenNil(t *testing.T) {
	c := channel.New(4)
	c.Push(1)
	c.Push(2)
	c.Close()
	if !c.Push(3) {
		// push after close must fail
	} else {
		t.Fatal("push after close should fail")
	}
	if v, ok := c.Pop(); !ok || v.(int) != 1 {
		t.Fatalf("got %v", v)
	}
	if v, ok := c.Pop(); !ok || v.(int) != 2 {
		t.Fatalf("got %v", v)
	}
	if _, ok := c.Pop(); ok {
		t.Fatal("expected closed+drained")
	}
}
