package job_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jkluft/conartist/job"
)

func TestSubmitDrainDeliversAllExactlyOnce(t *testing.T) {
	m := job.New(4, 32, 4)
	ch, err := m.InitChannel(32)
	if err != nil {
		t.Fatal(err)
	}

	const n = 20
	var executed int32
	for i := 0; i < n; i++ {
		i := i
		if err := m.Submit(ch, func(arg0, arg1 any) {
			atomic.AddInt32(&executed, 1)
		}, i, nil); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	m.Stop(true /*drain*/)

	if got := atomic.LoadInt32(&executed); got != n {
		t.Fatalf("expected %d executions, got %d", n, got)
	}

	seen := map[int]bool{}
	for {
		arg0, _, ok := m.PopCompleted(ch)
		if !ok {
			break
		}
		seen[arg0.(int)] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct completions, got %d", n, len(seen))
	}
}

func TestPopCompletedWaitUnblocksOnDrainedStop(t *testing.T) {
	m := job.New(2, 8, 2)
	ch, err := m.InitChannel(8)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		m.PopCompletedWait(ch)
		close(done)
	}()

	m.Stop(true)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("PopCompletedWait did not unblock after Stop")
	}
}

func TestSubmitAfterStopFails(t *testing.T) {
	m := job.New(1, 4, 1)
	ch, _ := m.InitChannel(4)
	m.Stop(true)
	if err := m.Submit(ch, func(any, any) {}, nil, nil); err == nil {
		t.Fatal("expected submit after stop to fail")
	}
}

func TestLatencyNSRecordsMostRecentJob(t *testing.T) {
	m := job.New(1, 4, 1)
	ch, err := m.InitChannel(4)
	if err != nil {
		t.Fatal(err)
	}

	if got := m.LatencyNS(); got != 0 {
		t.Fatalf("expected 0 latency before any job runs, got %d", got)
	}

	done := make(chan struct{})
	if err := m.Submit(ch, func(any, any) {
		time.Sleep(5 * time.Millisecond)
		close(done)
	}, nil, nil); err != nil {
		t.Fatal(err)
	}
	<-done
	m.Stop(true)

	if got := m.LatencyNS(); got < int64(4*time.Millisecond) {
		t.Fatalf("expected latency to reflect the ~5ms sleep, got %dns", got)
	}
}

func TestInitChannelExhaustion(t *testing.T) {
	m := job.New(1, 4, 1)
	if _, err := m.InitChannel(4); err != nil {
		t.Fatal(err)
	}
	if _, err := m.InitChannel(4); err == nil {
		t.Fatal("expected channel exhaustion")
	}
	m.Stop(false)
}
