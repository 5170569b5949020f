package ratelimit

import "testing"

func TestLimiter_DisabledWhenPerSecondNonPositive(t *testing.T) {
	l := New(0, 0, 10)
	for i := 0; i < 1000; i++ {
		if !l.Allow(1) {
			t.Fatal("disabled limiter should always allow")
		}
	}
}

func TestLimiter_BurstThenBlock(t *testing.T) {
	l := New(1, 2, 10)
	if !l.Allow(1) || !l.Allow(1) {
		t.Fatal("expected burst of 2 to be allowed")
	}
	if l.Allow(1) {
		t.Fatal("expected third immediate call to be blocked")
	}
}

func TestLimiter_TracksClientsIndependently(t *testing.T) {
	l := New(1, 1, 10)
	if !l.Allow(1) {
		t.Fatal("client 1 first call should be allowed")
	}
	if !l.Allow(2) {
		t.Fatal("client 2 first call should be allowed independently of client 1")
	}
}

func TestLimiter_ForgetDropsState(t *testing.T) {
	l := New(1, 1, 10)
	l.Allow(1)
	if l.Allow(1) {
		t.Fatal("expected second call to be blocked before Forget")
	}
	l.Forget(1)
	if !l.Allow(1) {
		t.Fatal("expected fresh limiter state after Forget")
	}
}
