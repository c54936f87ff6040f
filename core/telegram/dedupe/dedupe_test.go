package dedupe

import (
	"context"
	"testing"
	"time"
)

func TestMemoryFirstSeen(t *testing.T) {
	clock := time.Unix(0, 0)
	m := NewMemory(time.Minute)
	m.now = func() time.Time { return clock }
	ctx := context.Background()

	steps := []struct {
		id      int
		advance time.Duration
		want    bool
	}{
		{1, 0, true},
		{1, 0, false},
		{2, 0, true},
		{1, 30 * time.Second, false},
		{1, 31 * time.Second, true},
	}
	for i, st := range steps {
		clock = clock.Add(st.advance)
		got, err := m.FirstSeen(ctx, st.id)
		if err != nil {
			t.Fatal(err)
		}
		if got != st.want {
			t.Fatalf("step %d: FirstSeen(%d) = %v, want %v", i, st.id, got, st.want)
		}
	}
	// update 2 expired and was collected together with the refresh of 1
	if m.Len() != 1 {
		t.Fatalf("len = %d", m.Len())
	}
}

func TestRedisKey(t *testing.T) {
	r := NewRedis(nil, "tourbot:", 0)
	if got := r.key(77); got != "tourbot:update:77" {
		t.Fatalf("key = %q", got)
	}
	if r.ttl != DefaultTTL {
		t.Fatalf("ttl = %v", r.ttl)
	}
}
