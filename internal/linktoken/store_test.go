package linktoken

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestStore(capacity int, ttl time.Duration) *Store {
	return NewStore(capacity, ttl, zerolog.Nop())
}

func TestRegisterResolve(t *testing.T) {
	s := newTestStore(10, time.Hour)

	token := s.Register("https://youtu.be/abc123")

	url, err := s.Resolve(token)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if url != "https://youtu.be/abc123" {
		t.Errorf("Resolve() = %q", url)
	}
}

func TestResolve_ConsumeOnce(t *testing.T) {
	s := newTestStore(10, time.Hour)

	token := s.Register("https://youtu.be/abc123")

	if _, err := s.Resolve(token); err != nil {
		t.Fatalf("first Resolve() error = %v", err)
	}
	if _, err := s.Resolve(token); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Resolve() error = %v, want ErrNotFound", err)
	}
}

func TestResolve_UnknownToken(t *testing.T) {
	s := newTestStore(10, time.Hour)

	if _, err := s.Resolve("1234567890"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve() error = %v, want ErrNotFound", err)
	}
}

func TestTokensStrictlyIncreasing(t *testing.T) {
	s := newTestStore(100, time.Hour)

	var prev int64
	for i := 0; i < 50; i++ {
		token := s.Register("https://youtu.be/video")
		ms, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			t.Fatalf("token %q is not numeric: %v", token, err)
		}
		if ms <= prev {
			t.Fatalf("token %d not greater than previous %d", ms, prev)
		}
		prev = ms
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	s := newTestStore(3, time.Hour)

	first := s.Register("https://youtu.be/first")
	s.Register("https://youtu.be/second")
	s.Register("https://youtu.be/third")
	s.Register("https://youtu.be/fourth")

	if got := s.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}
	if _, err := s.Resolve(first); !errors.Is(err, ErrNotFound) {
		t.Errorf("oldest entry still resolvable, err = %v", err)
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	s := newTestStore(10, 10*time.Millisecond)

	stale := s.Register("https://youtu.be/stale")
	time.Sleep(20 * time.Millisecond)
	fresh := s.Register("https://youtu.be/fresh")

	s.Sweep()

	if _, err := s.Resolve(stale); !errors.Is(err, ErrNotFound) {
		t.Errorf("stale entry survived sweep, err = %v", err)
	}
	if _, err := s.Resolve(fresh); err != nil {
		t.Errorf("fresh entry removed by sweep: %v", err)
	}
}
