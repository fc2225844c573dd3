package stress

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/suykerbuyk/verve/internal/signal"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func newTestEngine(t *testing.T) (*Engine, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: t0}
	e := NewEngine(DefaultThresholds(), WithClock(clk.Now), WithoutWatchdog())
	t.Cleanup(e.Close)
	return e, clk
}

func TestEngine_ZeroThresholdsUseDefaults(t *testing.T) {
	e := NewEngine(Thresholds{}, WithoutWatchdog())
	defer e.Close()

	if e.Thresholds() != DefaultThresholds() {
		t.Errorf("Thresholds = %+v, want defaults", e.Thresholds())
	}
}

func TestEngine_IngestClassifies(t *testing.T) {
	e, _ := newTestEngine(t)

	var last Reading
	for _, off := range []int{0, 5, 8, 11} {
		last = e.Ingest(signal.Sample{At: ms(off), Kind: signal.KindClick})
	}

	if !last.Raging || last.Level < 40 {
		t.Errorf("expected raging reading, got %+v", last)
	}
	if e.Latest().Seq != last.Seq {
		t.Errorf("Latest().Seq = %d, want %d", e.Latest().Seq, last.Seq)
	}
}

func TestEngine_ZeroSampleTimeUsesClock(t *testing.T) {
	e, clk := newTestEngine(t)
	clk.Set(ms(700))

	e.Ingest(signal.Sample{Kind: signal.KindKey})

	if got := e.Window().LastActivity; !got.Equal(ms(700)) {
		t.Errorf("LastActivity = %v, want %v", got, ms(700))
	}
}

func TestEngine_SeqIncreases(t *testing.T) {
	e, _ := newTestEngine(t)
	a := e.Ingest(signal.Sample{At: ms(1), Kind: signal.KindKey})
	b := e.TickAt(ms(2))
	c := e.Ingest(signal.Sample{At: ms(3), Kind: signal.KindMove})

	if !(a.Seq < b.Seq && b.Seq < c.Seq) {
		t.Errorf("seqs not increasing: %d %d %d", a.Seq, b.Seq, c.Seq)
	}
}

func TestEngine_StaleReadingNeverDelivered(t *testing.T) {
	e, _ := newTestEngine(t)

	var got []uint64
	e.Subscribe(func(r Reading) { got = append(got, r.Seq) })

	e.TickAt(ms(1))
	newer := e.TickAt(ms(2))

	// A reading computed earlier but published late must be dropped.
	e.hub.Publish(Reading{Seq: newer.Seq - 1})

	if len(got) != 2 || got[1] != newer.Seq {
		t.Errorf("delivered seqs = %v, want [%d %d]", got, newer.Seq-1, newer.Seq)
	}
}

func TestEngine_TickDetectsStallWithoutInput(t *testing.T) {
	e, clk := newTestEngine(t)
	e.Ingest(signal.Sample{At: ms(0), Kind: signal.KindKey})

	clk.Set(ms(25000))
	r := e.Tick()

	if !r.Stalled || r.Level != weightStalled {
		t.Errorf("expected stalled reading with level %d, got %+v", weightStalled, r)
	}
}

func TestEngine_Watchdog(t *testing.T) {
	th := DefaultThresholds()
	th.Stall = 100 * time.Millisecond
	e := NewEngine(th)
	defer e.Close()

	stalled := make(chan Reading, 16)
	e.Subscribe(func(r Reading) {
		if r.Stalled {
			stalled <- r
		}
	})

	// Steady activity keeps re-arming the single timer.
	for i := 0; i < 5; i++ {
		e.Ingest(signal.Sample{Kind: signal.KindKey})
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case r := <-stalled:
		if r.Inactive <= th.Stall {
			t.Errorf("Inactive = %v, want > %v", r.Inactive, th.Stall)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog never fired")
	}

	time.Sleep(300 * time.Millisecond)
	if n := len(stalled); n != 0 {
		t.Errorf("got %d extra stalled readings, want a single watchdog firing", n)
	}
}

func TestEngine_CloseStopsWatchdog(t *testing.T) {
	th := DefaultThresholds()
	th.Stall = 20 * time.Millisecond
	e := NewEngine(th)

	fired := make(chan struct{}, 1)
	e.Subscribe(func(Reading) {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	e.Close()

	select {
	case <-fired:
		t.Error("watchdog fired after Close")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEngine_Run(t *testing.T) {
	e, _ := newTestEngine(t)
	trace := `{"t":0,"kind":"click"}
{"t":5,"kind":"click"}
{"t":8,"kind":"click"}
{"t":11,"kind":"click"}`

	if err := e.Run(context.Background(), signal.NewReplaySource(strings.NewReader(trace), t0)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !e.Latest().Raging {
		t.Errorf("expected raging after burst, got %+v", e.Latest())
	}
}

func TestEngine_RunPropagatesSourceErrors(t *testing.T) {
	e, _ := newTestEngine(t)
	err := e.Run(context.Background(), signal.NewReplaySource(strings.NewReader(`{"t":0,"kind":"nope"}`), t0))
	if err == nil || !strings.Contains(err.Error(), "read sample") {
		t.Errorf("err = %v, want wrapped read error", err)
	}
}

func TestEngine_ReplayInsertsStallTick(t *testing.T) {
	e, _ := newTestEngine(t)

	var readings []Reading
	e.Subscribe(func(r Reading) { readings = append(readings, r) })

	trace := `{"t":0,"kind":"key"}
{"t":25000,"kind":"key"}`
	if err := e.Replay(context.Background(), signal.NewReplaySource(strings.NewReader(trace), t0)); err != nil {
		t.Fatalf("Replay: %v", err)
	}

	if len(readings) != 3 {
		t.Fatalf("readings = %d, want 3 (key, stall tick, key)", len(readings))
	}
	if !readings[1].Stalled {
		t.Errorf("inserted tick should be stalled: %+v", readings[1])
	}
	if readings[2].Stalled {
		t.Errorf("activity after the gap should clear the stall: %+v", readings[2])
	}
}

func TestEngine_ReplayTrailingGap(t *testing.T) {
	tests := []struct {
		name        string
		trace       string
		wantStalled bool
	}{
		{"end marker after long gap", "{\"t\":0,\"kind\":\"key\"}\n{\"t\":90000,\"kind\":\"end\"}", true},
		{"end marker inside threshold", "{\"t\":0,\"kind\":\"key\"}\n{\"t\":1000,\"kind\":\"end\"}", false},
		{"no end marker", `{"t":0,"kind":"key"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t)
			src := signal.NewReplaySource(strings.NewReader(tt.trace), t0)
			if err := e.Replay(context.Background(), src); err != nil {
				t.Fatalf("Replay: %v", err)
			}
			if got := e.Latest().Stalled; got != tt.wantStalled {
				t.Errorf("Stalled = %v, want %v (%+v)", got, tt.wantStalled, e.Latest())
			}
		})
	}
}

func TestEngine_OutOfOrderClicksAreNotRage(t *testing.T) {
	e, _ := newTestEngine(t)

	e.Ingest(signal.Sample{At: ms(1000), Kind: signal.KindClick})
	r := e.Ingest(signal.Sample{At: ms(500), Kind: signal.KindClick})

	if r.Raging || r.Level != 0 {
		t.Errorf("two clicks 500ms apart read as %+v, want calm", r)
	}
}
