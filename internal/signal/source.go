package signal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Source yields host samples. Next returns io.EOF when the stream ends.
type Source interface {
	Next(ctx context.Context) (Sample, error)
}

// Bounded is implemented by sources that know when the recording stopped,
// which may be later than their last sample.
type Bounded interface {
	End() (time.Time, bool)
}

// ChanSource adapts a host-fed channel. Closing the channel ends the stream.
type ChanSource <-chan Sample

// Next blocks until a sample arrives, the channel closes or ctx is done.
func (c ChanSource) Next(ctx context.Context) (Sample, error) {
	select {
	case <-ctx.Done():
		return Sample{}, ctx.Err()
	case s, ok := <-c:
		if !ok {
			return Sample{}, io.EOF
		}
		return s, nil
	}
}

// traceEnd marks when a recording stopped: {"t":90000,"kind":"end"}. It
// must be the last line of a trace.
const traceEnd = "end"

// traceLine is one line of a JSONL telemetry trace.
type traceLine struct {
	T      int64   `json:"t"` // milliseconds since trace start
	Kind   string  `json:"kind"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	Hidden bool    `json:"hidden,omitempty"`
}

// ReplaySource reads a JSONL telemetry trace, e.g.
//
//	{"t":0,"kind":"move","x":10,"y":20}
//	{"t":120,"kind":"click"}
//	{"t":900,"kind":"visibility","hidden":true}
//
// Offsets are applied to Base and must not decrease. Blank lines and lines
// starting with # are skipped. An optional last line {"t":N,"kind":"end"}
// records when the recording stopped; see End.
type ReplaySource struct {
	Base time.Time

	scanner *bufio.Scanner
	lineNum int
	lastT   int64
	ended   bool
}

// End reports when the recording stopped, once an end marker has been read.
func (s *ReplaySource) End() (time.Time, bool) {
	if !s.ended {
		return time.Time{}, false
	}
	return s.Base.Add(time.Duration(s.lastT) * time.Millisecond), true
}

// NewReplaySource reads a trace from r, anchoring offsets at base.
func NewReplaySource(r io.Reader, base time.Time) *ReplaySource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &ReplaySource{Base: base, scanner: scanner}
}

// Next returns the next sample in the trace.
func (s *ReplaySource) Next(ctx context.Context) (Sample, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Sample{}, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return Sample{}, fmt.Errorf("scan trace: %w", err)
			}
			return Sample{}, io.EOF
		}
		s.lineNum++

		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var tl traceLine
		if err := json.Unmarshal([]byte(line), &tl); err != nil {
			return Sample{}, fmt.Errorf("trace line %d: %w", s.lineNum, err)
		}
		if s.ended {
			return Sample{}, fmt.Errorf("trace line %d: sample after end marker", s.lineNum)
		}
		if tl.T < s.lastT {
			return Sample{}, fmt.Errorf("trace line %d: time %dms goes backwards (previous %dms)", s.lineNum, tl.T, s.lastT)
		}
		if tl.Kind == traceEnd {
			s.lastT = tl.T
			s.ended = true
			continue
		}
		kind, err := ParseKind(tl.Kind)
		if err != nil {
			return Sample{}, fmt.Errorf("trace line %d: %w", s.lineNum, err)
		}
		s.lastT = tl.T

		return Sample{
			At:     s.Base.Add(time.Duration(tl.T) * time.Millisecond),
			Kind:   kind,
			X:      tl.X,
			Y:      tl.Y,
			Hidden: tl.Hidden,
		}, nil
	}
}
