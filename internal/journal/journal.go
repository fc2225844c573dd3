// Package journal records a session's graded answers, mode transitions and
// stress changes as zstd-compressed JSONL, one file per session.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/suykerbuyk/verve/internal/mode"
	"github.com/suykerbuyk/verve/internal/stress"
	"github.com/suykerbuyk/verve/internal/tutor"
)

const ext = ".jsonl.zst"

// Kind tags an entry.
type Kind string

const (
	KindOutcome Kind = "outcome"
	KindMode    Kind = "mode"
	KindStress  Kind = "stress"
)

// Entry is one journal line. Exactly one payload is set, matching Kind.
type Entry struct {
	Kind    Kind           `json:"kind"`
	At      time.Time      `json:"at"`
	Outcome *tutor.Outcome `json:"outcome,omitempty"`
	Mode    *ModeEntry     `json:"mode,omitempty"`
	Stress  *StressEntry   `json:"stress,omitempty"`
}

type ModeEntry struct {
	From      mode.Mode   `json:"from"`
	To        mode.Mode   `json:"to"`
	Level     mode.Level  `json:"level"`
	Reason    mode.Reason `json:"reason"`
	LevelDown bool        `json:"level_down,omitempty"`
}

type StressEntry struct {
	Level int      `json:"level"`
	Flags []string `json:"flags,omitempty"`
}

// Path returns the deterministic journal path for a session id.
func Path(dir, sessionID string) string {
	return filepath.Join(dir, sessionID+ext)
}

// Exists reports whether a journal exists for sessionID.
func Exists(dir, sessionID string) bool {
	_, err := os.Stat(Path(dir, sessionID))
	return err == nil
}

// List returns the session ids journaled in dir, sorted.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ext) {
			ids = append(ids, strings.TrimSuffix(e.Name(), ext))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Writer appends entries to one session journal. It is safe for concurrent
// use; write errors are sticky and reported by Close.
type Writer struct {
	mu      sync.Mutex
	file    *os.File
	encoder *zstd.Encoder
	path    string
	count   int
	err     error
	now     func() time.Time
}

// Create starts a new journal for sessionID in dir.
func Create(dir, sessionID string) (*Writer, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("journal needs a session id")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	path := Path(dir, sessionID)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create journal: %w", err)
	}

	encoder, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	return &Writer{file: f, encoder: encoder, path: path, now: time.Now}, nil
}

// Path is the file being written.
func (w *Writer) Path() string { return w.path }

// Count is the number of entries written.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Write appends e. A zero At is stamped with the current time.
func (w *Writer) Write(e Entry) error {
	if e.At.IsZero() {
		e.At = w.now()
	}
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	if w.encoder == nil {
		return fmt.Errorf("journal %s is closed", w.path)
	}
	if _, err := w.encoder.Write(line); err != nil {
		w.err = fmt.Errorf("compress: %w", err)
		return w.err
	}
	w.count++
	return nil
}

// Close flushes and closes the journal.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.encoder == nil {
		return w.err
	}

	err := w.encoder.Close()
	w.encoder = nil
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	if w.err != nil {
		return w.err
	}
	if err != nil {
		return fmt.Errorf("finalize journal: %w", err)
	}
	return nil
}

// Read decodes every entry in the journal at path.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	decoder, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer decoder.Close()

	return decode(decoder)
}

func decode(r io.Reader) ([]Entry, error) {
	var out []Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(strings.TrimSpace(scanner.Text())) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return out, fmt.Errorf("journal line %d: %w", line, err)
		}
		out = append(out, e)
	}
	if err := scanner.Err(); err != nil {
		return out, fmt.Errorf("decompress: %w", err)
	}
	return out, nil
}

// Attach journals s's outcomes, transitions and stress changes into w until
// the returned function is called.
func Attach(s *tutor.Session, w *Writer) (detach func()) {
	cancels := []func(){
		s.OnOutcome(func(o tutor.Outcome) {
			w.Write(Entry{Kind: KindOutcome, At: o.At, Outcome: &o})
		}),
		s.OnTransition(func(ch mode.Change) {
			if !ch.ModeChanged() && ch.From.Level == ch.To.Level {
				return
			}
			w.Write(Entry{Kind: KindMode, Mode: &ModeEntry{
				From:      ch.From.Mode,
				To:        ch.To.Mode,
				Level:     ch.To.Level,
				Reason:    ch.Reason,
				LevelDown: ch.LevelDown,
			}})
		}),
		s.OnStressChange(func(r stress.Reading) {
			w.Write(Entry{Kind: KindStress, At: r.ComputedAt, Stress: &StressEntry{
				Level: r.Level,
				Flags: r.Flags(),
			}})
		}),
	}
	return func() {
		for _, c := range cancels {
			c()
		}
	}
}
