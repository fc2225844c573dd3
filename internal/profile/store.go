// Package profile persists learner state between sessions in SQLite: the
// current mode and support level, and the history of graded answers.
// Sessions are hydrated from it and write back through subscriptions.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/suykerbuyk/verve/internal/mode"
	"github.com/suykerbuyk/verve/internal/problem"
	"github.com/suykerbuyk/verve/internal/tutor"
)

// DefaultLearner is used when no learner id is given.
const DefaultLearner = "default"

// Store is a learner profile database.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the profile database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open profile db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS learners (
		id TEXT PRIMARY KEY,
		level INTEGER NOT NULL,
		mode TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS completions (
		id TEXT PRIMARY KEY,
		learner_id TEXT NOT NULL,
		problem_id TEXT NOT NULL,
		node_id TEXT NOT NULL DEFAULT '',
		zone TEXT NOT NULL DEFAULT '',
		provenance TEXT NOT NULL,
		correct INTEGER NOT NULL,
		difficulty INTEGER NOT NULL,
		answered_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_completions_learner ON completions(learner_id, answered_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load returns the learner's saved state. Unknown learners get the zero
// Initial, which a session treats as VERVE at maximal support.
func (s *Store) Load(ctx context.Context, learner string) (tutor.Initial, error) {
	var m string
	var level int
	err := s.db.QueryRowContext(ctx,
		`SELECT mode, level FROM learners WHERE id = ?`, learner).Scan(&m, &level)
	if errors.Is(err, sql.ErrNoRows) {
		return tutor.Initial{}, nil
	}
	if err != nil {
		return tutor.Initial{}, fmt.Errorf("load learner %s: %w", learner, err)
	}

	parsed, err := mode.ParseMode(m)
	if err != nil {
		parsed = mode.Verve
	}
	return tutor.Initial{Mode: parsed, Level: mode.ClampLevel(level)}, nil
}

// SaveState upserts the learner's mode and support level.
func (s *Store) SaveState(ctx context.Context, learner string, m mode.Mode, level mode.Level) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO learners (id, level, mode, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET level = excluded.level, mode = excluded.mode, updated_at = excluded.updated_at`,
		learner, int(level), string(m), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save learner %s: %w", learner, err)
	}
	return nil
}

// RecordOutcome appends a graded answer to the learner's history.
func (s *Store) RecordOutcome(ctx context.Context, learner string, o tutor.Outcome) error {
	at := o.At
	if at.IsZero() {
		at = time.Now()
	}
	correct := 0
	if o.Correct {
		correct = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO completions (id, learner_id, problem_id, node_id, zone, provenance, correct, difficulty, answered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), learner, o.ProblemID, o.NodeID, o.Zone, string(o.Provenance), correct, o.Difficulty, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// SeenStatic returns the bank problems the learner has answered, by node.
func (s *Store) SeenStatic(ctx context.Context, learner string) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT node_id, problem_id FROM completions
		WHERE learner_id = ? AND provenance = ? AND node_id != ''`,
		learner, string(problem.ProvenanceStatic))
	if err != nil {
		return nil, fmt.Errorf("query seen: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var node, id string
		if err := rows.Scan(&node, &id); err != nil {
			return nil, fmt.Errorf("scan seen: %w", err)
		}
		out[node] = append(out[node], id)
	}
	return out, rows.Err()
}

// Summary aggregates a learner's history.
type Summary struct {
	Learner      string
	Mode         mode.Mode
	Level        mode.Level
	Attempts     int
	Correct      int
	ByProvenance map[problem.Provenance]int
	LastAnswered time.Time
}

// Accuracy is the fraction of attempts answered correctly.
func (s Summary) Accuracy() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Attempts)
}

// Summary reports the learner's totals.
func (s *Store) Summary(ctx context.Context, learner string) (Summary, error) {
	init, err := s.Load(ctx, learner)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{
		Learner:      learner,
		Mode:         init.Mode,
		Level:        init.Level,
		ByProvenance: make(map[problem.Provenance]int),
	}
	if sum.Mode == "" {
		sum.Mode = mode.Verve
	}
	if sum.Level == 0 {
		sum.Level = mode.MaxLevel
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT provenance, COUNT(*), SUM(correct), MAX(answered_at)
		FROM completions WHERE learner_id = ? GROUP BY provenance`, learner)
	if err != nil {
		return Summary{}, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	var last int64
	for rows.Next() {
		var prov string
		var count, correct int
		var at int64
		if err := rows.Scan(&prov, &count, &correct, &at); err != nil {
			return Summary{}, fmt.Errorf("scan summary: %w", err)
		}
		sum.ByProvenance[problem.Provenance(prov)] = count
		sum.Attempts += count
		sum.Correct += correct
		if at > last {
			last = at
		}
	}
	if err := rows.Err(); err != nil {
		return Summary{}, err
	}
	if last > 0 {
		sum.LastAnswered = time.UnixMilli(last)
	}
	return sum, nil
}

// Attach persists s's state changes and outcomes for learner until the
// returned function is called. Write failures are logged, not returned.
func (s *Store) Attach(sess *tutor.Session, learner string, log *zap.Logger) (detach func()) {
	if log == nil {
		log = zap.NewNop()
	}
	ctx := context.Background()

	cancels := []func(){
		sess.OnTransition(func(ch mode.Change) {
			if !ch.ModeChanged() && ch.From.Level == ch.To.Level {
				return
			}
			if err := s.SaveState(ctx, learner, ch.To.Mode, ch.To.Level); err != nil {
				log.Warn("persist learner state", zap.String("learner", learner), zap.Error(err))
			}
		}),
		sess.OnOutcome(func(o tutor.Outcome) {
			if err := s.RecordOutcome(ctx, learner, o); err != nil {
				log.Warn("persist outcome", zap.String("learner", learner), zap.Error(err))
			}
		}),
	}
	return func() {
		for _, c := range cancels {
			c()
		}
	}
}
