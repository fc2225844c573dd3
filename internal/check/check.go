package check

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/suykerbuyk/verve/internal/bank"
	"github.com/suykerbuyk/verve/internal/config"
	"github.com/suykerbuyk/verve/internal/journal"
	"github.com/suykerbuyk/verve/internal/logging"
	"github.com/suykerbuyk/verve/internal/profile"
	"github.com/suykerbuyk/verve/internal/template"
)

// Status represents the outcome of a single check.
type Status int

const (
	Pass Status = iota
	Warn
	Fail
)

func (s Status) String() string {
	switch s {
	case Pass:
		return "pass"
	case Warn:
		return "warn"
	case Fail:
		return "FAIL"
	default:
		return "unknown"
	}
}

// Result holds the outcome of a single check.
type Result struct {
	Name   string
	Status Status
	Detail string
}

// Report aggregates all check results.
type Report struct {
	Results []Result
}

// HasFailures returns true if any result has Fail status.
func (r Report) HasFailures() bool {
	for _, res := range r.Results {
		if res.Status == Fail {
			return true
		}
	}
	return false
}

// Format returns the human-readable report string.
func (r Report) Format() string {
	if len(r.Results) == 0 {
		return "verve check\n\n  no checks ran\n"
	}

	maxName := 0
	for _, res := range r.Results {
		if len(res.Name) > maxName {
			maxName = len(res.Name)
		}
	}

	var b strings.Builder
	b.WriteString("verve check\n\n")

	var passed, warnings, failures int
	for _, res := range r.Results {
		switch res.Status {
		case Pass:
			passed++
		case Warn:
			warnings++
		case Fail:
			failures++
		}
		fmt.Fprintf(&b, "  %-4s  %-*s  %s\n", res.Status, maxName, res.Name, res.Detail)
	}

	fmt.Fprintf(&b, "\n%d passed, %d warning, %d failure\n", passed, warnings, failures)
	return b.String()
}

// CheckConfig reports the resolved config path. Always passes; broken TOML
// fails config loading before we get here.
func CheckConfig() Result {
	return Result{
		Name:   "config",
		Status: Pass,
		Detail: config.CompressHome(config.Path()),
	}
}

// CheckDataDir checks whether the data directory exists.
func CheckDataDir(path string) Result {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return Result{Name: "data", Status: Pass, Detail: config.CompressHome(path)}
	}
	return Result{Name: "data", Status: Warn, Detail: config.CompressHome(path) + " not found (run verve init)"}
}

// CheckStress warns about thresholds that will fall back to defaults.
func CheckStress(s config.StressConfig) Result {
	var defaulted []string
	if s.RageThreshold <= 0 {
		defaulted = append(defaulted, "rage_threshold")
	}
	if s.StallMillis <= 0 {
		defaulted = append(defaulted, "stall_ms")
	}
	if s.JitterPixels <= 0 {
		defaulted = append(defaulted, "jitter_px")
	}
	if s.ReversalRatio <= 0 {
		defaulted = append(defaulted, "reversal_ratio")
	}
	if s.ClickSpanMillis <= 0 {
		defaulted = append(defaulted, "click_span_ms")
	}
	if len(defaulted) > 0 {
		return Result{Name: "stress", Status: Warn, Detail: "using defaults for " + strings.Join(defaulted, ", ")}
	}
	return Result{Name: "stress", Status: Pass, Detail: fmt.Sprintf("rage %.1f/s, stall %dms, jitter %.0fpx, reversal %.2f",
		s.RageThreshold, s.StallMillis, s.JitterPixels, s.ReversalRatio)}
}

// CheckBank loads the bank directory and reports what it holds.
func CheckBank(dir string) Result {
	if _, err := os.Stat(dir); err != nil {
		return Result{Name: "bank", Status: Warn, Detail: config.CompressHome(dir) + " not found (templates only)"}
	}
	b := bank.New()
	err := b.LoadDir(dir)
	nodes := len(b.Nodes())
	if err != nil {
		return Result{Name: "bank", Status: Warn, Detail: fmt.Sprintf("%d nodes, %v", nodes, err)}
	}
	return Result{Name: "bank", Status: Pass, Detail: fmt.Sprintf("%s (%d nodes)", config.CompressHome(dir), nodes)}
}

// CheckTemplates fails when the default zone has no template, since
// generation could then come back empty-handed.
func CheckTemplates(defaultZone string) Result {
	reg, err := template.NewBuiltin(defaultZone)
	if err != nil {
		return Result{Name: "templates", Status: Fail, Detail: err.Error()}
	}
	return Result{Name: "templates", Status: Pass, Detail: fmt.Sprintf("%d zones, default %s", len(reg.Zones()), defaultZone)}
}

// CheckForge checks remote generation settings.
func CheckForge(f config.ForgeConfig) Result {
	if !f.Enabled {
		return Result{Name: "forge", Status: Pass, Detail: "disabled"}
	}
	switch strings.ToLower(f.Provider) {
	case "", "openai", "gemini":
	default:
		return Result{Name: "forge", Status: Fail, Detail: fmt.Sprintf("unknown provider %q", f.Provider)}
	}
	keyEnv := f.APIKeyEnv
	if keyEnv == "" {
		return Result{Name: "forge", Status: Warn, Detail: "api_key_env not set"}
	}
	if f.APIKey() == "" {
		return Result{Name: "forge", Status: Warn, Detail: keyEnv + " not set (templates only)"}
	}
	return Result{Name: "forge", Status: Pass, Detail: fmt.Sprintf("%s %s, %s set", f.Provider, f.Model, keyEnv)}
}

// CheckProfile opens the profile database when it exists.
func CheckProfile(path string) Result {
	if _, err := os.Stat(path); err != nil {
		return Result{Name: "profile", Status: Warn, Detail: config.CompressHome(path) + " not created yet"}
	}
	store, err := profile.Open(path)
	if err != nil {
		return Result{Name: "profile", Status: Fail, Detail: err.Error()}
	}
	defer store.Close()

	sum, err := store.Summary(context.Background(), profile.DefaultLearner)
	if err != nil {
		return Result{Name: "profile", Status: Fail, Detail: err.Error()}
	}
	return Result{Name: "profile", Status: Pass, Detail: fmt.Sprintf("%s (%d answers)", config.CompressHome(path), sum.Attempts)}
}

// CheckJournal reports the journal directory.
func CheckJournal(j config.JournalConfig) Result {
	if !j.Enabled {
		return Result{Name: "journal", Status: Pass, Detail: "disabled"}
	}
	ids, err := journal.List(j.Dir)
	if err != nil {
		return Result{Name: "journal", Status: Warn, Detail: config.CompressHome(j.Dir) + " not found yet"}
	}
	return Result{Name: "journal", Status: Pass, Detail: fmt.Sprintf("%s (%d sessions)", config.CompressHome(j.Dir), len(ids))}
}

// CheckLog validates the log settings.
func CheckLog(l config.LogConfig) Result {
	if _, err := logging.ParseLevel(l.Level); err != nil {
		return Result{Name: "log", Status: Fail, Detail: err.Error()}
	}
	switch strings.ToLower(l.Format) {
	case "", "json", "console":
	default:
		return Result{Name: "log", Status: Fail, Detail: fmt.Sprintf("unknown format %q", l.Format)}
	}
	return Result{Name: "log", Status: Pass, Detail: fmt.Sprintf("%s, %s", l.Level, l.Format)}
}

// Run executes all checks against the given config and returns a report.
func Run(cfg config.Config) Report {
	var results []Result

	results = append(results, CheckConfig())
	results = append(results, CheckDataDir(cfg.DataDir))
	results = append(results, CheckStress(cfg.Stress))
	results = append(results, CheckBank(cfg.Bank.Dir))
	results = append(results, CheckTemplates(cfg.Content.DefaultZone))
	results = append(results, CheckForge(cfg.Forge))
	results = append(results, CheckProfile(cfg.Profile.Path))
	results = append(results, CheckJournal(cfg.Journal))
	results = append(results, CheckLog(cfg.Log))

	return Report{Results: results}
}
