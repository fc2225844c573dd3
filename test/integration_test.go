package test

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// verveBinary is the path to the compiled verve binary, set by TestMain.
var verveBinary string

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(0)
	}

	tmpDir, err := os.MkdirTemp("", "verve-integration-build-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "create temp dir: %v\n", err)
		os.Exit(1)
	}
	defer os.RemoveAll(tmpDir)

	verveBinary = filepath.Join(tmpDir, "verve")
	cmd := exec.Command("go", "build", "-o", verveBinary, "./cmd/verve")
	// Test working dir is test/, so go up one level to project root
	cmd.Dir = filepath.Join("..")
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "build verve binary: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

// --- Fixtures ---

// fixtureBank: two static problems for node "add-basics", both answered 5.
const fixtureBank = `node: add-basics
zone: Alpha
problems:
  - id: ab-1
    prompt: "What is 2 + 3?"
    answer: "5"
    difficulty: 1
    concepts: [addition]
  - id: ab-2
    prompt: "What is 1 + 4?"
    answer: "5"
    difficulty: 1
    concepts: [addition]
`

// fixtureStallTrace: a little pointer motion, then 25 seconds of silence.
const fixtureStallTrace = `{"t":0,"kind":"move","x":0,"y":0}
{"t":100,"kind":"move","x":5,"y":0}
# learner walks away
{"t":25100,"kind":"click"}
`

// fixtureRageTrace: six clicks inside half a second.
const fixtureRageTrace = `{"t":0,"kind":"click"}
{"t":100,"kind":"click"}
{"t":200,"kind":"click"}
{"t":300,"kind":"click"}
{"t":400,"kind":"click"}
{"t":500,"kind":"click"}
`

// --- Integration Test ---

func TestIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	home := t.TempDir()
	xdgConfigHome := t.TempDir()
	dataDir := filepath.Join(t.TempDir(), "verve")
	fixtureDir := t.TempDir()

	env := buildEnv(home, xdgConfigHome)
	bankDir := filepath.Join(dataDir, "bank")
	journalDir := filepath.Join(dataDir, "journal")

	t.Run("version", func(t *testing.T) {
		out := mustRunVerve(t, env, "version")
		assertContains(t, out, "verve v", "version output")
	})

	t.Run("init", func(t *testing.T) {
		out := mustRunVerve(t, env, "init", "--data-dir", dataDir)
		assertContains(t, out, "created:", "first init")

		cfgPath := filepath.Join(xdgConfigHome, "verve", "config.toml")
		if !fileExists(cfgPath) {
			t.Fatalf("config not written at %s", cfgPath)
		}
		assertContains(t, readFile(t, cfgPath), bankDir, "config bank dir")
		for _, dir := range []string{dataDir, bankDir, journalDir} {
			if !dirExists(dir) {
				t.Errorf("expected dir %s", dir)
			}
		}

		out = mustRunVerve(t, env, "init", "--data-dir", dataDir)
		assertContains(t, out, "unchanged:", "second init")
	})

	t.Run("check", func(t *testing.T) {
		out := mustRunVerve(t, env, "check")
		assertContains(t, out, "verve check", "check header")
		assertContains(t, out, "templates", "templates check")
		assertNotContains(t, out, "FAIL", "check result")
	})

	t.Run("next from templates", func(t *testing.T) {
		out := mustRunVerve(t, env, "next", "fractions-1", "--offline")
		spec := decodeSpec(t, out)
		if spec["provenance"] != "template" {
			t.Errorf("provenance = %v, want template", spec["provenance"])
		}
		if spec["zone"] != "Alpha" {
			t.Errorf("zone = %v, want default zone Alpha", spec["zone"])
		}
		if spec["prompt"] == "" || spec["answer_key"] == "" {
			t.Errorf("incomplete problem: %v", spec)
		}
	})

	writeFixture(t, bankDir, "add-basics.yaml", fixtureBank)

	t.Run("next from bank", func(t *testing.T) {
		out := mustRunVerve(t, env, "next", "add-basics", "--offline")
		spec := decodeSpec(t, out)
		if spec["provenance"] != "static" {
			t.Errorf("provenance = %v, want static", spec["provenance"])
		}
		if spec["node_id"] != "add-basics" {
			t.Errorf("node_id = %v", spec["node_id"])
		}
	})

	t.Run("practice", func(t *testing.T) {
		stdout, stderr, err := runVerveWithStdin(t, env, "5\n5\n", "practice", "add-basics", "--offline", "-n", "2")
		if err != nil {
			t.Fatalf("practice failed: %v\nstdout: %s\nstderr: %s", err, stdout, stderr)
		}
		assertContains(t, stdout, "What is", "problem prompt")
		assertContains(t, stdout, "correct (streak 2)", "second answer")
		assertContains(t, stdout, "2/2 correct", "practice summary")
		assertContains(t, stdout, "journal:", "journal path")

		entries, err := filepath.Glob(filepath.Join(journalDir, "*.jsonl.zst"))
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 {
			t.Errorf("journal files = %v, want 1", entries)
		}
		if !fileExists(filepath.Join(dataDir, "profile.db")) {
			t.Error("profile.db not created")
		}
	})

	t.Run("practice stops on q", func(t *testing.T) {
		out, _, err := runVerveWithStdin(t, env, "q\n", "practice", "add-basics", "--offline")
		if err != nil {
			t.Fatalf("practice: %v", err)
		}
		assertContains(t, out, "0/0 correct", "quit summary")
	})

	t.Run("stats", func(t *testing.T) {
		out := mustRunVerve(t, env, "stats")
		assertContains(t, out, "learner:   default", "stats learner")
		assertContains(t, out, "attempts:  2", "stats attempts")
		assertContains(t, out, "correct:   2 (100%)", "stats accuracy")
		assertContains(t, out, "static", "stats provenance")

		out = mustRunVerve(t, env, "stats", "--learner", "someone-else")
		assertContains(t, out, "attempts:  0", "other learner")
		assertContains(t, out, "VERVE level 5", "other learner defaults")
	})

	t.Run("next skips seen bank problems", func(t *testing.T) {
		out := mustRunVerve(t, env, "next", "add-basics", "--offline")
		spec := decodeSpec(t, out)
		if spec["provenance"] != "template" {
			t.Errorf("provenance = %v, want template once the bank is exhausted", spec["provenance"])
		}
		if spec["zone"] != "Alpha" {
			t.Errorf("zone = %v, want the bank's zone", spec["zone"])
		}
	})

	t.Run("replay stall", func(t *testing.T) {
		trace := writeFixture(t, fixtureDir, "stall.jsonl", fixtureStallTrace)
		out := mustRunVerve(t, env, "replay", trace, "--mode", "FORGE")
		assertContains(t, out, "mode FORGE level", "starting mode")
		assertContains(t, out, "stalled", "stall reading")
		assertContains(t, out, "FORGE -> VERVE", "protective downgrade")
		assertContains(t, out, "protective-downgrade", "transition reason")
		assertContains(t, out, "final: mode VERVE", "final mode")
	})

	t.Run("replay trailing stall", func(t *testing.T) {
		trace := writeFixture(t, fixtureDir, "tail.jsonl",
			`{"t":0,"kind":"key"}`+"\n"+`{"t":60000,"kind":"end"}`+"\n")
		out := mustRunVerve(t, env, "replay", trace, "--mode", "FORGE")
		assertContains(t, out, "stalled", "stall reading at the end of the trace")
		assertContains(t, out, "final: mode VERVE", "final mode")
	})

	t.Run("replay rage", func(t *testing.T) {
		trace := writeFixture(t, fixtureDir, "rage.jsonl", fixtureRageTrace)
		out := mustRunVerve(t, env, "replay", trace, "--mode", "AURA")
		assertContains(t, out, "raging", "rage reading")
		assertContains(t, out, "AURA -> VERVE", "protective downgrade")
	})

	t.Run("replay bad trace", func(t *testing.T) {
		trace := writeFixture(t, fixtureDir, "bad.jsonl", `{"t":0,"kind":"wave"}`+"\n")
		_, stderr, err := runVerve(t, env, "replay", trace)
		if err == nil {
			t.Fatal("expected error for unknown sample kind")
		}
		assertContains(t, stderr, "unknown sample kind", "replay error")
	})

	t.Run("man pages", func(t *testing.T) {
		manDir := filepath.Join(fixtureDir, "man")
		out := mustRunVerve(t, env, "man", manDir)
		assertContains(t, out, "wrote ", "man output")
		for _, name := range []string{"verve.1", "verve-practice.1", "verve-replay.1"} {
			if !fileExists(filepath.Join(manDir, name)) {
				t.Errorf("missing man page %s", name)
			}
		}
		assertNotContains(t, readFile(t, filepath.Join(manDir, "verve.1")), "verve\\-man", "hidden command")
	})

	t.Run("replay missing file", func(t *testing.T) {
		_, _, err := runVerve(t, env, "replay", filepath.Join(fixtureDir, "nope.jsonl"))
		if err == nil {
			t.Fatal("expected error for missing trace")
		}
	})
}

func TestCheckFailsOnMissingDefaultZone(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	xdgConfigHome := t.TempDir()
	env := buildEnv(t.TempDir(), xdgConfigHome)
	writeFixture(t, filepath.Join(xdgConfigHome, "verve"), "config.toml", fmt.Sprintf(`data_dir = %q

[content]
default_zone = "Omega"
`, t.TempDir()))

	stdout, _, err := runVerve(t, env, "check")
	if err == nil {
		t.Fatal("expected check to exit non-zero")
	}
	assertContains(t, stdout, "Omega", "failing check detail")

	_, stderr, err := runVerve(t, env, "next", "x", "--offline")
	if err == nil {
		t.Fatal("expected next to fail without templates for the default zone")
	}
	assertContains(t, stderr, "verve:", "error prefix")
}

func TestUnknownCommand(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	env := buildEnv(t.TempDir(), t.TempDir())
	if _, _, err := runVerve(t, env, "bogus"); err == nil {
		t.Fatal("expected unknown command to fail")
	}
}

// --- Helpers ---

func runVerve(t *testing.T, env []string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	return runVerveWithStdin(t, env, "", args...)
}

func mustRunVerve(t *testing.T, env []string, args ...string) string {
	t.Helper()
	stdout, stderr, err := runVerve(t, env, args...)
	if err != nil {
		t.Fatalf("verve %s failed: %v\nstdout: %s\nstderr: %s", strings.Join(args, " "), err, stdout, stderr)
	}
	return stdout
}

func runVerveWithStdin(t *testing.T, env []string, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := exec.Command(verveBinary, args...)
	cmd.Env = env
	cmd.Stdin = strings.NewReader(stdin)
	var outBuf, errBuf strings.Builder
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()
	return outBuf.String(), errBuf.String(), err
}

func writeFixture(t *testing.T, dir, filename, content string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", path, err)
	}
	return path
}

func buildEnv(home, xdgConfigHome string) []string {
	return []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + home,
		"XDG_CONFIG_HOME=" + xdgConfigHome,
	}
}

func decodeSpec(t *testing.T, out string) map[string]any {
	t.Helper()
	var spec map[string]any
	if err := json.Unmarshal([]byte(out), &spec); err != nil {
		t.Fatalf("next output is not JSON: %v\n%s", err, out)
	}
	return spec
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func assertContains(t *testing.T, s, substr, msg string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("%s: expected %q to contain %q", msg, s, substr)
	}
}

func assertNotContains(t *testing.T, s, substr, msg string) {
	t.Helper()
	if strings.Contains(s, substr) {
		t.Errorf("%s: expected %q to NOT contain %q", msg, s, substr)
	}
}
