// Package manpage renders roff man pages from a cobra command tree.
package manpage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Page is one rendered man page.
type Page struct {
	Name    string // e.g. "verve-practice"
	Content string
}

// Name returns the man page name: the command path joined with hyphens.
func Name(cmd *cobra.Command) string {
	return strings.ReplaceAll(cmd.CommandPath(), " ", "-")
}

// Render renders cmd as a section 1 man page. If date is empty, today's date
// is used (pass a fixed date for reproducible builds).
func Render(cmd *cobra.Command, date, version string) string {
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	root := cmd.Root().Name()
	var b strings.Builder

	fmt.Fprintf(&b, ".TH %s 1 %q %q %q\n",
		strings.ToUpper(Name(cmd)), date, root+" "+version, manual(root))

	b.WriteString(".SH NAME\n")
	fmt.Fprintf(&b, "%s \\- %s\n", escapeRoff(Name(cmd)), escapeRoff(cmd.Short))

	b.WriteString(".SH SYNOPSIS\n")
	b.WriteString(".B " + escapeRoff(cmd.UseLine()) + "\n")

	if cmd.Long != "" {
		b.WriteString(".SH DESCRIPTION\n")
		writeRoffParagraphs(&b, cmd.Long)
	}

	if flags := visibleFlags(cmd.NonInheritedFlags()); len(flags) > 0 {
		b.WriteString(".SH OPTIONS\n")
		writeFlags(&b, flags)
	}
	if flags := visibleFlags(cmd.InheritedFlags()); len(flags) > 0 {
		b.WriteString(".SH GLOBAL OPTIONS\n")
		writeFlags(&b, flags)
	}

	if subs := subcommands(cmd); len(subs) > 0 {
		b.WriteString(".SH COMMANDS\n")
		for _, s := range subs {
			fmt.Fprintf(&b, ".TP\n.B \"%s\"\n%s\n", escapeRoff(s.UseLine()), escapeRoff(s.Short))
		}
	}

	if cmd.Example != "" {
		b.WriteString(".SH EXAMPLES\n")
		b.WriteString(".nf\n")
		for _, line := range strings.Split(strings.TrimRight(cmd.Example, "\n"), "\n") {
			b.WriteString(escapeRoff(strings.TrimSpace(line)) + "\n")
		}
		b.WriteString(".fi\n")
	}

	var refs []string
	if cmd.HasParent() {
		refs = append(refs, formatManRef(Name(cmd.Parent())+"(1)"))
	}
	for _, s := range subcommands(cmd) {
		refs = append(refs, formatManRef(Name(s)+"(1)"))
	}
	if len(refs) > 0 {
		b.WriteString(".SH SEE ALSO\n")
		b.WriteString(strings.Join(refs, ",\n") + "\n")
	}

	return b.String()
}

// RenderAll renders root and every available command beneath it.
func RenderAll(root *cobra.Command, date, version string) []Page {
	var pages []Page
	var walk func(*cobra.Command)
	walk = func(c *cobra.Command) {
		pages = append(pages, Page{Name: Name(c), Content: Render(c, date, version)})
		for _, s := range subcommands(c) {
			walk(s)
		}
	}
	walk(root)
	return pages
}

// WriteDir writes every page of root's tree into dir as NAME.1 and returns
// the paths written.
func WriteDir(root *cobra.Command, dir, date, version string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create man dir: %w", err)
	}
	var paths []string
	for _, p := range RenderAll(root, date, version) {
		path := filepath.Join(dir, p.Name+".1")
		if err := os.WriteFile(path, []byte(p.Content), 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func manual(root string) string {
	if root == "" {
		return "Manual"
	}
	return strings.ToUpper(root[:1]) + root[1:] + " Manual"
}

// subcommands lists the children a user can run, skipping hidden ones and
// cobra's generated help.
func subcommands(cmd *cobra.Command) []*cobra.Command {
	var out []*cobra.Command
	for _, c := range cmd.Commands() {
		if !c.IsAvailableCommand() || c.IsAdditionalHelpTopicCommand() {
			continue
		}
		out = append(out, c)
	}
	return out
}

func visibleFlags(fs *pflag.FlagSet) []*pflag.Flag {
	var out []*pflag.Flag
	fs.VisitAll(func(f *pflag.Flag) {
		if !f.Hidden && f.Name != "help" {
			out = append(out, f)
		}
	})
	return out
}

func writeFlags(b *strings.Builder, flags []*pflag.Flag) {
	for _, f := range flags {
		name := "--" + f.Name
		if f.Shorthand != "" {
			name = "-" + f.Shorthand + ", " + name
		}
		if f.Value.Type() != "bool" {
			name += " " + f.Value.Type()
		}
		desc := f.Usage
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" {
			desc += fmt.Sprintf(" (default %s)", f.DefValue)
		}
		fmt.Fprintf(b, ".TP\n.B %s\n%s\n", escapeRoff(name), escapeRoff(desc))
	}
}

// escapeRoff escapes characters that have special meaning in roff:
//   - backslashes → \\
//   - leading dots → \&.
//   - bare hyphens → \-  (for proper rendering of dashes)
func escapeRoff(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "\n.", "\n\\&.")
	if strings.HasPrefix(s, ".") {
		s = "\\&" + s
	}
	s = strings.ReplaceAll(s, "-", "\\-")
	return s
}

// writeRoffParagraphs writes multi-line text as roff paragraphs. Blank lines
// become .PP breaks; indented lines are kept verbatim in a no-fill block.
func writeRoffParagraphs(b *strings.Builder, text string) {
	prevBlank := false
	inBlock := false
	for _, line := range strings.Split(text, "\n") {
		indented := strings.HasPrefix(line, "  ")
		if inBlock && !indented {
			b.WriteString(".fi\n")
			inBlock = false
		}
		if strings.TrimSpace(line) == "" {
			if !prevBlank {
				b.WriteString(".PP\n")
			}
			prevBlank = true
			continue
		}
		prevBlank = false
		if indented && !inBlock {
			b.WriteString(".nf\n")
			inBlock = true
		}
		b.WriteString(escapeRoff(strings.TrimSpace(line)) + "\n")
	}
	if inBlock {
		b.WriteString(".fi\n")
	}
}

// formatManRef formats a "name(section)" reference with bold name.
func formatManRef(ref string) string {
	if i := strings.Index(ref, "("); i >= 0 {
		return fmt.Sprintf(".BR %s %s", escapeRoff(ref[:i]), ref[i:])
	}
	return ".B " + escapeRoff(ref)
}
