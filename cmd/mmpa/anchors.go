package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/huh"
	"github.com/germanamz/mmpa/pkg/anchors"
	"github.com/germanamz/mmpa/pkg/engine"
	"github.com/germanamz/mmpa/pkg/paramtree"
	"github.com/mattn/go-runewidth"
	"github.com/pmezard/go-difflib/difflib"
)

const anchorsUsage = `Usage: mmpa anchors <list|export|import|diff|clear> [flags] [args]

  list                 Show every anchor
  export [id]          Write one anchor, or all of them, as JSON
  import <file>...     Import anchors from JSON files (one anchor or an array)
  diff <id> <id>       Show a unified diff of two anchors' trees
  clear                Delete every anchor
`

func runAnchors(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, anchorsUsage)
		return errors.New("missing anchors subcommand")
	}

	sub, args := args[0], args[1:]
	fs, cf := newFlagSet("anchors "+sub, "Manage anchors.")
	plain := fs.Bool("plain", false, "list: print markdown without terminal rendering")
	tag := fs.String("tag", "", "list: only anchors carrying this tag")
	out := fs.String("o", "", "export: write to this file instead of stdout")
	yes := fs.Bool("yes", false, "clear: skip the confirmation prompt")
	_ = fs.Parse(args)

	eng, _, err := openEngine(context.Background(), cf, os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	store := eng.Anchors()
	switch sub {
	case "list":
		list := store.List()
		if *tag != "" {
			list = slices.DeleteFunc(list, func(a anchors.Anchor) bool { return !slices.Contains(a.Tags, *tag) })
		}
		return printMarkdown(os.Stdout, anchorsMarkdown(list), *plain)

	case "export":
		var data []byte
		if fs.NArg() > 0 {
			var found bool
			if data, found = store.ExportOne(fs.Arg(0)); !found {
				return fmt.Errorf("anchor not found: %s", fs.Arg(0))
			}
		} else if data, err = store.ExportAll(); err != nil {
			return err
		}
		return writeOutput(*out, data)

	case "import":
		if fs.NArg() == 0 {
			return errors.New("import: no files given")
		}
		return importFiles(fs.Args(), "anchor", func(doc []byte) (string, bool) {
			a, imported := store.ImportOne(doc)
			return a.Name, imported
		})

	case "diff":
		if fs.NArg() != 2 {
			return errors.New("diff: need two anchor ids")
		}
		a, found := store.Get(fs.Arg(0))
		if !found {
			return fmt.Errorf("anchor not found: %s", fs.Arg(0))
		}
		b, found := store.Get(fs.Arg(1))
		if !found {
			return fmt.Errorf("anchor not found: %s", fs.Arg(1))
		}
		diff, err := anchorDiff(a, b)
		if err != nil {
			return err
		}
		if diff == "" {
			fmt.Println("anchors are identical")
			return nil
		}
		fmt.Print(diff)
		return nil

	case "clear":
		return clearAnchors(eng, *yes)

	default:
		fmt.Fprint(os.Stderr, anchorsUsage)
		return fmt.Errorf("unknown anchors subcommand %q", sub)
	}
}

func clearAnchors(eng *engine.Engine, yes bool) error {
	n := eng.Anchors().Len()
	if n == 0 {
		fmt.Println("no anchors to clear")
		return nil
	}

	if !yes {
		confirm := false
		err := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete all %d anchors?", n)).
				Description("Sequences that reference them will skip the missing steps.").
				Value(&confirm),
		)).Run()
		if err != nil {
			return err
		}
		if !confirm {
			fmt.Println("aborted")
			return nil
		}
	}

	eng.Anchors().Clear()
	fmt.Printf("cleared %d anchors\n", n)

	return nil
}

// anchorsMarkdown renders anchors as a markdown table.
func anchorsMarkdown(list []anchors.Anchor) string {
	if len(list) == 0 {
		return "_No anchors._\n"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Anchors (%d)\n\n", len(list))
	sb.WriteString("| Name | ID | Tags | Rating | Parameters |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	for _, a := range list {
		fmt.Fprintf(&sb, "| %s | `%s` | %s | %s | %d |\n",
			escapeCell(runewidth.Truncate(a.Name, 32, "…")),
			a.ID,
			escapeCell(strings.Join(a.Tags, ", ")),
			strings.Repeat("★", a.Rating),
			len(paramtree.Paths(a.Tree)),
		)
	}

	return sb.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// printMarkdown renders md for the terminal, or writes it as-is when plain.
func printMarkdown(w io.Writer, md string, plain bool) error {
	if plain {
		_, err := io.WriteString(w, md)
		return err
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return err
	}
	out, err := r.Render(md)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)

	return err
}

// anchorDiff returns a unified diff of the trees and visual states of two
// anchors. It is empty when they match.
func anchorDiff(a, b anchors.Anchor) (string, error) {
	render := func(x anchors.Anchor) (string, error) {
		data, err := json.MarshalIndent(struct {
			Tree        paramtree.Tree `json:"tree"`
			VisualState paramtree.Tree `json:"visualState,omitempty"`
		}{x.Tree, x.VisualState}, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil
	}

	left, err := render(a)
	if err != nil {
		return "", err
	}
	right, err := render(b)
	if err != nil {
		return "", err
	}

	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(left),
		B:        difflib.SplitLines(right),
		FromFile: a.Name,
		ToFile:   b.Name,
		Context:  3,
	})
}

// splitDocuments returns the objects in data: the elements of a JSON array,
// or data itself.
func splitDocuments(data []byte) ([][]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if !bytes.HasPrefix(trimmed, []byte("[")) {
		return [][]byte{trimmed}, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, err
	}
	docs := make([][]byte, len(raw))
	for i, r := range raw {
		docs[i] = r
	}

	return docs, nil
}

// importFiles feeds every document in files to importOne and reports the
// result. Malformed documents are counted, not fatal.
func importFiles(files []string, kind string, importOne func([]byte) (string, bool)) error {
	var imported, failed int
	for _, path := range files {
		data, err := os.ReadFile(path) //nolint:gosec // path is a CLI argument
		if err != nil {
			return err
		}
		docs, err := splitDocuments(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		for _, doc := range docs {
			name, ok := importOne(doc)
			if !ok {
				failed++
				continue
			}
			imported++
			fmt.Printf("imported %s %q\n", kind, name)
		}
	}

	fmt.Printf("%d imported, %d skipped\n", imported, failed)
	if imported == 0 && failed > 0 {
		return fmt.Errorf("no valid %s found", kind)
	}

	return nil
}

func writeOutput(path string, data []byte) error {
	data = append(data, '\n')
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}

	return os.WriteFile(path, data, 0o600)
}
