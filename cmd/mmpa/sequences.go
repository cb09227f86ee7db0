package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/germanamz/mmpa/pkg/sequencer"
	"github.com/mattn/go-runewidth"
)

const sequencesUsage = `Usage: mmpa sequences <list|export|import> [flags] [args]

  list                 Show every sequence
  export [id]          Write one sequence, or all of them, as JSON
  import <file>...     Import sequences from JSON files (one sequence or an array)
`

func runSequences(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, sequencesUsage)
		return errors.New("missing sequences subcommand")
	}

	sub, args := args[0], args[1:]
	fs, cf := newFlagSet("sequences "+sub, "Manage sequences.")
	plain := fs.Bool("plain", false, "list: print markdown without terminal rendering")
	out := fs.String("o", "", "export: write to this file instead of stdout")
	_ = fs.Parse(args)

	eng, _, err := openEngine(context.Background(), cf, os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	lib := eng.Sequences()
	switch sub {
	case "list":
		return printMarkdown(os.Stdout, sequencesMarkdown(lib.List()), *plain)

	case "export":
		var data []byte
		if fs.NArg() > 0 {
			var found bool
			if data, found = lib.Export(fs.Arg(0)); !found {
				return fmt.Errorf("sequence not found: %s", fs.Arg(0))
			}
		} else if data, err = lib.ExportAll(); err != nil {
			return err
		}
		return writeOutput(*out, data)

	case "import":
		if fs.NArg() == 0 {
			return errors.New("import: no files given")
		}
		return importFiles(fs.Args(), "sequence", func(doc []byte) (string, bool) {
			s, imported := lib.Import(doc)
			return s.Name, imported
		})

	default:
		fmt.Fprint(os.Stderr, sequencesUsage)
		return fmt.Errorf("unknown sequences subcommand %q", sub)
	}
}

func sequencesMarkdown(list []sequencer.Sequence) string {
	if len(list) == 0 {
		return "_No sequences._\n"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Sequences (%d)\n\n", len(list))
	sb.WriteString("| Name | ID | Steps | Length | Loop |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	for _, s := range list {
		loop := ""
		if s.Loop {
			loop = "yes"
		}
		fmt.Fprintf(&sb, "| %s | `%s` | %d | %s | %s |\n",
			escapeCell(runewidth.Truncate(s.Name, 32, "…")),
			s.ID,
			len(s.Steps),
			s.Duration().Round(100*time.Millisecond),
			loop,
		)
	}

	return sb.String()
}
