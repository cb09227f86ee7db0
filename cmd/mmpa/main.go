package main

import (
	"flag"
	"fmt"
	"os"
)

const version = "0.1.0"

const usage = `Usage: mmpa <command> [flags]

Commands:
  serve       Run the render loop and the HTTP control API (default)
  mcp         Run the render loop and serve its tools over MCP on stdio
  watch       Run the render loop with a live terminal dashboard
  anchors     Manage anchors: list, export, import, diff, clear
  sequences   Manage sequences: list, export, import

Run "mmpa <command> -h" for the flags of a command.
`

func main() {
	cmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServe(args)
	case "mcp":
		err = runMCP(args)
	case "watch":
		err = runWatch(args)
	case "anchors":
		err = runAnchors(args)
	case "sequences":
		err = runSequences(args)
	case "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// commonFlags are accepted by every command.
type commonFlags struct {
	config  string
	dataDir string
	envFile string
}

func newFlagSet(name, summary string) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mmpa %s [flags]\n\n%s\n\nFlags:\n", name, summary)
		fs.PrintDefaults()
	}

	cf := &commonFlags{}
	fs.StringVar(&cf.config, "config", "", "path to configuration file (default: <data-dir>/config.yaml or mmpa.yaml)")
	fs.StringVar(&cf.dataDir, "data-dir", "", "path to the data directory (overrides data_dir in config)")
	fs.StringVar(&cf.envFile, "env", "", "path to .env file (default: <data-dir>/.env, ignored if missing)")

	return fs, cf
}
