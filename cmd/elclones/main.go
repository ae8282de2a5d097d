package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/elclones/internal/config"
	"github.com/hpungsan/elclones/internal/logging"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"run": true, "list": true, "show": true,
	"export": true, "import": true,
	"toggle": true, "highlight": true, "watch": true,
	"help": true,
}

// isCLIMode determines if we should run a CLI command vs the MCP agent.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP agent
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
        _      _
   ___ | | ___| | ___  _ __   ___  ___
  / _ \| |/ __| |/ _ \| '_ \ / _ \/ __|
 |  __/| | (__| | (_) | | | |  __/\__ \
  \___||_|\___|_|\___/|_| |_|\___||___/

  Capture page elements, clone them back

  Usage: elclones <command> [options]
         elclones run
         elclones --help

  MCP mode requires piped input.`)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before touching the base directory.
	if isHelpOrVersion() {
		app := newCLIApp(&env{cfg: config.DefaultConfig()})
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}
	baseDir := filepath.Join(homeDir, ".elclones")

	wd, _ := os.Getwd()
	cfg, err := config.LoadWithRepo(baseDir, wd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	e := &env{baseDir: baseDir, cfg: cfg, log: log}

	if isCLIMode() {
		app := newCLIApp(e)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start the agent)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'elclones --help' for usage.\n")
		os.Exit(1)
	}

	// MCP mode (default): the full agent with tools on stdio.
	app := newCLIApp(e)
	if err := app.Run([]string{os.Args[0], "run", "--mcp"}); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
