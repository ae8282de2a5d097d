package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/hpungsan/elclones/internal/background"
	"github.com/hpungsan/elclones/internal/bridge"
	"github.com/hpungsan/elclones/internal/browser"
	"github.com/hpungsan/elclones/internal/bus"
	"github.com/hpungsan/elclones/internal/clone"
	"github.com/hpungsan/elclones/internal/config"
	"github.com/hpungsan/elclones/internal/control"
	"github.com/hpungsan/elclones/internal/errors"
	"github.com/hpungsan/elclones/internal/logging"
	"github.com/hpungsan/elclones/internal/mcp"
	"github.com/hpungsan/elclones/internal/message"
	"github.com/hpungsan/elclones/internal/ops"
	"github.com/hpungsan/elclones/internal/record"
	"github.com/hpungsan/elclones/internal/storage"
	"github.com/hpungsan/elclones/internal/store"
	"github.com/hpungsan/elclones/internal/web"
)

// env is what every command needs. The store is opened per command, so
// help and the bridge client never touch the database.
type env struct {
	baseDir string
	cfg     *config.Config
	log     *zap.Logger
}

func (e *env) openStore() (*store.SQL, error) {
	return store.OpenSQL(e.baseDir, e.cfg)
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(e *env) *cli.App {
	e.log = logging.OrNop(e.log)
	app := &cli.App{
		Name:    "elclones",
		Usage:   "Capture page elements and clone them back",
		Version: Version,
		Commands: []*cli.Command{
			runCmd(e),
			listCmd(e),
			showCmd(e),
			exportCmd(e),
			importCmd(e),
			toggleCmd(e),
			highlightCmd(e),
			watchCmd(e),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// runCmd starts the browser, the page agent and every control surface.
func runCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Open a browser page with the capture agent attached",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Usage: "Page to open (default: start_url from config)"},
			&cli.BoolFlag{Name: "headful", Usage: "Show the launched browser window"},
			&cli.BoolFlag{Name: "mcp", Usage: "Serve MCP tools on stdio"},
			&cli.BoolFlag{Name: "no-web", Usage: "Do not start the web control surface"},
			&cli.BoolFlag{Name: "no-bridge", Usage: "Do not start the websocket bridge"},
			&cli.BoolFlag{Name: "ephemeral", Usage: "Keep state in a temporary directory removed on exit"},
		},
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			baseDir := e.baseDir
			if c.Bool("ephemeral") {
				dir, err := os.MkdirTemp("", "elclones-")
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				defer os.RemoveAll(dir)
				baseDir = dir
			}

			st, err := store.OpenSQL(baseDir, e.cfg)
			if err != nil {
				return outputError(err)
			}
			defer st.Close()

			area := storage.NewArea(st.DB(), e.log)
			b := bus.New(e.log)
			coord := background.New(area, st, b, e.log)
			if err := coord.Install(ctx); err != nil {
				return outputError(err)
			}

			surface := control.New(area, st, b, e.log)
			if _, err := surface.Init(ctx); err != nil {
				return outputError(err)
			}

			var cloneOpts []clone.Option
			if e.cfg.SanitizeClones {
				cloneOpts = append(cloneOpts, clone.WithSanitizer(clone.SanitizePolicy()))
			}

			mgr := browser.NewManager(browser.Config{
				RemoteURL: e.cfg.BrowserRemoteURL,
				Headless:  e.cfg.Headless() && !c.Bool("headful"),
				Logger:    e.log,
			})
			defer mgr.Close()
			if _, err := mgr.Start(ctx); err != nil {
				return outputError(err)
			}
			url := c.String("url")
			if url == "" {
				url = e.cfg.StartURL
			}
			page, err := mgr.Open(ctx, url)
			if err != nil {
				return outputError(err)
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return coord.Run(gctx) })

			// The agent's view of the store settles asynchronously.
			handle := store.Open(gctx, func(context.Context) (store.Store, error) { return st, nil }, e.log)
			g.Go(func() error {
				return browser.Attach(gctx, page, browser.AttachConfig{
					Store:        handle,
					Bus:          b,
					CloneOptions: cloneOpts,
					Logger:       e.log,
				})
			})

			if !c.Bool("no-bridge") {
				srv := bridge.NewServer(e.cfg.BridgeAddr, surface, e.log)
				g.Go(func() error { return bridge.Run(gctx, srv, e.log) })
			}
			if !c.Bool("no-web") {
				srv, err := web.NewServer(surface, Version, e.cfg.WebBind, e.cfg.WebPort, e.log)
				if err != nil {
					stop()
					_ = g.Wait()
					return outputError(err)
				}
				g.Go(func() error { return web.Run(gctx, srv, e.log) })
			}
			if c.Bool("mcp") {
				s := mcp.NewServer(mcp.NewHandlers(surface, st, e.cfg), e.cfg, Version)
				g.Go(func() error {
					// Closing stdin ends the whole run.
					defer stop()
					if err := mcp.Serve(gctx, s, e.log); err != nil && gctx.Err() == nil {
						return err
					}
					return nil
				})
			}

			e.log.Info("running", zap.String("url", url), zap.String("base_dir", baseDir))
			if err := g.Wait(); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// listCmd creates the list command.
func listCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List captured elements in capture order",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
			formatFlag(),
		},
		Action: func(c *cli.Context) error {
			st, err := e.openStore()
			if err != nil {
				return outputError(err)
			}
			defer st.Close()

			output, err := ops.List(c.Context, st.DB(), ops.ListInput{
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputFormatted(c, output)
		},
	}
}

// showCmd creates the show command.
func showCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one captured element",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-html", Usage: "Exclude the markup from output"},
			&cli.BoolFlag{Name: "no-styles", Usage: "Exclude the style snapshot from output"},
			formatFlag(),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("id is required"))
			}
			st, err := e.openStore()
			if err != nil {
				return outputError(err)
			}
			defer st.Close()

			input := ops.FetchInput{ID: c.Args().First()}
			if c.Bool("no-html") {
				includeHTML := false
				input.IncludeHTML = &includeHTML
			}
			if c.Bool("no-styles") {
				includeStyles := false
				input.IncludeStyles = &includeStyles
			}

			output, err := ops.Fetch(c.Context, st, input)
			if err != nil {
				return outputError(err)
			}
			return outputFormatted(c, output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export captured elements to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.elclones/exports/elements-<timestamp>.jsonl)"},
		},
		Action: func(c *cli.Context) error {
			st, err := e.openStore()
			if err != nil {
				return outputError(err)
			}
			defer st.Close()

			output, err := ops.Export(c.Context, st, e.cfg, ops.ExportInput{Path: c.String("path")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// importCmd creates the import command.
func importCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import captured elements from a JSONL file",
		ArgsUsage: "<path>",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("path is required"))
			}
			st, err := e.openStore()
			if err != nil {
				return outputError(err)
			}
			defer st.Close()

			output, err := ops.Import(c.Context, st, e.cfg, ops.ImportInput{Path: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// toggleCmd turns capture mode on or off in a running agent.
func toggleCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "toggle",
		Usage:     "Turn capture mode on or off in a running agent",
		ArgsUsage: "on|off",
		Flags:     []cli.Flag{remoteFlag(e)},
		Action: func(c *cli.Context) error {
			enabled, err := parseOnOff(c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return sendRemote(c, message.ToggleExtension{Enabled: enabled})
		},
	}
}

// highlightCmd marks an element as the clone source in a running agent.
func highlightCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "highlight",
		Usage:     "Highlight a captured element in a running agent",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			remoteFlag(e),
			&cli.BoolFlag{Name: "off", Usage: "Remove the highlight instead"},
		},
		Action: func(c *cli.Context) error {
			id := c.Args().First()
			if !record.ValidID(id) {
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("invalid element id %q", id)))
			}
			return sendRemote(c, message.ToggleElementHighlight{ElementID: id, IsHighlighted: !c.Bool("off")})
		},
	}
}

// watchCmd follows the element list written by a running agent.
func watchCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Print the element list every time it changes (one JSON line per change)",
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := e.openStore()
			if err != nil {
				return outputError(err)
			}
			defer st.Close()

			// No store and no sender: a separate process only sees the mirror.
			surface := control.New(storage.NewArea(st.DB(), e.log), nil, nil, e.log)
			enc := json.NewEncoder(c.App.Writer)
			err = surface.Watch(ctx, e.baseDir, func(items []control.Item) {
				_ = enc.Encode(map[string]any{"items": items})
			})
			if err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// Helper functions

func formatFlag() cli.Flag {
	return &cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "json", Usage: "Output format: json|yaml"}
}

func remoteFlag(e *env) cli.Flag {
	return &cli.StringFlag{Name: "remote", Aliases: []string{"r"}, Value: e.cfg.BridgeAddr, Usage: "Bridge address of the running agent"}
}

// sendRemote delivers m over the bridge and prints the ack.
func sendRemote(c *cli.Context, m message.Message) error {
	client, err := bridge.Dial(c.Context, bridge.URL(c.String("remote")))
	if err != nil {
		return outputError(err)
	}
	defer client.Close()

	ack, err := client.Send(c.Context, m)
	if err != nil {
		return outputError(err)
	}
	return outputJSON(c.App.Writer, ack)
}

// outputFormatted writes v in the format chosen by --format.
func outputFormatted(c *cli.Context, v any) error {
	switch c.String("format") {
	case "", "json":
		return outputJSON(c.App.Writer, v)
	case "yaml":
		return outputYAML(c.App.Writer, v)
	default:
		return outputError(errors.NewInvalidRequest(fmt.Sprintf("unknown format %q (want json or yaml)", c.String("format"))))
	}
}

// outputJSON marshals result to w as JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputYAML marshals result to w as YAML.
func outputYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// outputError formats error for CLI.
func outputError(err error) error {
	if elErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", elErr.Code, elErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// parseOnOff accepts on/off and the usual boolean spellings.
func parseOnOff(s string) (bool, error) {
	switch s {
	case "on", "true", "1", "enable":
		return true, nil
	case "off", "false", "0", "disable":
		return false, nil
	}
	return false, errors.NewInvalidRequest(fmt.Sprintf("expected on or off, got %q", s))
}
