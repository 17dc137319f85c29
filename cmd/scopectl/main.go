package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/swayscope/swayscope/internal/config"
	"github.com/swayscope/swayscope/internal/control"
	"github.com/swayscope/swayscope/internal/control/client"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(argv []string) error {
	fs := flag.NewFlagSet("scopectl", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	socket := fs.String("socket", "", "path to swayscoped control socket")
	timeout := fs.Duration("timeout", 3*time.Second, "control request timeout")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags] <command> [args]\n", fs.Name())
		fmt.Fprintln(fs.Output())
		fmt.Fprintln(fs.Output(), "Commands:")
		fmt.Fprintln(fs.Output(), "  health\t\t\tdaemon health summary")
		fmt.Fprintln(fs.Output(), "  identity <window-id>\twindow record and classification")
		fmt.Fprintln(fs.Output(), "  validate\t\tdiff cached state against the compositor")
		fmt.Fprintln(fs.Output(), "  events [--limit N] [--type T]\taudit log tail")
		fmt.Fprintln(fs.Output(), "  report [--windows] [--events] [--validate]\tcomposite report")
		fmt.Fprintln(fs.Output(), "  launch-stats\t\tlaunch correlation counters")
		fmt.Fprintln(fs.Output(), "  notify-launch --class C [--app A] [--project P] [--workspace N]")
		fmt.Fprintln(fs.Output(), "  reload\t\t\ttrigger a live config reload")
		fmt.Fprintln(fs.Output(), "  close <window-id>\tclose a tracked window")
		fmt.Fprintln(fs.Output(), "  move <window-id> <workspace>\tmove a tracked window")
		fmt.Fprintln(fs.Output(), "  check --config-dir <dir>\tvalidate a configuration directory")
		fmt.Fprintln(fs.Output())
		fmt.Fprintln(fs.Output(), "Flags:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		return fmt.Errorf("missing subcommand")
	}

	if args[0] == "check" {
		return runCheck(args[1:], os.Stdout)
	}

	cli, err := client.New(*socket)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	ctx := context.Background()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	switch args[0] {
	case "health":
		health, err := cli.Health(ctx)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, health)
	case "identity":
		if len(args) != 2 {
			return fmt.Errorf("identity requires <window-id>")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid window id %q", args[1])
		}
		identity, err := cli.WindowIdentity(ctx, id)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, identity)
	case "validate":
		validation, err := cli.ValidateState(ctx)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, validation)
	case "events":
		return runEvents(ctx, cli, args[1:])
	case "report":
		return runReport(ctx, cli, args[1:])
	case "launch-stats":
		stats, err := cli.LaunchStats(ctx)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, stats)
	case "notify-launch":
		return runNotifyLaunch(ctx, cli, args[1:])
	case "reload":
		if err := cli.Reload(ctx); err != nil {
			return err
		}
		fmt.Println("reload requested")
		return nil
	case "close":
		if len(args) != 2 {
			return fmt.Errorf("close requires <window-id>")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid window id %q", args[1])
		}
		return cli.CloseWindow(ctx, id)
	case "move":
		if len(args) != 3 {
			return fmt.Errorf("move requires <window-id> <workspace>")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid window id %q", args[1])
		}
		workspace, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid workspace %q", args[2])
		}
		return cli.MoveWindow(ctx, id, workspace)
	default:
		fs.Usage()
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
}

func runEvents(ctx context.Context, cli *client.Client, args []string) error {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	limit := fs.Int("limit", 50, "maximum entries")
	typeFilter := fs.String("type", "", "filter by event type")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	entries, err := cli.RecentEvents(ctx, *limit, *typeFilter)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		line := fmt.Sprintf("%s  #%d  %-12s  %s  %.1fms",
			entry.Timestamp.Format(time.RFC3339), entry.ID, entry.Type, entry.Source, entry.ElapsedMs)
		if entry.Error != "" {
			line += "  error: " + entry.Error
		}
		fmt.Println(line)
	}
	return nil
}

func runReport(ctx context.Context, cli *client.Client, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	windows := fs.Bool("windows", false, "include tracked windows")
	events := fs.Bool("events", false, "include the audit log")
	validate := fs.Bool("validate", false, "include state validation")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	report, err := cli.Report(ctx, *windows, *events, *validate)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, report)
}

func runNotifyLaunch(ctx context.Context, cli *client.Client, args []string) error {
	fs := flag.NewFlagSet("notify-launch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	app := fs.String("app", "", "application name")
	class := fs.String("class", "", "expected window class")
	project := fs.String("project", "", "target project")
	workspace := fs.Int("workspace", 0, "target workspace")
	pid := fs.Int("pid", 0, "launcher pid")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if *class == "" {
		return fmt.Errorf("notify-launch requires --class")
	}
	pending, err := cli.NotifyLaunch(ctx, control.LaunchParams{
		App:       *app,
		Class:     *class,
		Project:   *project,
		Workspace: *workspace,
		PID:       *pid,
	})
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, pending)
}

func runCheck(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	dir := fs.String("config-dir", "", "configuration directory")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if *dir == "" {
		fs.Usage()
		return fmt.Errorf("check requires --config-dir <dir>")
	}
	docs, err := config.LoadDir(*dir)
	if err != nil {
		return err
	}
	if _, err := config.Compile(docs); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "Configuration OK")
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
