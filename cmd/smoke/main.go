// Command smoke checks a configuration and a live compositor together: it
// loads and compiles the config directory, classifies every window currently
// in the tree without issuing commands, and optionally tails the event
// stream. Useful when bringing up a new setup before running the daemon.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/swayscope/swayscope/internal/config"
	"github.com/swayscope/swayscope/internal/ipc"
	"github.com/swayscope/swayscope/internal/rules"
	"github.com/swayscope/swayscope/internal/util"
)

func main() {
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "swayscope")

	configDir := flag.String("config-dir", defaultConfigDir, "configuration directory")
	logLevel := flag.String("log-level", "info", "log level (trace|debug|info|warn|error)")
	project := flag.String("project", "", "classify as if this project were active")
	watch := flag.Duration("watch", 0, "tail the event stream for this long (0 disables)")
	flag.Parse()

	logger := util.NewLogger(util.ParseLogLevel(*logLevel))

	docs, err := config.LoadDir(*configDir)
	if err != nil {
		exitErr(fmt.Errorf("load configuration: %w", err))
	}
	snapshot, err := config.Compile(docs)
	if err != nil {
		exitErr(fmt.Errorf("compile configuration: %w", err))
	}
	fmt.Printf("Loaded %d projects, %d window rules, %d app patterns from %s\n",
		len(snapshot.Projects), len(snapshot.Ruleset.WindowRules), len(snapshot.Ruleset.AppPatterns), *configDir)

	client, err := ipc.NewClient()
	if err != nil {
		exitErr(fmt.Errorf("resolve compositor socket: %w", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	tree, err := client.GetTree(ctx)
	cancel()
	if err != nil {
		exitErr(fmt.Errorf("query tree: %w", err))
	}

	fmt.Println("\n=== Window classification preview ===")
	classifyCtx := rules.Context{
		ProjectName:    *project,
		ProjectClasses: snapshot.ProjectClasses(*project),
		Rules:          snapshot.Ruleset,
	}
	tree.Walk(func(node *ipc.Node) bool {
		if !node.IsWindow() {
			return true
		}
		classification := rules.Classify(node.WindowClass(), classifyCtx)
		line := map[string]any{
			"id":     node.ID,
			"class":  node.WindowClass(),
			"title":  node.Name,
			"scope":  classification.Scope,
			"source": classification.Source,
		}
		if classification.Workspace > 0 {
			line["workspace"] = classification.Workspace
		}
		printJSON(line)
		return true
	})

	if *watch <= 0 {
		return
	}
	fmt.Printf("\n=== Event stream (%s) ===\n", *watch)
	streamCtx, stop := context.WithTimeout(context.Background(), *watch)
	defer stop()
	events, err := ipc.Subscribe(streamCtx, logger)
	if err != nil {
		exitErr(fmt.Errorf("subscribe: %w", err))
	}
	for ev := range events {
		printJSON(map[string]any{
			"kind":  ev.EventKind(),
			"event": ev,
		})
	}
}

func printJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
