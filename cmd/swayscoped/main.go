package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/swayscope/swayscope/internal/config"
	"github.com/swayscope/swayscope/internal/control"
	"github.com/swayscope/swayscope/internal/engine"
	"github.com/swayscope/swayscope/internal/ipc"
	"github.com/swayscope/swayscope/internal/util"
)

func main() {
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "swayscope")

	configDir := flag.String("config-dir", defaultConfigDir, "configuration directory")
	logLevel := flag.String("log-level", "info", "log level (trace|debug|info|warn|error)")
	socketPath := flag.String("socket", "", "control socket path (default: runtime dir)")
	project := flag.String("project", "", "initial active project")
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

	compositor, err := ipc.NewClient()
	if err != nil {
		exitErr(fmt.Errorf("resolve compositor socket: %w", err))
	}

	eng := engine.New(compositor, logger, snapshot)
	if *project != "" {
		if err := eng.SetActiveProject(*project); err != nil {
			logger.Warnf("initial project: %v", err)
		}
	}
	reloader := newConfigReloader(*configDir, logger, eng)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		exitErr(fmt.Errorf("watch configuration: %w", err))
	}
	defer watcher.Close()
	if err := watcher.Add(*configDir); err != nil {
		exitErr(fmt.Errorf("watch %s: %w", *configDir, err))
	}
	projectsDir := filepath.Join(*configDir, "projects")
	if err := watcher.Add(projectsDir); err != nil {
		logger.Debugf("projects dir not watched: %v", err)
	}
	reloadRequests := make(chan string, 1)
	go watchConfig(logger, watcher, reloadRequests)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrlSrv, err := control.NewServer(eng, logger, reloader.Reload, *socketPath)
	if err != nil {
		exitErr(fmt.Errorf("control server: %w", err))
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	errs := make(chan error, 2)
	go func() {
		errs <- eng.Run(ctx)
	}()
	go func() {
		errs <- ctrlSrv.Serve(ctx)
	}()

	for {
		select {
		case err := <-errs:
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("daemon exited: %v", err)
				os.Exit(1)
			}
			logger.Infof("daemon stopped")
			return
		case reason := <-reloadRequests:
			if err := reloader.Reload(reason); err != nil {
				logger.Errorf("reload failed: %v", err)
			}
		case sig := <-sigs:
			switch sig {
			case syscall.SIGHUP:
				if err := reloader.Reload("received SIGHUP"); err != nil {
					logger.Errorf("reload failed: %v", err)
				}
			case os.Interrupt, syscall.SIGTERM:
				logger.Infof("received %s, shutting down", sig)
				cancel()
			}
		}
	}
}

// watchConfig coalesces bursts of file events into one reload request per
// debounce window.
func watchConfig(logger *util.Logger, watcher *fsnotify.Watcher, reloadRequests chan<- string) {
	const debounceWindow = 250 * time.Millisecond
	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !isYAML(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerCh = timer.C
			} else {
				if !timer.Stop() {
					<-timerCh
				}
				timer.Reset(debounceWindow)
			}
		case <-timerCh:
			timer = nil
			timerCh = nil
			select {
			case reloadRequests <- "configuration changed on disk":
			default:
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("config watcher error: %v", err)
		}
	}
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
