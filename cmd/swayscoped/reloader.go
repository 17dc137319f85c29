package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/swayscope/swayscope/internal/config"
	"github.com/swayscope/swayscope/internal/engine"
	"github.com/swayscope/swayscope/internal/util"
)

// configReloader reloads and recompiles the configuration directory. A
// rejected reload keeps the previous snapshot live and logs a diff against
// the last accepted state so the offending edit is visible.
type configReloader struct {
	dir    string
	logger *util.Logger
	engine *engine.Engine

	mu             sync.Mutex
	lastSerialized []byte
}

func newConfigReloader(dir string, logger *util.Logger, eng *engine.Engine) *configReloader {
	return &configReloader{
		dir:            dir,
		logger:         logger,
		engine:         eng,
		lastSerialized: snapshotDir(dir),
	}
}

func (r *configReloader) Reload(reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger.Infof("%s, reloading configuration", reason)
	raw := snapshotDir(r.dir)
	docs, err := config.LoadDir(r.dir)
	if err != nil {
		r.logDiff(raw)
		return err
	}
	snapshot, err := config.Compile(docs)
	if err != nil {
		r.logDiff(raw)
		return fmt.Errorf("compile configuration: %w", err)
	}
	r.engine.ReloadConfig(snapshot)
	r.lastSerialized = raw
	return nil
}

func (r *configReloader) logDiff(current []byte) {
	diff := config.DiffSerialized(r.lastSerialized, current)
	if diff == "" {
		r.logger.Warnf("config change rejected; no textual difference vs last valid config")
		return
	}
	r.logger.Warnf("config change rejected; diff vs last valid config:\n%s", diff)
}

// snapshotDir concatenates every YAML file under dir in a stable order so
// rejected reloads can be diffed as one document.
func snapshotDir(dir string) []byte {
	var files []string
	_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	var b strings.Builder
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			rel = path
		}
		fmt.Fprintf(&b, "# %s\n", rel)
		b.Write(data)
		if len(data) > 0 && data[len(data)-1] != '\n' {
			b.WriteByte('\n')
		}
	}
	return []byte(b.String())
}
