package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// File names expected inside the configuration directory. Project
// definitions live one per file under projects/.
const (
	WindowRulesFile = "window-rules.yaml"
	AppClassesFile  = "app-classes.yaml"
	ProjectsDir     = "projects"
)

// Documents is the raw, validated configuration as loaded from disk.
type Documents struct {
	Projects    []ProjectDoc
	WindowRules []RuleDoc
	AppClasses  AppClassesDoc
}

// ProjectDoc defines one project.
type ProjectDoc struct {
	Name      string         `yaml:"name"`
	Directory string         `yaml:"directory"`
	Classes   []string       `yaml:"classes"`
	Remote    *RemoteConfig  `yaml:"remote"`
	Workspaces map[int]string `yaml:"workspaces"`
}

// RemoteConfig is the optional remote execution target of a project.
type RemoteConfig struct {
	Host string `yaml:"host"`
	User string `yaml:"user,omitempty"`
}

// MatchDoc is the structured pattern form.
type MatchDoc struct {
	Kind    string `yaml:"kind"`
	Pattern string `yaml:"pattern"`
}

// RuleDoc is one classification rule. The pattern is given either in the
// legacy prefix encoding ("regex:^foo", "glob:foo*", bare literal) via
// pattern, or structured via match; never both.
type RuleDoc struct {
	Pattern        string    `yaml:"pattern,omitempty"`
	Match          *MatchDoc `yaml:"match,omitempty"`
	Scope          string    `yaml:"scope,omitempty"`
	Priority       *int      `yaml:"priority,omitempty"`
	Description    string    `yaml:"description,omitempty"`
	Workspace      int       `yaml:"workspace,omitempty"`
	Command        string    `yaml:"command,omitempty"`
	Exclude        bool      `yaml:"exclude,omitempty"`
	GlobalWildcard bool      `yaml:"globalWildcard,omitempty"`
	Blacklist      []string  `yaml:"blacklist,omitempty"`
}

// windowRulesDoc accepts both the legacy bare-array format and the current
// object-with-rules format; both converge on one slice immediately at load.
type windowRulesDoc struct {
	Rules []RuleDoc
}

func (d *windowRulesDoc) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		return value.Decode(&d.Rules)
	case yaml.MappingNode:
		var obj struct {
			Rules []RuleDoc `yaml:"rules"`
		}
		if err := value.Decode(&obj); err != nil {
			return err
		}
		d.Rules = obj.Rules
		return nil
	default:
		return fmt.Errorf("window rules must be a sequence or a mapping with a rules key")
	}
}

// AppClassesDoc is the app-classification document: explicit class lists
// plus an independently prioritized pattern set.
type AppClassesDoc struct {
	Scoped   []string  `yaml:"scoped"`
	Global   []string  `yaml:"global"`
	Patterns []RuleDoc `yaml:"patterns"`
}

// LoadDir reads every configuration document under dir. Missing documents
// are treated as empty; malformed ones fail the whole load so a reload can
// be rejected atomically.
func LoadDir(dir string) (*Documents, error) {
	docs := &Documents{}

	rulesPath := filepath.Join(dir, WindowRulesFile)
	if data, err := os.ReadFile(rulesPath); err == nil {
		var parsed windowRulesDoc
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("decode %s: %w", WindowRulesFile, err)
		}
		docs.WindowRules = parsed.Rules
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", WindowRulesFile, err)
	}

	classesPath := filepath.Join(dir, AppClassesFile)
	if data, err := os.ReadFile(classesPath); err == nil {
		if err := yaml.Unmarshal(data, &docs.AppClasses); err != nil {
			return nil, fmt.Errorf("decode %s: %w", AppClassesFile, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", AppClassesFile, err)
	}

	projectsPath := filepath.Join(dir, ProjectsDir)
	entries, err := os.ReadDir(projectsPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read projects dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(projectsPath, name))
		if err != nil {
			return nil, fmt.Errorf("read project %s: %w", name, err)
		}
		var project ProjectDoc
		if err := yaml.Unmarshal(data, &project); err != nil {
			return nil, fmt.Errorf("decode project %s: %w", name, err)
		}
		if project.Name == "" {
			project.Name = strings.TrimSuffix(name, filepath.Ext(name))
		}
		docs.Projects = append(docs.Projects, project)
	}

	if err := docs.Validate(); err != nil {
		return nil, err
	}
	return docs, nil
}

// Validate performs schema checks that do not require compilation.
func (d *Documents) Validate() error {
	seen := map[string]struct{}{}
	for _, project := range d.Projects {
		if project.Name == "" {
			return fmt.Errorf("project name cannot be empty")
		}
		if _, dup := seen[project.Name]; dup {
			return fmt.Errorf("duplicate project %q", project.Name)
		}
		seen[project.Name] = struct{}{}
		for workspace, role := range project.Workspaces {
			if workspace < 1 || workspace > 9 {
				return fmt.Errorf("project %q: workspace %d out of range 1-9", project.Name, workspace)
			}
			switch role {
			case "primary", "secondary", "tertiary":
			default:
				return fmt.Errorf("project %q: unknown monitor role %q", project.Name, role)
			}
		}
		if project.Remote != nil && project.Remote.Host == "" {
			return fmt.Errorf("project %q: remote requires a host", project.Name)
		}
	}
	for i, rule := range d.WindowRules {
		if err := validateRuleDoc(rule); err != nil {
			return fmt.Errorf("window rule %d: %w", i, err)
		}
	}
	for i, rule := range d.AppClasses.Patterns {
		if err := validateRuleDoc(rule); err != nil {
			return fmt.Errorf("app pattern %d: %w", i, err)
		}
	}
	return nil
}

func validateRuleDoc(rule RuleDoc) error {
	if rule.Pattern == "" && rule.Match == nil {
		return fmt.Errorf("rule needs a pattern")
	}
	if rule.Pattern != "" && rule.Match != nil {
		return fmt.Errorf("pattern and match are mutually exclusive")
	}
	if rule.Priority != nil && *rule.Priority < 0 {
		return fmt.Errorf("priority must be non-negative")
	}
	switch rule.Scope {
	case "", "scoped", "global":
	default:
		return fmt.Errorf("unknown scope %q", rule.Scope)
	}
	return nil
}
