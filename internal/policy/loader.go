package policy

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// defaultConfirmTTL applies when the document omits confirm_ttl.
const defaultConfirmTTL = 300 * time.Second

// rawDocument is the YAML shape of a policy file.
type rawDocument struct {
	Allowlists map[string][]string      `yaml:"allowlists"`
	RootPaths  map[string]yaml.Node     `yaml:"root_paths"`
	Guard      *rawGuard                `yaml:"resource_guard"`
	GuardAlias *rawGuard                `yaml:"finance_guard"`
	Actions    map[string]rawActionSpec `yaml:"actions"`
	RateLimits map[string]int           `yaml:"rate_limits"`
	ConfirmTTL int                      `yaml:"confirm_ttl"`
}

type rawGuard struct {
	Enabled      *bool    `yaml:"enabled"`
	DenyKeywords []string `yaml:"deny_keywords"`
	DenyPaths    []string `yaml:"deny_paths"`
	DenyApps     []string `yaml:"deny_apps"`
	DenyDomains  []string `yaml:"deny_domains"`
	VolumeName   string   `yaml:"volume_name"`
}

type rawActionSpec struct {
	Risk            *int                      `yaml:"risk"`
	Description     string                    `yaml:"description"`
	DenyReason      string                    `yaml:"deny_reason"`
	RequiresConfirm bool                      `yaml:"requires_confirm"`
	RateLimit       *int                      `yaml:"rate_limit"`
	ArgsSchema      map[string]*rawConstraint `yaml:"args_schema"`
}

// Load reads, env-expands, and compiles a policy document. Missing required
// top-level keys are a fatal load error; the caller gets no partial document.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse compiles policy YAML into a Document.
func Parse(data []byte) (*Document, error) {
	var top map[string]any
	if err := yaml.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}

	for _, key := range []string{"allowlists", "actions", "rate_limits"} {
		if _, ok := top[key]; !ok {
			return nil, fmt.Errorf("policy missing required key %q", key)
		}
	}
	// finance_guard is accepted as a legacy alias for resource_guard.
	if _, ok := top["resource_guard"]; !ok {
		if _, ok := top["finance_guard"]; !ok {
			return nil, fmt.Errorf("policy missing required key %q", "resource_guard")
		}
	}

	var raw rawDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}

	guard := raw.Guard
	if guard == nil {
		guard = raw.GuardAlias
	}

	doc := &Document{
		Allowlists: raw.Allowlists,
		RootPaths:  map[string][]string{},
		Guard:      compileGuard(guard),
		Actions:    map[string]*ActionSpec{},
		RateLimits: raw.RateLimits,
		ConfirmTTL: defaultConfirmTTL,
	}
	if raw.ConfirmTTL > 0 {
		doc.ConfirmTTL = time.Duration(raw.ConfirmTTL) * time.Second
	}

	for role, node := range raw.RootPaths {
		paths, err := decodeRootPaths(node)
		if err != nil {
			return nil, fmt.Errorf("root_paths.%s: %w", role, err)
		}
		doc.RootPaths[role] = paths
	}

	for name, rawSpec := range raw.Actions {
		spec := &ActionSpec{
			Risk:            RiskBlocked,
			Description:     rawSpec.Description,
			DenyReason:      rawSpec.DenyReason,
			RequiresConfirm: rawSpec.RequiresConfirm,
			RateLimit:       rawSpec.RateLimit,
			Args:            map[string]*Constraint{},
		}
		// An action without a declared risk is treated as blocked.
		if rawSpec.Risk != nil {
			spec.Risk = *rawSpec.Risk
		}
		for argName, rawC := range rawSpec.ArgsSchema {
			c, err := rawC.compile(doc.Allowlists)
			if err != nil {
				return nil, fmt.Errorf("action %q argument %q: %w", name, argName, err)
			}
			spec.Args[argName] = c
		}
		doc.Actions[name] = spec
	}

	if err := doc.validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

func compileGuard(raw *rawGuard) GuardConfig {
	cfg := GuardConfig{Enabled: true, VolumeName: "Finance"}
	if raw == nil {
		return cfg
	}
	if raw.Enabled != nil {
		cfg.Enabled = *raw.Enabled
	}
	cfg.DenyKeywords = raw.DenyKeywords
	cfg.DenyPaths = raw.DenyPaths
	cfg.DenyApps = raw.DenyApps
	cfg.DenyDomains = raw.DenyDomains
	if raw.VolumeName != "" {
		cfg.VolumeName = raw.VolumeName
	}
	return cfg
}

// decodeRootPaths accepts either a scalar path or a list of paths per role.
func decodeRootPaths(node yaml.Node) ([]string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		var single string
		if err := node.Decode(&single); err != nil {
			return nil, err
		}
		return []string{single}, nil
	case yaml.SequenceNode:
		var many []string
		if err := node.Decode(&many); err != nil {
			return nil, err
		}
		return many, nil
	case 0:
		return nil, nil
	default:
		return nil, fmt.Errorf("expected string or list")
	}
}
