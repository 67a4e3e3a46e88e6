// Package compose models the deployment manifest: the service graph,
// health checks and named volumes that make up a stack.
package compose

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// Dependency conditions. A plain edge only requires the target's start
// command to have been issued; a healthy edge blocks until the target's
// health check has passed at least once.
const (
	ConditionStarted = "service_started"
	ConditionHealthy = "service_healthy"
)

// Manifest is the parsed stack definition.
type Manifest struct {
	Services map[string]*Service `yaml:"services"`
	Volumes  map[string]Volume   `yaml:"volumes,omitempty"`
}

// Volume declares a named persistent store. It survives service restarts
// and is destroyed only by explicit removal.
type Volume struct {
	External bool `yaml:"external,omitempty"`
}

// Build is a service's image build context.
type Build struct {
	Context    string `yaml:"context"`
	Dockerfile string `yaml:"dockerfile,omitempty"`
}

// Service is one deployable process definition within the manifest.
type Service struct {
	Image       string       `yaml:"image,omitempty"`
	Build       *Build       `yaml:"build,omitempty"`
	Restart     string       `yaml:"restart,omitempty"`
	Environment Environment  `yaml:"environment,omitempty"`
	Ports       []string     `yaml:"ports,omitempty"`
	Volumes     []string     `yaml:"volumes,omitempty"`
	DependsOn   DependsOn    `yaml:"depends_on,omitempty"`
	Healthcheck *Healthcheck `yaml:"healthcheck,omitempty"`
}

// Healthcheck is a periodic readiness probe. Budget for a dependent
// waiting on this probe is start_period + retries * interval.
type Healthcheck struct {
	Test        Command  `yaml:"test"`
	Interval    Duration `yaml:"interval,omitempty"`
	Timeout     Duration `yaml:"timeout,omitempty"`
	Retries     int      `yaml:"retries,omitempty"`
	StartPeriod Duration `yaml:"start_period,omitempty"`
}

// Defaults used by the compose file format when a probe omits fields.
const (
	DefaultHealthInterval = 30 * time.Second
	DefaultHealthTimeout  = 30 * time.Second
	DefaultHealthRetries  = 3
)

// EffectiveInterval returns the probe interval, defaulted.
func (h *Healthcheck) EffectiveInterval() time.Duration {
	if h.Interval > 0 {
		return time.Duration(h.Interval)
	}
	return DefaultHealthInterval
}

// EffectiveTimeout returns the per-probe timeout, defaulted.
func (h *Healthcheck) EffectiveTimeout() time.Duration {
	if h.Timeout > 0 {
		return time.Duration(h.Timeout)
	}
	return DefaultHealthTimeout
}

// EffectiveRetries returns the retry count, defaulted.
func (h *Healthcheck) EffectiveRetries() int {
	if h.Retries > 0 {
		return h.Retries
	}
	return DefaultHealthRetries
}

// Budget is the total time a dependent may wait for this probe to pass
// before the stack is declared unhealthy.
func (h *Healthcheck) Budget() time.Duration {
	retries := time.Duration(h.EffectiveRetries())
	return time.Duration(h.StartPeriod) + retries*(h.EffectiveInterval()+h.EffectiveTimeout())
}

// Duration parses compose-style duration strings ("10s", "1m30s").
type Duration time.Duration

// UnmarshalYAML implements yaml.BytesUnmarshaler.
func (d *Duration) UnmarshalYAML(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"'`)
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration back in compact form.
func (d Duration) MarshalYAML() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Environment accepts both the mapping form (KEY: value) and the list
// form (- KEY=value) the compose format allows.
type Environment map[string]string

// UnmarshalYAML implements yaml.BytesUnmarshaler.
func (e *Environment) UnmarshalYAML(b []byte) error {
	asMap := map[string]string{}
	if err := yaml.Unmarshal(b, &asMap); err == nil {
		*e = asMap
		return nil
	}

	var asList []string
	if err := yaml.Unmarshal(b, &asList); err != nil {
		return fmt.Errorf("environment must be a mapping or a list of KEY=value entries")
	}
	out := make(map[string]string, len(asList))
	for _, kv := range asList {
		key, value, _ := strings.Cut(kv, "=")
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("invalid environment entry %q", kv)
		}
		out[key] = value
	}
	*e = out
	return nil
}

// Command accepts both a shell string and the exec list form
// (["CMD", ...] / ["CMD-SHELL", ...]).
type Command []string

// UnmarshalYAML implements yaml.BytesUnmarshaler.
func (c *Command) UnmarshalYAML(b []byte) error {
	var asList []string
	if err := yaml.Unmarshal(b, &asList); err == nil {
		*c = asList
		return nil
	}

	var asString string
	if err := yaml.Unmarshal(b, &asString); err != nil {
		return fmt.Errorf("healthcheck test must be a string or a list")
	}
	*c = Command{"CMD-SHELL", asString}
	return nil
}

// Condition qualifies a dependency edge.
type Condition struct {
	Condition string `yaml:"condition"`
}

// DependsOn accepts both the short list form (- db) and the long map
// form (db: {condition: service_healthy}). The short form means
// service_started.
type DependsOn map[string]Condition

// UnmarshalYAML implements yaml.BytesUnmarshaler.
func (d *DependsOn) UnmarshalYAML(b []byte) error {
	var asList []string
	if err := yaml.Unmarshal(b, &asList); err == nil {
		out := make(map[string]Condition, len(asList))
		for _, name := range asList {
			out[name] = Condition{Condition: ConditionStarted}
		}
		*d = out
		return nil
	}

	asMap := map[string]Condition{}
	if err := yaml.Unmarshal(b, &asMap); err != nil {
		return fmt.Errorf("depends_on must be a list of names or a mapping with conditions")
	}
	for name, cond := range asMap {
		if cond.Condition == "" {
			asMap[name] = Condition{Condition: ConditionStarted}
		}
	}
	*d = asMap
	return nil
}

// Parse unmarshals manifest bytes (already interpolated) and validates
// the result.
func Parse(b []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the service graph for the invariants the engine relies
// on: every service runs something, every edge points at a declared
// service, healthy edges target probed services, named volume references
// are declared, and the graph is acyclic.
func (m *Manifest) Validate() error {
	if len(m.Services) == 0 {
		return fmt.Errorf("manifest declares no services")
	}

	for _, name := range m.ServiceNames() {
		svc := m.Services[name]
		if svc == nil {
			return fmt.Errorf("service %q is empty", name)
		}
		if svc.Image == "" && svc.Build == nil {
			return fmt.Errorf("service %q has neither image nor build", name)
		}

		for dep, cond := range svc.DependsOn {
			target, ok := m.Services[dep]
			if !ok {
				return fmt.Errorf("service %q depends on undeclared service %q", name, dep)
			}
			switch cond.Condition {
			case ConditionStarted:
			case ConditionHealthy:
				if target == nil || target.Healthcheck == nil {
					return fmt.Errorf("service %q requires %q to be healthy, but %q declares no healthcheck", name, dep, dep)
				}
			default:
				return fmt.Errorf("service %q: unsupported depends_on condition %q for %q", name, cond.Condition, dep)
			}
		}

		for _, vol := range svc.Volumes {
			source, _, ok := strings.Cut(vol, ":")
			if !ok {
				return fmt.Errorf("service %q: invalid volume spec %q", name, vol)
			}
			if isNamedVolume(source) {
				if _, declared := m.Volumes[source]; !declared {
					return fmt.Errorf("service %q references undeclared volume %q", name, source)
				}
			}
		}
	}

	_, err := m.TopoSort()
	return err
}

// ServiceNames returns service names in deterministic order.
func (m *Manifest) ServiceNames() []string {
	names := make([]string, 0, len(m.Services))
	for name := range m.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// VolumeNames returns declared volume names in deterministic order.
func (m *Manifest) VolumeNames() []string {
	names := make([]string, 0, len(m.Volumes))
	for name := range m.Volumes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// isNamedVolume distinguishes a named volume reference from a host bind
// mount in the short volume syntax.
func isNamedVolume(source string) bool {
	return !strings.HasPrefix(source, "/") &&
		!strings.HasPrefix(source, "./") &&
		!strings.HasPrefix(source, "../") &&
		!strings.HasPrefix(source, "~")
}
