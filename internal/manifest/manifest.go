// Package manifest reads and lints the hosting platform blueprint
// (render.yaml) that deploys the bot.
package manifest

import "sort"

type Provenance string

const (
	ProvenanceLiteral   Provenance = "literal"
	ProvenanceGroup     Provenance = "group"
	ProvenanceGenerated Provenance = "generated"
	// ProvenanceManual marks `sync: false`: the value is typed into the dashboard.
	ProvenanceManual Provenance = "manual"
	ProvenanceNone   Provenance = ""
)

type Manifest struct {
	Services     []Service     `yaml:"services"`
	EnvVarGroups []EnvVarGroup `yaml:"envVarGroups,omitempty"`
}

type Service struct {
	Type            string   `yaml:"type" json:"type"`
	Name            string   `yaml:"name" json:"name"`
	Runtime         string   `yaml:"runtime" json:"runtime"`
	Plan            string   `yaml:"plan,omitempty" json:"plan,omitempty"`
	Region          string   `yaml:"region,omitempty" json:"region,omitempty"`
	BuildCommand    string   `yaml:"buildCommand,omitempty" json:"buildCommand,omitempty"`
	StartCommand    string   `yaml:"startCommand" json:"startCommand"`
	HealthCheckPath string   `yaml:"healthCheckPath,omitempty" json:"healthCheckPath,omitempty"`
	Schedule        string   `yaml:"schedule,omitempty" json:"schedule,omitempty"`
	EnvVars         []EnvVar `yaml:"envVars,omitempty" json:"envVars,omitempty"`

	line int
}

type EnvVarGroup struct {
	Name    string   `yaml:"name"`
	EnvVars []EnvVar `yaml:"envVars"`

	line int
}

// EnvVar is one entry of envVars. A fromGroup entry without a key imports
// every variable of the group.
type EnvVar struct {
	Key           string `yaml:"key,omitempty"`
	Value         string `yaml:"value,omitempty"`
	FromGroup     string `yaml:"fromGroup,omitempty"`
	GenerateValue bool   `yaml:"generateValue,omitempty"`
	Sync          *bool  `yaml:"sync,omitempty"`

	hasValue bool
	line     int
}

// Provenance reports where the value comes from, or ProvenanceNone when the
// entry declares zero or several sources.
func (e EnvVar) Provenance() Provenance {
	var found []Provenance
	if e.hasValue || e.Value != "" {
		found = append(found, ProvenanceLiteral)
	}
	if e.FromGroup != "" {
		found = append(found, ProvenanceGroup)
	}
	if e.GenerateValue {
		found = append(found, ProvenanceGenerated)
	}
	if e.Sync != nil && !*e.Sync {
		found = append(found, ProvenanceManual)
	}
	if len(found) != 1 {
		return ProvenanceNone
	}
	return found[0]
}

// Line is the 1-based line of the entry in the source, 0 when built in code.
func (e EnvVar) Line() int { return e.line }

func (s Service) Line() int { return s.line }

func (m *Manifest) Service(name string) (*Service, bool) {
	for i := range m.Services {
		if m.Services[i].Name == name {
			return &m.Services[i], true
		}
	}
	return nil, false
}

func (m *Manifest) Group(name string) (*EnvVarGroup, bool) {
	for i := range m.EnvVarGroups {
		if m.EnvVarGroups[i].Name == name {
			return &m.EnvVarGroups[i], true
		}
	}
	return nil, false
}

// EnvKeys lists every variable the service will see, including those
// imported from groups defined in the same manifest. Sorted, unique.
func (m *Manifest) EnvKeys(s *Service) []string {
	seen := map[string]struct{}{}
	for _, e := range s.EnvVars {
		if e.Key != "" {
			seen[e.Key] = struct{}{}
			continue
		}
		if e.FromGroup == "" {
			continue
		}
		if g, ok := m.Group(e.FromGroup); ok {
			for _, ge := range g.EnvVars {
				if ge.Key != "" {
					seen[ge.Key] = struct{}{}
				}
			}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
