package manifest

import (
	"fmt"
	"strings"
)

// CheckEnv lists the keys declared for service that lookup cannot find or
// finds empty. Generated and group values are expected to be injected by
// the platform, so they count too.
func (m *Manifest) CheckEnv(service string, lookup func(string) (string, bool)) ([]string, error) {
	s, ok := m.Service(service)
	if !ok {
		return nil, fmt.Errorf("service %q is not declared", service)
	}
	var missing []string
	for _, key := range m.EnvKeys(s) {
		if v, ok := lookup(key); !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, key)
		}
	}
	return missing, nil
}
