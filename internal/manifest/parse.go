package manifest

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Problem is one finding, tied to a source line when known.
type Problem struct {
	Line int
	Path string
	Msg  string
}

func (p Problem) Error() string {
	switch {
	case p.Line > 0 && p.Path != "":
		return fmt.Sprintf("line %d: %s: %s", p.Line, p.Path, p.Msg)
	case p.Line > 0:
		return fmt.Sprintf("line %d: %s", p.Line, p.Msg)
	case p.Path != "":
		return fmt.Sprintf("%s: %s", p.Path, p.Msg)
	}
	return p.Msg
}

var ErrEmpty = errors.New("manifest is empty")

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(b)
}

// Parse decodes b. Duplicate mapping keys at any depth are collected and
// returned together (joined) before any decoding happens.
func Parse(b []byte) (*Manifest, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(b, &root); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil, ErrEmpty
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, Problem{Line: doc.Line, Msg: "top level must be a mapping"}
	}

	if probs := duplicateKeys(doc, ""); len(probs) > 0 {
		return nil, joinProblems(probs)
	}

	var m Manifest
	if err := doc.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	annotate(doc, &m)
	return &m, nil
}

func duplicateKeys(n *yaml.Node, path string) []Problem {
	var out []Problem
	switch n.Kind {
	case yaml.MappingNode:
		seen := make(map[string]int, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if first, dup := seen[k.Value]; dup {
				out = append(out, Problem{
					Line: k.Line,
					Path: join(path, k.Value),
					Msg:  fmt.Sprintf("duplicate key (first defined at line %d)", first),
				})
			} else {
				seen[k.Value] = k.Line
			}
			out = append(out, duplicateKeys(v, join(path, k.Value))...)
		}
	case yaml.SequenceNode:
		for i, c := range n.Content {
			out = append(out, duplicateKeys(c, fmt.Sprintf("%s[%d]", path, i))...)
		}
	}
	return out
}

// annotate copies source lines (and whether `value` was present at all) into
// the decoded structs so later checks can point at the offending entry.
func annotate(doc *yaml.Node, m *Manifest) {
	services := mappingValue(doc, "services")
	if services != nil && services.Kind == yaml.SequenceNode {
		for i, sn := range services.Content {
			if i >= len(m.Services) {
				break
			}
			m.Services[i].line = sn.Line
			annotateEnv(mappingValue(sn, "envVars"), m.Services[i].EnvVars)
		}
	}
	groups := mappingValue(doc, "envVarGroups")
	if groups != nil && groups.Kind == yaml.SequenceNode {
		for i, gn := range groups.Content {
			if i >= len(m.EnvVarGroups) {
				break
			}
			m.EnvVarGroups[i].line = gn.Line
			annotateEnv(mappingValue(gn, "envVars"), m.EnvVarGroups[i].EnvVars)
		}
	}
}

func annotateEnv(seq *yaml.Node, vars []EnvVar) {
	if seq == nil || seq.Kind != yaml.SequenceNode {
		return
	}
	for i, en := range seq.Content {
		if i >= len(vars) {
			break
		}
		vars[i].line = en.Line
		vars[i].hasValue = mappingValue(en, "value") != nil
	}
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func joinProblems(ps []Problem) error {
	errs := make([]error, len(ps))
	for i, p := range ps {
		errs[i] = p
	}
	return errors.Join(errs...)
}
