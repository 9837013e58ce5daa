package manifest

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	ServiceTypes = []interface{}{"web", "worker", "pserv", "cron"}
	Runtimes     = []interface{}{"go", "python", "node", "docker", "image", "ruby", "rust", "elixir"}

	envKeyRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Validate checks every service and group and the cross-entry rules
// (unique names, unique env keys, known groups). All problems are returned
// together.
func (m *Manifest) Validate() error {
	var errs []error
	if len(m.Services) == 0 {
		errs = append(errs, Problem{Path: "services", Msg: "at least one service is required"})
	}

	names := map[string]int{}
	for i := range m.Services {
		s := &m.Services[i]
		path := fmt.Sprintf("services[%d]", i)
		if s.Name != "" {
			path = "service " + s.Name
		}
		if err := s.Validate(); err != nil {
			errs = append(errs, Problem{Line: s.line, Path: path, Msg: flatten(err)})
		}
		if s.Name != "" {
			if first, dup := names[s.Name]; dup {
				errs = append(errs, Problem{Line: s.line, Path: path, Msg: fmt.Sprintf("duplicate service name (first at line %d)", first)})
			} else {
				names[s.Name] = s.line
			}
		}
		errs = append(errs, envProblems(path, s.EnvVars, m)...)
	}

	groups := map[string]struct{}{}
	for i := range m.EnvVarGroups {
		g := &m.EnvVarGroups[i]
		path := fmt.Sprintf("envVarGroups[%d]", i)
		if g.Name == "" {
			errs = append(errs, Problem{Line: g.line, Path: path, Msg: "name: cannot be blank"})
			continue
		}
		path = "group " + g.Name
		if _, dup := groups[g.Name]; dup {
			errs = append(errs, Problem{Line: g.line, Path: path, Msg: "duplicate group name"})
		}
		groups[g.Name] = struct{}{}
		for _, e := range g.EnvVars {
			if e.FromGroup != "" {
				errs = append(errs, Problem{Line: e.line, Path: path, Msg: "groups cannot reference other groups"})
			}
		}
		errs = append(errs, envProblems(path, g.EnvVars, nil)...)
	}
	return errors.Join(errs...)
}

// Validate checks a single service in isolation.
func (s Service) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Type, validation.Required, validation.In(ServiceTypes...)),
		validation.Field(&s.Name, validation.Required),
		validation.Field(&s.Runtime, validation.Required, validation.In(Runtimes...)),
		validation.Field(&s.StartCommand, validation.Required),
		validation.Field(&s.HealthCheckPath,
			validation.When(s.Type == "web", validation.Required),
			validation.By(func(v interface{}) error {
				p, _ := v.(string)
				if p != "" && !strings.HasPrefix(p, "/") {
					return validation.NewError("validation_path", "must start with /")
				}
				return nil
			}),
		),
		validation.Field(&s.Schedule, validation.When(s.Type == "cron", validation.Required)),
	)
}

func envProblems(path string, vars []EnvVar, m *Manifest) []error {
	var errs []error
	keys := map[string]int{}
	for i, e := range vars {
		at := fmt.Sprintf("%s envVars[%d]", path, i)
		if e.Key != "" {
			at = fmt.Sprintf("%s env %s", path, e.Key)
		}
		prov := e.Provenance()
		switch {
		case prov == ProvenanceNone:
			errs = append(errs, Problem{Line: e.line, Path: at, Msg: "exactly one of value, fromGroup, generateValue or sync: false is required"})
		case e.Key == "" && prov != ProvenanceGroup:
			errs = append(errs, Problem{Line: e.line, Path: at, Msg: "key: cannot be blank"})
		case e.Key != "" && !envKeyRe.MatchString(e.Key):
			errs = append(errs, Problem{Line: e.line, Path: at, Msg: "key: must be a valid environment variable name"})
		}
		if prov == ProvenanceGroup && m != nil && len(m.EnvVarGroups) > 0 {
			if _, ok := m.Group(e.FromGroup); !ok {
				errs = append(errs, Problem{Line: e.line, Path: at, Msg: fmt.Sprintf("unknown group %q", e.FromGroup)})
			}
		}
		if e.Key == "" {
			continue
		}
		if first, dup := keys[e.Key]; dup {
			errs = append(errs, Problem{Line: e.line, Path: at, Msg: fmt.Sprintf("duplicate env var key (first at line %d)", first)})
		} else {
			keys[e.Key] = e.line
		}
	}
	return errs
}

// flatten renders ozzo's per-field Errors in a stable order on one line.
func flatten(err error) string {
	var ve validation.Errors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	fields := make([]string, 0, len(ve))
	for f := range ve {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+ve[f].Error())
	}
	return strings.Join(parts, "; ")
}
