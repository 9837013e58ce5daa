//go:build !integration

package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validManifest = `
services:
  - type: web
    name: bot
    runtime: go
    buildCommand: go build -o bin/app ./cmd/app
    startCommand: ./bin/app
    healthCheckPath: /healthz
    envVars:
      - key: LOG_LEVEL
        value: info
      - key: WEBHOOK_SECRET
        generateValue: true
      - fromGroup: secrets
envVarGroups:
  - name: secrets
    envVars:
      - key: TELEGRAM_BOT_TOKEN
        sync: false
`

func TestParse(t *testing.T) {
	t.Run("should decode a valid manifest", func(t *testing.T) {
		m, err := Parse([]byte(validManifest))
		require.NoError(t, err)
		require.NoError(t, m.Validate())

		s, ok := m.Service("bot")
		require.True(t, ok)
		assert.Equal(t, "/healthz", s.HealthCheckPath)
		require.Len(t, s.EnvVars, 3)
		assert.Equal(t, ProvenanceLiteral, s.EnvVars[0].Provenance())
		assert.Equal(t, ProvenanceGenerated, s.EnvVars[1].Provenance())
		assert.Equal(t, ProvenanceGroup, s.EnvVars[2].Provenance())
		assert.Equal(t, 10, s.EnvVars[0].Line())
	})

	t.Run("should report duplicate keys with lines", func(t *testing.T) {
		src := `
services:
  - type: web
    name: bot
    name: bot2
    runtime: go
services: []
`
		_, err := Parse([]byte(src))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 5: services[0].name: duplicate key (first defined at line 4)")
		assert.Contains(t, err.Error(), "line 7: services: duplicate key (first defined at line 2)")

		var p Problem
		assert.True(t, errors.As(err, &p))
	})

	t.Run("should reject malformed yaml", func(t *testing.T) {
		_, err := Parse([]byte("services: [\n  - oops"))
		assert.Error(t, err)
	})

	t.Run("should reject empty input and non-mapping roots", func(t *testing.T) {
		_, err := Parse(nil)
		assert.ErrorIs(t, err, ErrEmpty)

		_, err = Parse([]byte("- a\n- b\n"))
		assert.ErrorContains(t, err, "top level must be a mapping")
	})

	t.Run("should treat an explicit empty value as literal", func(t *testing.T) {
		m, err := Parse([]byte(`
services:
  - type: worker
    name: w
    runtime: go
    startCommand: ./w
    envVars:
      - key: EMPTY
        value: ""
`))
		require.NoError(t, err)
		assert.Equal(t, ProvenanceLiteral, m.Services[0].EnvVars[0].Provenance())
		assert.NoError(t, m.Validate())
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "no services",
			src:  "services: []\n",
			want: []string{"at least one service is required"},
		},
		{
			name: "missing required fields",
			src:  "services:\n  - type: web\n",
			want: []string{"name: cannot be blank", "runtime: cannot be blank", "startCommand: cannot be blank", "healthCheckPath: cannot be blank"},
		},
		{
			name: "unknown type and runtime",
			src:  "services:\n  - type: lambda\n    name: x\n    runtime: cobol\n    startCommand: run\n",
			want: []string{"type: must be a valid value", "runtime: must be a valid value"},
		},
		{
			name: "health path without slash",
			src:  "services:\n  - type: web\n    name: x\n    runtime: go\n    startCommand: run\n    healthCheckPath: healthz\n",
			want: []string{"healthCheckPath: must start with /"},
		},
		{
			name: "cron without schedule",
			src:  "services:\n  - type: cron\n    name: x\n    runtime: go\n    startCommand: run\n",
			want: []string{"schedule: cannot be blank"},
		},
		{
			name: "duplicate service names",
			src:  "services:\n  - {type: worker, name: x, runtime: go, startCommand: a}\n  - {type: worker, name: x, runtime: go, startCommand: b}\n",
			want: []string{"line 3: service x: duplicate service name (first at line 2)"},
		},
		{
			name: "env var provenance",
			src: `services:
  - type: worker
    name: x
    runtime: go
    startCommand: run
    envVars:
      - key: NONE
      - key: BOTH
        value: a
        generateValue: true
      - value: orphan
      - key: 1BAD
        value: a
      - key: DUP
        value: a
      - key: DUP
        value: b
`,
			want: []string{
				"line 7: service x env NONE: exactly one of",
				"line 8: service x env BOTH: exactly one of",
				"line 11: service x envVars[2]: key: cannot be blank",
				"env 1BAD: key: must be a valid environment variable name",
				"line 16: service x env DUP: duplicate env var key (first at line 14)",
			},
		},
		{
			name: "unknown group",
			src:  "services:\n  - type: worker\n    name: x\n    runtime: go\n    startCommand: run\n    envVars:\n      - fromGroup: nope\nenvVarGroups:\n  - name: secrets\n    envVars: []\n",
			want: []string{`unknown group "nope"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse([]byte(tt.src))
			require.NoError(t, err)
			err = m.Validate()
			require.Error(t, err)
			for _, w := range tt.want {
				assert.Contains(t, err.Error(), w)
			}
		})
	}
}

func TestCheckEnv(t *testing.T) {
	m, err := Parse([]byte(validManifest))
	require.NoError(t, err)

	env := map[string]string{"LOG_LEVEL": "info", "TELEGRAM_BOT_TOKEN": " "}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	t.Run("should list missing and blank keys including group keys", func(t *testing.T) {
		missing, err := m.CheckEnv("bot", lookup)
		require.NoError(t, err)
		assert.Equal(t, []string{"TELEGRAM_BOT_TOKEN", "WEBHOOK_SECRET"}, missing)
	})

	t.Run("should fail for an unknown service", func(t *testing.T) {
		_, err := m.CheckEnv("nope", lookup)
		assert.Error(t, err)
	})
}

func TestRepositoryManifest(t *testing.T) {
	m, err := Load(filepath.Join("..", "..", "render.yaml"))
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	s, ok := m.Service("telegram-order-bot")
	require.True(t, ok)
	assert.Equal(t, "/healthz", s.HealthCheckPath)
	assert.True(t, strings.HasPrefix(s.StartCommand, "./bin/app"))

	keys := m.EnvKeys(s)
	for _, k := range []string{"TELEGRAM_BOT_TOKEN", "ADMIN_EMAIL", "EMAIL_PASSWORD", "WEBHOOK_SECRET"} {
		assert.Contains(t, keys, k)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "render.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
