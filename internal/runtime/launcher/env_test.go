package launcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildEnv(t *testing.T) {
	base := []string{
		"PATH=/usr/bin",
		"OPENAI_API_KEY=sk-1",
		"github_token=ghp",
		"HOME=/home/dev",
		"AWS_SECRET_ACCESS_KEY=abc",
		"MALFORMED",
		"PATH=/usr/local/bin",
	}

	t.Run("strip disabled", func(t *testing.T) {
		env := BuildEnv(base, EnvPolicy{Patterns: DefaultStripPatterns}, nil)
		assert.Contains(t, env, "OPENAI_API_KEY=sk-1")
		assert.Contains(t, env, "PATH=/usr/local/bin")
		assert.NotContains(t, env, "PATH=/usr/bin")
		assert.NotContains(t, env, "MALFORMED")
	})

	t.Run("strip enabled", func(t *testing.T) {
		env := BuildEnv(base, EnvPolicy{Strip: true, Patterns: DefaultStripPatterns}, nil)
		assert.Equal(t, []string{"PATH=/usr/local/bin", "HOME=/home/dev"}, env)
	})

	t.Run("overrides win and are kept", func(t *testing.T) {
		env := BuildEnv(base, EnvPolicy{Strip: true, Patterns: DefaultStripPatterns}, map[string]string{
			"HOME":         "/tmp/h",
			"DEPLOY_TOKEN": "explicit",
			"A":            "1",
		})
		assert.Equal(t, []string{"PATH=/usr/local/bin", "HOME=/tmp/h", "A=1", "DEPLOY_TOKEN=explicit"}, env)
	})
}

func TestEnvPolicyStripped(t *testing.T) {
	p := EnvPolicy{Strip: true, Patterns: []string{"*_SECRET", "DB_*"}}
	assert.True(t, p.Stripped("app_secret"))
	assert.True(t, p.Stripped("DB_URL"))
	assert.False(t, p.Stripped("SECRETARY"))
	assert.False(t, EnvPolicy{Patterns: p.Patterns}.Stripped("DB_URL"))
}
