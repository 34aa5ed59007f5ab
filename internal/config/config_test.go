package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, EnvLocal, cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "todo_assistant.db", cfg.DatabaseURL)
	assert.Equal(t, "#todolist", cfg.ActivationKeyword)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 60*time.Second, cfg.EnhanceTimeout)
	assert.False(t, cfg.WhatsAppConfigured())
}

func TestLoadChatWebhookFallsBackToEnrichWebhook(t *testing.T) {
	t.Setenv("N8N_WEBHOOK_URL", "http://n8n.local/hook")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://n8n.local/hook", cfg.ChatWebhookURL)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("ENV", "prod")
	t.Setenv("ZAPI_INSTANCE_ID", "inst")
	t.Setenv("ZAPI_TOKEN", "tok")
	t.Setenv("ZAPI_BASE_URL", "https://zapi.example/")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, EnvProd, cfg.Env)
	assert.True(t, cfg.WhatsAppConfigured())
	assert.Equal(t, "https://zapi.example", cfg.ZAPIBaseURL)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_ADDR: \":9090\"\nACTIVATION_KEYWORD: \"#tasks\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "#tasks", cfg.ActivationKeyword)
}

func TestLoadRejectsUnknownEnv(t *testing.T) {
	t.Setenv("ENV", "staging")

	_, err := Load("")
	require.Error(t, err)
}
