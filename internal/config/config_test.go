package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
listenAddr: ":8080"
zoho:
  clientID: file-client
  clientSecret: file-secret
  redirectURI: https://example.com/auth/callback
`)
	t.Setenv("ZOHO_CLIENT_ID", "env-client")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "env-client", cfg.Zoho.ClientID)
	assert.Equal(t, "file-secret", cfg.Zoho.ClientSecret)
	assert.Equal(t, "sk-test", cfg.AI.APIKey)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "http://127.0.0.1:8080/auth", cfg.Endpoints.Auth)
	assert.Equal(t, "http://127.0.0.1:8080/financial", cfg.Endpoints.Financial)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, AllServices, cfg.Services)
	assert.Equal(t, []string{DefaultZohoScope}, cfg.Zoho.Scope)
	assert.Equal(t, int64(DefaultBufferSeconds), cfg.Zoho.BufferSeconds)
	assert.Equal(t, DefaultTextModel, cfg.AI.TextModel)
	assert.Equal(t, BackendSQL, cfg.Datastore.Backend)
}

func TestLoadConfig_PrefixedEnvWithoutFile(t *testing.T) {
	t.Setenv("KBOOKS_AI_TEXTMODEL", "gpt-4o")
	t.Setenv("KBOOKS_TEMPLATEDIR", "/srv/tmpl")
	t.Setenv("KBOOKS_MYSQL_TABLEPREFIX", "kb_")
	t.Setenv("KBOOKS_ZOHO_BUFFERSECONDS", "120")
	t.Setenv("KBOOKS_SERVICES", "auth,memory")
	t.Setenv("KBOOKS_MASTER_KEY", "master-from-alias")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.AI.TextModel)
	assert.Equal(t, "/srv/tmpl", cfg.TemplateDir)
	assert.Equal(t, "kb_", cfg.MySQL.TablePrefix)
	assert.Equal(t, int64(120), cfg.Zoho.BufferSeconds)
	assert.Equal(t, []string{ServiceAuth, ServiceMemory}, cfg.Services)
	assert.Equal(t, "master-from-alias", cfg.MasterKey)
}

func TestConfigKeys_CoversNestedFields(t *testing.T) {
	keys := configKeys(reflect.TypeOf(Config{}), "")

	assert.Contains(t, keys, "templateDir")
	assert.Contains(t, keys, "ai.textModel")
	assert.Contains(t, keys, "zoho.booksAPIBaseURL")
	assert.Contains(t, keys, "redis.clusterMode")
	assert.NotContains(t, keys, "zoho")
	for key := range envBindings {
		assert.Contains(t, keys, key)
	}
}

func TestValidate_FailsFastPerService(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		expected error
	}{
		{
			name:     "auth without credentials",
			cfg:      Config{Services: []string{ServiceAuth}},
			expected: ErrIncompleteOAuthConfig,
		},
		{
			name:     "auth missing redirect uri",
			cfg:      Config{Services: []string{ServiceAuth}, Zoho: ZohoConfig{ClientID: "id", ClientSecret: "secret"}},
			expected: ErrIncompleteOAuthConfig,
		},
		{
			name:     "voice without ai key",
			cfg:      Config{Services: []string{ServiceVoice}},
			expected: ErrMissingAIKey,
		},
		{
			name:     "financial without auth endpoint",
			cfg:      Config{Services: []string{ServiceFinancial}},
			expected: ErrMissingAuthServiceURL,
		},
		{
			name:     "memory needs nothing",
			cfg:      Config{Services: []string{ServiceMemory}},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.cfg.Validate(), tt.expected)
		})
	}
}

func TestSanitize_RejectsBadSettings(t *testing.T) {
	cfg := Config{Services: []string{"billing"}}
	assert.ErrorIs(t, cfg.Sanitize(), ErrUnknownService)

	cfg = Config{Datastore: DatastoreConfig{Backend: "mongo"}}
	assert.ErrorIs(t, cfg.Sanitize(), ErrUnknownBackend)

	cfg = Config{MySQL: MySQLConfig{Dsn: "not a dsn"}}
	assert.Error(t, cfg.Sanitize())

	cfg = Config{Datastore: DatastoreConfig{Backend: BackendRedis}}
	assert.Error(t, cfg.Sanitize())
}
