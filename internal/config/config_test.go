package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
server:
  host: 0.0.0.0
  port: 8080
database:
  host: localhost
  user: melange
  database: melange
jwt:
  secret: 0123456789abcdef0123456789abcdef
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 3, cfg.Database.TxMaxAttempts)
	assert.Equal(t, "log", cfg.Email.Provider)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.False(t, cfg.Connections.DemoteOnRegression)
	assert.Equal(t, 7*24*time.Hour, cfg.AnonymousInviteTTL())
	assert.Equal(t, 1000, cfg.Connections.MessageListLimit)
	assert.Equal(t, 5, cfg.Dispatcher.MaxAttempts)
	assert.Equal(t, 300, cfg.Dispatcher.LeaseSeconds)
	assert.Equal(t, "0 0 2 * * *", cfg.Scheduler.ExpireAnonymousConnections)
	assert.Equal(t, "", cfg.GetGRPCAddress())
	assert.Equal(t, "postgres://melange:@localhost:5432/melange?sslmode=disable", cfg.GetDatabaseConnectionString())
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("CONNECTIONS_DEMOTE_ON_REGRESSION", "true")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.True(t, cfg.Connections.DemoteOnRegression)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing port", "database: {host: h, user: u, database: d}\njwt: {secret: 0123456789abcdef0123456789abcdef}"},
		{"short secret", "server: {port: 1}\ndatabase: {host: h, user: u, database: d}\njwt: {secret: short}"},
		{"sendgrid without key", minimalYAML + "email:\n  provider: sendgrid\n"},
		{"unknown provider", minimalYAML + "email:\n  provider: pigeon\n"},
		{"bad yaml", "server: ["},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML+"program:\n  mentor_welcome_message: Welcome aboard\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Welcome aboard", cfg.Program.MentorWelcomeMessage)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestGetSecurityLevel(t *testing.T) {
	assert.Equal(t, SecurityPublic, GetSecurityLevel("Health"))
	assert.Equal(t, SecurityPublic, GetSecurityLevel("/grpc.health.v1.Health/Check"))
	assert.Equal(t, SecurityAccess, GetSecurityLevel("SelectOrgRole"))
	// Unknown routes require a token.
	assert.Equal(t, SecurityAccess, GetSecurityLevel("SomethingNew"))
	assert.Equal(t, SecurityAccess, GetSecurityLevel(""))
}
