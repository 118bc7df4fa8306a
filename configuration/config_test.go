package configuration_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"

	"ec2emulator/configuration"
)

// createTempEnvFile writes a temporary .env file and returns its path
func createTempEnvFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write temp env file: %v", err)
	}
	return path
}

func TestInitialize_TableDriven(t *testing.T) {
	seedPath := filepath.Join(t.TempDir(), "seed.hcl")
	if err := os.WriteFile(seedPath, []byte(`vpc "main" { cidr_block = "10.0.0.0/16" }`), 0o600); err != nil {
		t.Fatalf("failed to write seed file: %v", err)
	}

	tests := []struct {
		name       string
		env        map[string]string
		envFile    string // if set, will write a .env file with this content
		expectErr  bool
		assertions func(*testing.T, *configuration.Config)
	}{
		{
			name:      "Defaults",
			expectErr: false,
			assertions: func(t *testing.T, cfg *configuration.Config) {
				assert.Equal(t, ":8000", cfg.ListenAddr)
				assert.Equal(t, "us-east-1", cfg.AWSRegion)
				assert.Equal(t, "123456789012", cfg.AccountID)
				assert.Equal(t, 100, cfg.DefaultMaxResults)
				assert.Equal(t, 60, cfg.IntegrityCheckInterval)
				assert.Equal(t, 5, cfg.ShutdownTimeout)
				assert.True(t, cfg.MetricsEnabled)
				assert.Empty(t, cfg.SeedFile)
			},
		},
		{
			name: "Valid configuration from environment variables",
			env: map[string]string{
				"LISTEN_ADDR":                      "127.0.0.1:9999",
				"AWS_REGION":                       "eu-west-1",
				"ACCOUNT_ID":                       "000000000000",
				"LOG_LEVEL":                        "debug",
				"DEFAULT_MAX_RESULTS":              "25",
				"SEED_FILE":                        seedPath,
				"INTEGRITY_CHECK_INTERVAL_SECONDS": "0",
				"SHUTDOWN_TIMEOUT_SECONDS":         "2",
				"METRICS_ENABLED":                  "false",
				"EMULATOR_URL":                     "http://127.0.0.1:9999",
				"AWS_ACCESS_KEY_ID":                "AKIAEXAMPLE",
				"AWS_SECRET_ACCESS_KEY":            "secret123",
			},
			expectErr: false,
			assertions: func(t *testing.T, cfg *configuration.Config) {
				assert.Equal(t, "127.0.0.1:9999", cfg.ListenAddr)
				assert.Equal(t, "eu-west-1", cfg.AWSRegion)
				assert.Equal(t, "000000000000", cfg.AccountID)
				assert.Equal(t, "debug", cfg.LogLevel)
				assert.Equal(t, 25, cfg.DefaultMaxResults)
				assert.Equal(t, seedPath, cfg.SeedFile)
				assert.Equal(t, 0, cfg.IntegrityCheckInterval)
				assert.Equal(t, 2, cfg.ShutdownTimeout)
				assert.False(t, cfg.MetricsEnabled)
				assert.Equal(t, "http://127.0.0.1:9999", cfg.EmulatorURL)
				assert.Equal(t, "AKIAEXAMPLE", cfg.AccessKeyID)
				assert.Equal(t, "secret123", cfg.AccessSecret)
			},
		},
		{
			name: "Configuration from temp .env file",
			envFile: `
LISTEN_ADDR=:7000
AWS_REGION=ap-south-1
ACCOUNT_ID=111122223333
DEFAULT_MAX_RESULTS=10
INTEGRITY_CHECK_INTERVAL_SECONDS=15
`,
			expectErr: false,
			assertions: func(t *testing.T, cfg *configuration.Config) {
				assert.Equal(t, ":7000", cfg.ListenAddr)
				assert.Equal(t, "ap-south-1", cfg.AWSRegion)
				assert.Equal(t, "111122223333", cfg.AccountID)
				assert.Equal(t, 10, cfg.DefaultMaxResults)
				assert.Equal(t, 15, cfg.IntegrityCheckInterval)
			},
		},
		{
			name:      "Invalid ACCOUNT_ID from env",
			env:       map[string]string{"ACCOUNT_ID": "12345"},
			expectErr: true,
		},
		{
			name:      "Invalid DEFAULT_MAX_RESULTS from env",
			env:       map[string]string{"DEFAULT_MAX_RESULTS": "0"},
			expectErr: true,
		},
		{
			name:      "Negative INTEGRITY_CHECK_INTERVAL_SECONDS from env",
			env:       map[string]string{"INTEGRITY_CHECK_INTERVAL_SECONDS": "-1"},
			expectErr: true,
		},
		{
			name:      "Missing SEED_FILE",
			env:       map[string]string{"SEED_FILE": filepath.Join(t.TempDir(), "missing.hcl")},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			defer viper.Reset()

			if tt.envFile != "" {
				viper.SetConfigFile(createTempEnvFile(t, tt.envFile))
			}

			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := configuration.Initialize()
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			if tt.assertions != nil {
				tt.assertions(t, cfg)
			}
		})
	}
}
