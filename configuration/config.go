package configuration

import (
	"os"
	"regexp"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"ec2emulator/errors"
)

const (
	packageName = "configuration"
)

var accountIDPattern = regexp.MustCompile(`^[0-9]{12}$`)

// Config holds the application configuration
type Config struct {
	ListenAddr             string
	AWSRegion              string
	AccountID              string
	LogLevel               string
	DefaultMaxResults      int
	SeedFile               string
	IntegrityCheckInterval int
	ShutdownTimeout        int
	MetricsEnabled         bool
	EmulatorURL            string
	AccessKeyID            string
	AccessSecret           string
}

// Initialize sets up the configuration system
func Initialize() (*Config, error) {
	logger := zap.L().With(
		zap.String("package", packageName),
		zap.String("function", "Initialize"),
	)

	viper.SetDefault("LISTEN_ADDR", ":8000")
	viper.SetDefault("AWS_REGION", "us-east-1")
	viper.SetDefault("ACCOUNT_ID", "123456789012")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DEFAULT_MAX_RESULTS", 100)
	viper.SetDefault("SEED_FILE", "")
	viper.SetDefault("INTEGRITY_CHECK_INTERVAL_SECONDS", 60)
	viper.SetDefault("SHUTDOWN_TIMEOUT_SECONDS", 5)
	viper.SetDefault("METRICS_ENABLED", true)
	viper.SetDefault("EMULATOR_URL", "http://localhost:8000")
	viper.SetDefault("AWS_ACCESS_KEY_ID", "test")
	viper.SetDefault("AWS_SECRET_ACCESS_KEY", "test")

	viper.AutomaticEnv()

	// Tests point viper at a temp file before calling Initialize.
	if viper.ConfigFileUsed() == "" {
		viper.SetConfigFile(".env")
	}
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, errors.New(errors.ErrConfigParse, "error reading config file",
				map[string]interface{}{
					"config_file": viper.ConfigFileUsed(),
				}, err)
		}
		logger.Info("No .env file found, using environment variables and defaults",
			zap.String("operation", "config_loading"),
		)
	}

	listenAddr := viper.GetString("LISTEN_ADDR")
	if listenAddr == "" {
		return nil, errors.New(errors.ErrConfigInvalid, "invalid LISTEN_ADDR",
			map[string]interface{}{
				"config_key": "LISTEN_ADDR",
			}, nil)
	}
	logger.Info("Listen address configured",
		zap.String("addr", listenAddr),
		zap.String("operation", "config_validation"),
	)

	region := viper.GetString("AWS_REGION")
	if region == "" {
		return nil, errors.New(errors.ErrConfigInvalid, "invalid AWS_REGION",
			map[string]interface{}{
				"config_key": "AWS_REGION",
			}, nil)
	}

	accountID := viper.GetString("ACCOUNT_ID")
	if !accountIDPattern.MatchString(accountID) {
		return nil, errors.New(errors.ErrConfigInvalid, "invalid ACCOUNT_ID",
			map[string]interface{}{
				"config_key": "ACCOUNT_ID",
				"value":      accountID,
			}, nil)
	}
	logger.Info("Account configured",
		zap.String("region", region),
		zap.String("account_id", accountID),
		zap.String("operation", "config_validation"),
	)

	maxResults := viper.GetInt("DEFAULT_MAX_RESULTS")
	if maxResults <= 0 {
		return nil, errors.New(errors.ErrConfigInvalid, "invalid DEFAULT_MAX_RESULTS",
			map[string]interface{}{
				"config_key": "DEFAULT_MAX_RESULTS",
				"value":      maxResults,
			}, nil)
	}

	seedFile := viper.GetString("SEED_FILE")
	if seedFile != "" {
		if _, err := os.Stat(seedFile); err != nil {
			return nil, errors.New(errors.ErrConfigInvalid, "invalid SEED_FILE",
				map[string]interface{}{
					"config_key": "SEED_FILE",
					"value":      seedFile,
				}, err)
		}
		logger.Info("Seed file configured",
			zap.String("path", seedFile),
			zap.String("operation", "config_validation"),
		)
	}

	interval := viper.GetInt("INTEGRITY_CHECK_INTERVAL_SECONDS")
	if interval < 0 {
		return nil, errors.New(errors.ErrConfigInvalid, "invalid INTEGRITY_CHECK_INTERVAL_SECONDS",
			map[string]interface{}{
				"config_key": "INTEGRITY_CHECK_INTERVAL_SECONDS",
				"value":      interval,
			}, nil)
	}
	logger.Info("Integrity check interval configured",
		zap.Int("seconds", interval),
		zap.String("operation", "config_validation"),
	)

	shutdownTimeout := viper.GetInt("SHUTDOWN_TIMEOUT_SECONDS")
	if shutdownTimeout <= 0 {
		return nil, errors.New(errors.ErrConfigInvalid, "invalid SHUTDOWN_TIMEOUT_SECONDS",
			map[string]interface{}{
				"config_key": "SHUTDOWN_TIMEOUT_SECONDS",
				"value":      shutdownTimeout,
			}, nil)
	}

	config := &Config{
		ListenAddr:             listenAddr,
		AWSRegion:              region,
		AccountID:              accountID,
		LogLevel:               viper.GetString("LOG_LEVEL"),
		DefaultMaxResults:      maxResults,
		SeedFile:               seedFile,
		IntegrityCheckInterval: interval,
		ShutdownTimeout:        shutdownTimeout,
		MetricsEnabled:         viper.GetBool("METRICS_ENABLED"),
		EmulatorURL:            viper.GetString("EMULATOR_URL"),
		AccessKeyID:            viper.GetString("AWS_ACCESS_KEY_ID"),
		AccessSecret:           viper.GetString("AWS_SECRET_ACCESS_KEY"),
	}

	logger.Info("Configuration loaded successfully",
		zap.String("operation", "config_complete"),
	)
	return config, nil
}
