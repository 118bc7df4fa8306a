// Command cmd runs a smoke test against a running emulator through the AWS SDK.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"ec2emulator/awsd"
	"ec2emulator/awsd/models"
	"ec2emulator/configuration"
	"ec2emulator/errors"
	"ec2emulator/logger"
)

const (
	packageName = "main"
)

type smokeRunner interface {
	Smoke(ctx context.Context, opts awsd.SmokeOptions) (*models.SmokeReport, error)
	ListInstances(ctx context.Context) ([]models.Instance, error)
}

func main() {
	// Initialize logger
	if err := logger.Initialize("info"); err != nil {
		panic(errors.New(errors.ErrConfigParse, "Failed to initialize logger",
			map[string]interface{}{
				"operation": "logger_init",
			}, err))
	}
	defer logger.Sync()

	logger := logger.For(packageName)

	// Load configuration
	config, err := configuration.Initialize()
	if err != nil {
		logger.Error("Failed to load configuration",
			zap.String("operation", "config_load"),
			zap.Error(err),
		)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := awsd.NewEC2Client(ctx, config)
	if err != nil {
		logger.Error("Failed to create EC2 client",
			zap.String("operation", "aws_client_creation"),
			zap.Error(err),
		)
		os.Exit(1)
	}
	logger.Info("EC2 client created",
		zap.String("operation", "aws_client_creation"),
		zap.String("endpoint", config.EmulatorURL),
	)

	// Handle OS signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- run(ctx, client, awsd.DefaultSmokeOptions(), logger)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received signal, aborting smoke run",
			zap.String("operation", "shutdown"),
			zap.String("signal", sig.String()),
		)
		cancel()
		<-errChan
		os.Exit(1)
	case err := <-errChan:
		if err != nil {
			logger.Error("Smoke run failed",
				zap.String("operation", "smoke"),
				zap.Error(err),
			)
			os.Exit(1)
		}
	}
}

// run performs one smoke pass and reports what is left running afterwards.
func run(ctx context.Context, client smokeRunner, opts awsd.SmokeOptions, logger *zap.Logger) error {
	report, err := client.Smoke(ctx, opts)
	if report != nil {
		logger.Info("Smoke report",
			zap.String("operation", "smoke"),
			zap.String("vpc_id", report.VpcID),
			zap.String("subnet_id", report.SubnetID),
			zap.String("image_id", report.ImageID),
			zap.Strings("instance_ids", report.InstanceIDs),
			zap.Int("steps", len(report.Steps)),
		)
	}
	if err != nil {
		return errors.New(errors.ErrAWSClient, "smoke run failed",
			map[string]interface{}{"operation": "smoke"}, err)
	}

	instances, err := client.ListInstances(ctx)
	if err != nil {
		return err
	}
	logger.Info("Smoke run passed",
		zap.String("operation", "smoke"),
		zap.Int("remaining_instances", len(instances)),
	)
	return nil
}
