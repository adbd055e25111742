package database

import (
	"context"
	"fmt"
	"time"

	"github.com/proxsync/proxsync/pkg/config"
	"github.com/proxsync/proxsync/pkg/log"
)

// RetryConfig contains configuration for database connection retries
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig returns the retry policy used when none is configured
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     30,
		InitialDelay:    2 * time.Second,
		MaxDelay:        30 * time.Second,
		BackoffMultiple: 1.5,
	}
}

// RetryConfigFromConfig creates a RetryConfig from the application configuration
func RetryConfigFromConfig(cfg *config.Config) RetryConfig {
	rc := RetryConfig{
		MaxAttempts:     cfg.Database.Retry.MaxAttempts,
		InitialDelay:    cfg.Database.Retry.InitialDelay,
		MaxDelay:        cfg.Database.Retry.MaxDelay,
		BackoffMultiple: cfg.Database.Retry.BackoffMultiple,
	}
	if rc.MaxAttempts < 1 {
		rc.MaxAttempts = 1
	}
	if rc.BackoffMultiple < 1 {
		rc.BackoffMultiple = 1
	}
	return rc
}

// nextDelay returns the backoff delay following current, capped at MaxDelay
func (rc RetryConfig) nextDelay(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * rc.BackoffMultiple)
	if rc.MaxDelay > 0 && next > rc.MaxDelay {
		return rc.MaxDelay
	}
	return next
}

// NewConnectionWithRetry attempts to connect to the database with exponential backoff retry logic
// This function will block until either a successful connection is established or the context is cancelled
func NewConnectionWithRetry(ctx context.Context, cfg *config.Config, retryConfig RetryConfig) (*DB, error) {
	return connectWithRetry(ctx, retryConfig, func() (*DB, error) {
		return NewConnection(cfg)
	})
}

func connectWithRetry(ctx context.Context, retryConfig RetryConfig, connect func() (*DB, error)) (*DB, error) {
	logger := log.WithComponent("database")

	var lastErr error
	delay := retryConfig.InitialDelay

	logger.Info().Int("max_attempts", retryConfig.MaxAttempts).Msg("Attempting to connect to database with retry logic")

	for attempt := 1; attempt <= retryConfig.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("database connection cancelled: %w", ctx.Err())
		default:
		}

		db, err := connect()
		if err == nil {
			logger.Info().Int("attempt", attempt).Msg("Database connection established")
			return db, nil
		}

		lastErr = err
		logger.Warn().Err(err).Int("attempt", attempt).Msg("Database connection attempt failed")

		// Don't wait after the final attempt
		if attempt == retryConfig.MaxAttempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("database connection cancelled during retry delay: %w", ctx.Err())
		case <-timer.C:
		}

		delay = retryConfig.nextDelay(delay)
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts, last error: %w",
		retryConfig.MaxAttempts, lastErr)
}
