package retry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/loykin/termsync/internal/common"
)

// Config holds configuration for database write retries
type Config struct {
	MaxRetries      int           `mapstructure:"max_retries" yaml:"max_retries"`
	InitialDelay    time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
	MaxDelay        time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	BackoffFactor   float64       `mapstructure:"backoff_factor" yaml:"backoff_factor"`
	RetryableErrors []string      `mapstructure:"retryable_errors" yaml:"retryable_errors"`
}

// DefaultRetryConfig returns the retry policy used for stored procedure calls and inserts.
func DefaultRetryConfig() *Config {
	return &Config{
		MaxRetries:    3,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		RetryableErrors: []string{
			"connection refused",
			"connection reset",
			"timeout",
			"temporary failure",
			"deadlock",
			"lock wait timeout",
			"database is locked",
			"connection lost",
			"broken pipe",
			"i/o timeout",
			"transport-level error",
		},
	}
}

// NoRetry returns a policy that runs the operation once.
func NoRetry() *Config {
	return &Config{MaxRetries: 0}
}

func (rc *Config) isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	errStr := strings.ToLower(err.Error())
	for _, retryableErr := range rc.RetryableErrors {
		if strings.Contains(errStr, strings.ToLower(retryableErr)) {
			return true
		}
	}
	return false
}

// calculateDelay calculates the delay for a given retry attempt using exponential backoff
func (rc *Config) calculateDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return rc.InitialDelay
	}
	factor := rc.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	delay := time.Duration(float64(rc.InitialDelay) * math.Pow(factor, float64(attempt-1)))
	if rc.MaxDelay > 0 && delay > rc.MaxDelay {
		delay = rc.MaxDelay
	}
	return delay
}

// Operation is a database call that may be repeated.
type Operation func() error

// WithRetry executes operation, retrying transient failures with exponential backoff.
func WithRetry(ctx context.Context, config *Config, operation Operation) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	logger := common.GetLogger().WithComponent("store-retry")

	var lastErr error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err := operation()
		if err == nil {
			if attempt > 0 {
				logger.Info("database operation succeeded after retry", "attempt", attempt+1)
			}
			return nil
		}
		lastErr = err

		if attempt == config.MaxRetries {
			break
		}
		if !config.isRetryableError(err) {
			return err
		}

		delay := config.calculateDelay(attempt)
		logger.Warn("database operation failed, retrying",
			"error", err,
			"attempt", attempt+1,
			"max_attempts", config.MaxRetries+1,
			"retry_delay", delay)

		select {
		case <-ctx.Done():
			return fmt.Errorf("operation cancelled during retry: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	if config.MaxRetries == 0 {
		return lastErr
	}
	logger.Error("database operation failed after all retry attempts", "error", lastErr, "attempts", config.MaxRetries+1)
	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxRetries+1, lastErr)
}

// WithRetryExec executes a database exec with retry logic
func WithRetryExec(ctx context.Context, config *Config, exec func() (sql.Result, error)) (sql.Result, error) {
	var result sql.Result
	err := WithRetry(ctx, config, func() error {
		var err error
		result, err = exec()
		return err
	})
	return result, err
}
