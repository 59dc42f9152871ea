package helpers

import (
	"errors"
	"fmt"
	"signal-hub/src/logger"
	"strings"
	"sync"
	"time"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type SignalHubError struct {
	Message string
	Cause   error
}

func (e *SignalHubError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SignalHubError) Unwrap() error {
	return e.Cause
}

// Helper to define distinct error types for type assertions if needed
type ConfigurationError struct{ SignalHubError }
type NetworkError struct{ SignalHubError }
type DatabaseError struct{ SignalHubError }

func NewConfigurationError(message string, cause error) *ConfigurationError {
	return &ConfigurationError{SignalHubError{Message: message, Cause: cause}}
}

func NewDatabaseError(message string, cause error) *DatabaseError {
	return &DatabaseError{SignalHubError{Message: message, Cause: cause}}
}

func NewNetworkError(message string, cause error) *NetworkError {
	return &NetworkError{SignalHubError{Message: message, Cause: cause}}
}

// ErrHubStopped is returned by hub operations after the hub loop has exited.
var ErrHubStopped = errors.New("hub stopped")

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts to execute the operation up to maxRetries times with exponential backoff.
func RetryWithBackoff(operation string, maxRetries int, baseDelay time.Duration, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		time.Sleep(baseDelay * (1 << attempt))
	}

	if lastErr == nil {
		return nil
	}
	return fmt.Errorf("%s failed after %d attempts: %w", operation, maxRetries, lastErr)
}

// -----------------------------------------------------------------------------
// Error Handler
// -----------------------------------------------------------------------------

type ErrorHandler struct {
	mu                     sync.Mutex
	Logger                 *logger.Logger
	ErrorCount             int
	MaxErrorsBeforeRestart int
	BaseDelay              time.Duration
}

func NewErrorHandler(log *logger.Logger) *ErrorHandler {
	if log == nil {
		log = logger.NewLogger(nil, "ErrorHandler")
	}
	return &ErrorHandler{
		Logger:                 log,
		ErrorCount:             0,
		MaxErrorsBeforeRestart: 10,
		BaseDelay:              100 * time.Millisecond,
	}
}

// -----------------------------------------------------------------------------

// ResetErrorCount clears the failure count after a clean run.
func (e *ErrorHandler) ResetErrorCount() {
	e.mu.Lock()
	e.ErrorCount = 0
	e.mu.Unlock()
}

// -----------------------------------------------------------------------------

// Exhausted reports whether failures have reached MaxErrorsBeforeRestart.
func (e *ErrorHandler) Exhausted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.MaxErrorsBeforeRestart > 0 && e.ErrorCount >= e.MaxErrorsBeforeRestart
}

// -----------------------------------------------------------------------------

// Errors returns the current consecutive error count.
func (e *ErrorHandler) Errors() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ErrorCount
}

// -----------------------------------------------------------------------------

// ExecuteWithRetry runs fn up to maxRetries times and categorizes the final error
// by the operation name.
func (e *ErrorHandler) ExecuteWithRetry(operation string, fn func() error, maxRetries int) error {
	if maxRetries < 1 {
		maxRetries = 1
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn()
		if err == nil {
			e.mu.Lock()
			if e.ErrorCount > 0 {
				e.ErrorCount--
			}
			e.mu.Unlock()
			return nil
		}

		if attempt == maxRetries-1 {
			e.mu.Lock()
			e.ErrorCount++
			e.mu.Unlock()
			e.Logger.Error("%s failed (attempt %d/%d): %v", operation, attempt+1, maxRetries, err)

			lowerOp := strings.ToLower(operation)
			message := fmt.Sprintf("%s failed", operation)
			if strings.Contains(lowerOp, "network") || strings.Contains(lowerOp, "push") {
				return NewNetworkError(message, err)
			} else if strings.Contains(lowerOp, "database") || strings.Contains(lowerOp, "save") {
				return NewDatabaseError(message, err)
			}
			return &SignalHubError{Message: message, Cause: err}
		}

		e.Logger.Warning("%s failed (attempt %d/%d): %v", operation, attempt+1, maxRetries, err)
		time.Sleep(e.BaseDelay * (1 << attempt))
	}

	return &SignalHubError{Message: fmt.Sprintf("%s failed after %d attempts", operation, maxRetries)}
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) Handle(err error, context string) {
	if err != nil {
		e.Logger.Error("Error in %s: %v", context, err)
	}
}
