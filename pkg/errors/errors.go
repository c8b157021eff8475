// Unified error handling for the pinwatch daemon
//
// Copyright (C) 2026  Pinwatch Authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import (
	"fmt"
	"runtime"
)

// ErrorCode represents the category of error
type ErrorCode string

const (
	// Configuration errors
	ErrConfigSection    ErrorCode = "CONFIG_SECTION"
	ErrConfigOption     ErrorCode = "CONFIG_OPTION"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Runtime errors
	ErrRuntime     ErrorCode = "RUNTIME"
	ErrRuntimeInit ErrorCode = "RUNTIME_INIT"

	// Subsystem errors
	ErrGPIO      ErrorCode = "GPIO"
	ErrMoonraker ErrorCode = "MOONRAKER"
	ErrAnnounce  ErrorCode = "ANNOUNCE"
)

// DaemonError is the unified error type for the daemon
type DaemonError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Section is the config section or component context
	Section string

	// Err wraps the underlying error
	Err error
}

// Error implements the error interface
func (e *DaemonError) Error() string {
	if e.Section != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Code, e.Section, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DaemonError) Unwrap() error {
	return e.Err
}

// SetSection sets the context section
func (e *DaemonError) SetSection(section string) *DaemonError {
	e.Section = section
	return e
}

// New creates a new DaemonError
func New(code ErrorCode, message string) *DaemonError {
	return &DaemonError{Code: code, Message: message}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *DaemonError {
	return &DaemonError{Code: code, Message: message, Err: err}
}

// RuntimeError creates a general runtime error
func RuntimeError(message string) *DaemonError {
	return New(ErrRuntime, message)
}

// InitError creates an error for component initialization failure
func InitError(component string, err error) *DaemonError {
	return Wrap(err, ErrRuntimeInit, fmt.Sprintf("failed to initialize %s: %v", component, err)).
		SetSection(component)
}

// GPIOError creates a gpio subsystem error
func GPIOError(message string) *DaemonError {
	return New(ErrGPIO, message)
}

// MoonrakerError creates a moonraker client error
func MoonrakerError(message string) *DaemonError {
	return New(ErrMoonraker, message)
}

// FromPanic converts a recovered panic value into a DaemonError.
// The caller must invoke recover() directly in its own deferred function
// and pass the result here.
func FromPanic(r interface{}) *DaemonError {
	if r == nil {
		return nil
	}
	switch x := r.(type) {
	case string:
		return RuntimeError(fmt.Sprintf("panic: %s", x))
	case runtime.Error:
		return RuntimeError(x.Error())
	case error:
		return RuntimeError(x.Error())
	default:
		return RuntimeError(fmt.Sprintf("panic: %v", x))
	}
}

// Is checks if error matches given error code
func Is(err error, code ErrorCode) bool {
	if de, ok := err.(*DaemonError); ok {
		return de.Code == code
	}
	return false
}

// IsConfig checks if error is a config error
func IsConfig(err error) bool {
	return Is(err, ErrConfigSection) ||
		Is(err, ErrConfigOption) ||
		Is(err, ErrConfigValidation)
}
