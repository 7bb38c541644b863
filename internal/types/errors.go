package types

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned by the facade when no adapter could be constructed
	ErrNotInitialized = errors.New("tts client is not initialized")

	// ErrNotConnected is returned when the backend connection is not active
	ErrNotConnected = errors.New("connection to tts service is not established")

	// ErrRetryExhausted is returned once the connect budget has been spent
	ErrRetryExhausted = fmt.Errorf("connect attempts exhausted: %w", ErrNotConnected)

	// ErrBackend wraps a non-success status reported by the backend
	ErrBackend = errors.New("tts service reported failure")

	// ErrNotEnabled is returned when an operation requires TTS to be enabled
	ErrNotEnabled = errors.New("tts is not enabled")

	// ErrInvalidConfiguration is returned for configuration values an adapter rejects
	ErrInvalidConfiguration = errors.New("invalid tts configuration")
)
