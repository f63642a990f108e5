package service

import "errors"

// Error definitions for the service package.
var (
	ErrInvalidRequest  = errors.New("invalid synthesis request")
	ErrNoSpeakers      = errors.New("no speakers available")
	ErrSynthesisFailed = errors.New("TTS failed")
)
