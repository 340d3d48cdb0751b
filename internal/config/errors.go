package config

import (
	"errors"
)

// Config failures surfaced to main; match with errors.Is.
var (
	ErrInvalidConfig = errors.New("relay config rejected")
	ErrLoadConfig    = errors.New("relay config unreadable")
)
