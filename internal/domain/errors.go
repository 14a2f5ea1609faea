package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrInvalidSignature = errors.New("invalid payment signature")
	ErrConflict         = errors.New("booking state conflict")
	ErrUpstream         = errors.New("upstream failure")

	ErrRender  = fmt.Errorf("receipt render: %w", ErrUpstream)
	ErrStorage = fmt.Errorf("receipt storage: %w", ErrUpstream)
)
