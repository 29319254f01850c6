package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound         = errors.New("entity not found")
	ErrUnknownFamily    = errors.New("unknown code family")
	ErrCodeNotInFamily  = errors.New("code does not belong to this group")
	ErrCodeAlreadyUsed  = errors.New("access code already used")
	ErrRateLimited      = errors.New("too many attempts")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrAlreadyExists    = errors.New("entity already exists")
	ErrCorruptDocument  = errors.New("persisted document failed validation")
	ErrStoreUnavailable = errors.New("store unavailable")
)
