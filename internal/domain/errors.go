package domain

import "errors"

var (
	ErrInvalidRole   = errors.New("invalid role")
	ErrStoreRequired = errors.New("store is required for this role")
	ErrInactiveUser  = errors.New("account is deactivated")
)
