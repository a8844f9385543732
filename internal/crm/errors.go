package crm

import "errors"

var (
	ErrInvalidInput     = errors.New("crm: invalid input")
	ErrNotFound         = errors.New("crm: not found")
	ErrConflict         = errors.New("crm: conflict")
	ErrPermissionDenied = errors.New("crm: permission denied")
	ErrLimitReached     = errors.New("crm: employee limit reached")
)
