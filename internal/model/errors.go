package model

import "errors"

var (
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrUnknownEmployee  = errors.New("employee not in roster")
	ErrEmptyName        = errors.New("employee name is empty")
	ErrEmptyLabel       = errors.New("status label is empty")
	ErrInvalidDate      = errors.New("invalid date")
)
