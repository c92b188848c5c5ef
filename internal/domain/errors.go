package domain

import "errors"

var (
	ErrInsufficientData    = errors.New("insufficient data")
	ErrInvalidMode         = errors.New("bad_mode")
	ErrCredentialsMissing  = errors.New("exchange credentials missing")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrPositionExists      = errors.New("position already open")
	ErrNoPosition          = errors.New("no open position")
)
