package domain

import "errors"

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrQuotaExceeded    = errors.New("vote quota exceeded")
	ErrNothingToRetract = errors.New("no vote to retract")
)
