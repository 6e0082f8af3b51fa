package store

import "errors"

var ErrNotFound = errors.New("record not found")
var ErrInvalidTarget = errors.New("invalid vote target")
var ErrAlreadyProcessed = errors.New("round already scored")
var ErrSessionExpired = errors.New("session expired")
var ErrCodeTaken = errors.New("room code already in use")
