package domain

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrProductNotFound = errors.New("product not found")
)
