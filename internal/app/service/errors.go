package service

import "errors"

// Service-level error taxonomy. Handlers map these onto HTTP statuses;
// anything outside the list surfaces as a generic internal failure.
var (
	ErrInvalidURL         = errors.New("originalUrl must be a valid http or https URL")
	ErrInvalidAlias       = errors.New("alias must be 3-20 characters of letters, numbers, hyphens, and underscores")
	ErrAliasTaken         = errors.New("this custom alias is already taken")
	ErrNotFound           = errors.New("url not found")
	ErrCodeSpaceExhausted = errors.New("could not find a free short code")
)
