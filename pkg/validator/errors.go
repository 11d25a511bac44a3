package validator

import "errors"

var (
	ErrEmptyURL           = errors.New("URL cannot be empty")
	ErrInvalidURL         = errors.New("invalid URL format")
	ErrInvalidScheme      = errors.New("URL must use http or https scheme")
	ErrInvalidHost        = errors.New("URL must have a valid host")
	ErrEmptyAffiliateID   = errors.New("affiliate ID is required")
	ErrAffiliateIDTooLong = errors.New("affiliate ID must be at most 100 characters")
	ErrInvalidAffiliateID = errors.New("affiliate ID must be alphanumeric with optional hyphens and underscores")
	ErrInvalidDate        = errors.New("date must be RFC 3339 or YYYY-MM-DD")
	ErrInvalidLimit       = errors.New("limit must be a positive integer")
)
