package kvrest

import "goflare.io/kvrest/internal/models"

var (
	ErrInvalidArgument  = models.ErrInvalidArgument
	ErrStoreUnavailable = models.ErrStoreUnavailable
	ErrEmptyKey         = models.ErrEmptyKey
	ErrUnsupportedShape = models.ErrUnsupportedShape
)
