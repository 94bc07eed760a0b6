package model

import (
	"errors"
	"fmt"
)

// Error kinds shared by the pricing, import and listing packages. Callers
// match them with errors.Is; anything else is an infrastructure failure.
var (
	ErrValidation          = errors.New("validation error")
	ErrNotFound            = errors.New("not found")
	ErrOutOfStock          = errors.New("out of stock")
	ErrMarketplaceRejected = errors.New("rejected by marketplace")
	ErrTransportFailure    = errors.New("marketplace unavailable")
)

// ErrInvalidOverride is a validation error for a malformed override price.
var ErrInvalidOverride = fmt.Errorf("%w: invalid override", ErrValidation)
