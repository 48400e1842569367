package pricing

import (
	"errors"
	"fmt"
)

// ErrValidation is wrapped by every rejection raised by this package.
var ErrValidation = errors.New("validation failed")

var (
	ErrInvalidQuantity  = fmt.Errorf("%w: quantity must be positive", ErrValidation)
	ErrNegativeQuantity = fmt.Errorf("%w: quantity cannot be negative", ErrValidation)
	ErrNegativePrice    = fmt.Errorf("%w: unit price cannot be negative", ErrValidation)
	ErrNegativeDiscount = fmt.Errorf("%w: discount cannot be negative", ErrValidation)
	ErrNegativeFreight  = fmt.Errorf("%w: freight cannot be negative", ErrValidation)
	ErrMissingProduct   = fmt.Errorf("%w: product identifier is required", ErrValidation)
	ErrForeignPackaging = fmt.Errorf("%w: packaging does not belong to product", ErrValidation)
	ErrProductMismatch  = fmt.Errorf("%w: product does not match line", ErrValidation)
	ErrInvalidFactor    = fmt.Errorf("%w: packaging quantity in base unit must be positive", ErrValidation)
	ErrUnknownField     = fmt.Errorf("%w: unknown line field", ErrValidation)
)

// ErrLineNotFound is returned when an operation names a line the order does not hold.
var ErrLineNotFound = errors.New("order line not found")
