package aiassist

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest: type desconocido o campo requerido ausente.
	ErrInvalidRequest = errors.New("aiassist: invalid request")
	// ErrRateLimited: el gateway respondió 429.
	ErrRateLimited = errors.New("aiassist: gateway rate limited")
	// ErrQuotaExhausted: el gateway respondió 402.
	ErrQuotaExhausted = errors.New("aiassist: gateway credits exhausted")
)

// StatusError es una respuesta no-2xx del gateway.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ai gateway error: %d", e.Status)
}

// Is permite errors.Is(err, ErrRateLimited) / ErrQuotaExhausted.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.Status == 429
	case ErrQuotaExhausted:
		return e.Status == 402
	}
	return false
}
