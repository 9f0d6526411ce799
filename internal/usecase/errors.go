package usecase

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	// ErrProviderUnavailable covers transport failures, non-2xx responses,
	// an open circuit and bodies that are not the expected JSON.
	ErrProviderUnavailable = errors.New("odds provider unavailable")
	// ErrProviderEmpty means the response parsed but held no usable games.
	ErrProviderEmpty    = errors.New("odds provider returned no games")
	ErrMalformedRecord  = errors.New("malformed provider record")
	ErrStoreWrite       = errors.New("snapshot store write failed")
	ErrUnsettleablePick = errors.New("pick cannot be settled")
	ErrGameNotFinal     = errors.New("game has no final score")
)
