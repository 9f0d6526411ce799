package id

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates opaque IDs for runs and dispatch records.
type Generator interface {
	NewID() (string, error)
}

type UUIDGenerator struct{}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

func (g *UUIDGenerator) NewID() (string, error) {
	v, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return v.String(), nil
}

// Static returns the same id on every call; used by tests that assert on run ids.
type Static string

func (s Static) NewID() (string, error) {
	return string(s), nil
}
