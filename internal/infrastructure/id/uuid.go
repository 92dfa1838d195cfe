package id

import "github.com/google/uuid"

// UUID hands out random version 4 identifiers.
type UUID struct{}

func (UUID) NewID() string { return uuid.NewString() }
