package main

import "github.com/google/uuid"

// GenerateUUID returns a new random UUID string used for player and
// session identities.
func GenerateUUID() string {
	return uuid.NewString()
}
