// Package service defines ports for stateless domain logic and external collaborators.
// Infrastructure packages provide the implementations.
package service

// PasswordHasher defines the interface for one-way, salted password hashing.
type PasswordHasher interface {
	// Hash generates a salted hash from a plaintext password.
	Hash(password string) (string, error)

	// Check compares a plaintext password with a hash to see if they match.
	// An empty hash never matches.
	Check(password, hash string) bool
}
