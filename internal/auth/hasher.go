// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/samber/oops"
	"golang.org/x/crypto/pbkdf2"
)

// digestKeyLen is the PBKDF2 output length; the digest is its hex encoding.
const digestKeyLen = sha256.Size

// Hasher derives and verifies password digests.
type Hasher interface {
	// Derive returns the digest of password for userName.
	Derive(password, userName string) string

	// Verify reports whether password reproduces digest for userName.
	Verify(password, userName, digest string) bool
}

// CredentialHasher implements Hasher with two PBKDF2-HMAC-SHA256 passes.
// The first pass turns the user name into a per-identity salt, the second
// derives the digest from that salt. No salt is stored separately.
type CredentialHasher struct {
	iterations int
}

// NewCredentialHasher creates a CredentialHasher.
// iterations must be positive.
func NewCredentialHasher(iterations int) (*CredentialHasher, error) {
	if iterations <= 0 {
		return nil, oops.Code(CodeConfigInvalid).
			With("iterations", iterations).
			Errorf("hash iterations must be positive")
	}
	return &CredentialHasher{iterations: iterations}, nil
}

// Derive returns the 64 character hex digest for password and userName.
func (h *CredentialHasher) Derive(password, userName string) string {
	salt := pbkdf2.Key([]byte(password), []byte(userName), h.iterations, digestKeyLen, sha256.New)
	key := pbkdf2.Key([]byte(password), salt, h.iterations, digestKeyLen, sha256.New)
	return hex.EncodeToString(key)
}

// Verify recomputes the digest and compares it in constant time.
func (h *CredentialHasher) Verify(password, userName, digest string) bool {
	computed := h.Derive(password, userName)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}

// Iterations returns the configured PBKDF2 iteration count.
func (h *CredentialHasher) Iterations() int {
	return h.iterations
}

var _ Hasher = (*CredentialHasher)(nil)
