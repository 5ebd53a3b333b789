package users

import "golang.org/x/crypto/bcrypt"

// PasswordHasher wraps the password-hashing primitive. The hash is opaque to
// every caller; only Verify can interpret it.
type PasswordHasher struct {
	Cost int
}

// Hash derives an opaque hash from a plaintext password.
func (h PasswordHasher) Hash(plain string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether plain matches the stored hash.
func (h PasswordHasher) Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
