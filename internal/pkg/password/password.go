// Package password wraps bcrypt for stored credentials.
package password

import "golang.org/x/crypto/bcrypt"

// Hash derives a bcrypt hash at the default cost. The hash embeds its own
// salt, so equal passwords never produce equal hashes.
func Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Compare returns nil when plain matches the stored hash.
func Compare(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}
