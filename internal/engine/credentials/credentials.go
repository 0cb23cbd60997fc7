// Package credentials generates the random usernames and passwords
// CreateUser (§4.9) hands back as UserCredentials. Adapted from the
// teacher's internal/utils/crypto.go random-string generator.
package credentials

import (
	"crypto/rand"
	"fmt"
)

const (
	usernameRandomLength = 8
	passwordLength       = 32
	alphanumeric         = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateUsername produces a username of the form "spindb_<8 random
// chars>", distinct per call.
func GenerateUsername() (string, error) {
	suffix, err := randomString(usernameRandomLength, alphanumeric)
	if err != nil {
		return "", fmt.Errorf("generating username: %w", err)
	}
	return "spindb_" + suffix, nil
}

// GeneratePassword produces a 32-character random alphanumeric password.
func GeneratePassword() (string, error) {
	password, err := randomString(passwordLength, alphanumeric)
	if err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}
	return password, nil
}

func randomString(length int, charset string) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	out := make([]byte, length)
	buf := make([]byte, 1)
	for i := 0; i < length; i++ {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("reading random data: %w", err)
		}
		out[i] = charset[int(buf[0])%len(charset)]
	}
	return string(out), nil
}
