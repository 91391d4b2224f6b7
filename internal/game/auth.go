package game

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	LoginBanner = "╔══════════════════════════════════════╗\r\n" +
		"║              HOLLOWMERE              ║\r\n" +
		"║   Lanterns lit, the marsh awaits     ║\r\n" +
		"╚══════════════════════════════════════╝"
	LoginTagline = "A small village at the edge of the fog."
)

// PasswordCost is the bcrypt work factor used for new hashes.
var PasswordCost = bcrypt.DefaultCost

func ValidateUsername(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if strings.ContainsAny(name, " \t\r\n") {
		return fmt.Errorf("name cannot contain spaces")
	}
	if len(name) > 24 {
		return fmt.Errorf("name must be 24 characters or fewer")
	}
	return nil
}

func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password cannot be blank")
	}
	if len(password) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}
	return nil
}

// HashPassword returns a bcrypt hash of pass.
func HashPassword(pass string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(pass), PasswordCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// CheckPassword reports whether pass matches hash.
func CheckPassword(hash, pass string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pass)) == nil
}
