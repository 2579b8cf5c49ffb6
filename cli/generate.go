package cli

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/pkg/errors"

	"github.com/fahmaliyi/keyvault/secret"
)

const (
	lowercase    = "abcdefghijklmnopqrstuvwxyz"
	uppercase    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	numbers      = "0123456789"
	specialChars = "!@#$%^&*()-_=+[]{}<>?/|:;.,~"

	DefaultPasswordLength = 32
	MinPasswordLength     = 10
	MaxPasswordLength     = 100
)

// PasswordSpec describes a generated password.
type PasswordSpec struct {
	Alnum  bool
	Length int
}

// CheckPasswordLength rejects lengths outside MinPasswordLength..MaxPasswordLength.
func CheckPasswordLength(n int) error {
	if n < MinPasswordLength || n > MaxPasswordLength {
		return fmt.Errorf("password length must be between %d and %d, got %d",
			MinPasswordLength, MaxPasswordLength, n)
	}
	return nil
}

// GeneratePassword draws a password from crypto/rand. It contains at least
// one lowercase letter, one uppercase letter and one digit, plus one special
// character unless spec.Alnum is set. A zero Length means
// DefaultPasswordLength.
func GeneratePassword(spec PasswordSpec) (secret.String, error) {
	length := spec.Length
	if length == 0 {
		length = DefaultPasswordLength
	}
	if err := CheckPasswordLength(length); err != nil {
		return secret.String{}, err
	}

	classes := []string{lowercase, uppercase, numbers}
	if !spec.Alnum {
		classes = append(classes, specialChars)
	}
	charSet := strings.Join(classes, "")

	buf := make([]byte, length)
	for {
		for i := range buf {
			c, err := randomChar(charSet)
			if err != nil {
				return secret.String{}, err
			}
			buf[i] = c
		}
		if hasEveryClass(buf, classes) {
			return secret.StringFromBytes(buf), nil
		}
	}
}

func randomChar(charSet string) (byte, error) {
	i, err := rand.Int(rand.Reader, big.NewInt(int64(len(charSet))))
	if err != nil {
		return 0, errors.Wrap(err, "generating password")
	}
	return charSet[i.Int64()], nil
}

func hasEveryClass(b []byte, classes []string) bool {
	for _, class := range classes {
		if !strings.ContainsAny(string(b), class) {
			return false
		}
	}
	return true
}
