package security

import (
	"crypto/rand"
	"errors"
	"math/big"
)

const (
	upperChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	lowerChars  = "abcdefghijkmnopqrstuvwxyz"
	digitChars  = "23456789"
	symbolChars = "!@#$%^&*?-_"

	// DefaultTempPasswordLength is used when no length is configured.
	DefaultTempPasswordLength = 14
	minTempPasswordLength     = 4
)

var allChars = upperChars + lowerChars + digitChars + symbolChars

// ErrPasswordTooShort is returned for lengths below the class count.
var ErrPasswordTooShort = errors.New("temporary password length must be at least 4")

// GenerateTempPassword returns a random password of length n containing at
// least one upper case letter, lower case letter, digit and symbol.
func GenerateTempPassword(n int) (string, error) {
	if n < minTempPasswordLength {
		return "", ErrPasswordTooShort
	}

	buf := make([]byte, 0, n)
	for _, class := range []string{upperChars, lowerChars, digitChars, symbolChars} {
		c, err := pick(class)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}
	for len(buf) < n {
		c, err := pick(allChars)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}

	for i := len(buf) - 1; i > 0; i-- {
		j, err := randIndex(i + 1)
		if err != nil {
			return "", err
		}
		buf[i], buf[j] = buf[j], buf[i]
	}

	return string(buf), nil
}

func pick(chars string) (byte, error) {
	idx, err := randIndex(len(chars))
	if err != nil {
		return 0, err
	}
	return chars[idx], nil
}

func randIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
