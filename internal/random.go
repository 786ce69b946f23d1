package internal

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
)

const (
	otpCodeMin = 100000
	otpCodeMax = 999999
)

var otpCodeSpan = big.NewInt(otpCodeMax - otpCodeMin + 1)

// NewOTPCode returns a code drawn uniformly from [100000, 999999], formatted
// as six digits.
func NewOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpCodeSpan)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+otpCodeMin), nil
}

// EqualCode compares two codes in constant time. Codes of different length
// never match.
func EqualCode(submitted, issued string) bool {
	if len(submitted) != len(issued) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(issued)) == 1
}
