// Package util provides utility functions for the OmniLaze service.
package util

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// GenerateVerificationCode generates a 6-digit numeric verification code.
func GenerateVerificationCode() string {
	return fmt.Sprintf("%06d", 100000+rand.Intn(900000))
}

// GenerateOrderNumber generates an order number in the format
// "ORD{yyyymmdd}{3-digit random}".
func GenerateOrderNumber(t time.Time) string {
	return fmt.Sprintf("ORD%s%03d", t.Format("20060102"), rand.Intn(1000))
}

// GenerateRandomID generates a random ID with the specified prefix and hex length.
// The returned ID will be in the format: "{prefix}{hex_string}".
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex generates a random hexadecimal string of the specified length.
// Uses math/rand; not for cryptographic purposes.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.Intn(16)])
	}

	return builder.String()
}
