package impl

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"authflow/internal/errors"
)

const (
	base36Alphabet  = "0123456789abcdefghijklmnopqrstuvwxyz"
	urlSafeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
)

// randomString draws n characters uniformly from alphabet, which must be shorter than 256.
func randomString(n int, alphabet string) string {
	size := len(alphabet)
	limit := 256 - 256%size

	out := make([]byte, 0, n)
	buf := make([]byte, n+n/2+1)
	for len(out) < n {
		// crypto/rand.Read never returns an error.
		_, _ = rand.Read(buf)
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%size])
			if len(out) == n {
				break
			}
		}
	}

	return string(out)
}

var otpSpace = big.NewInt(1_000_000)

// generateOTP returns a six digit code, zero padded, from a uniform source.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", errors.Wrap(err, "failed to generate otp")
	}

	return fmt.Sprintf("%06d", n.Int64()), nil
}
