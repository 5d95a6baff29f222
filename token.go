package main

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

const blankTokenTTL = 12 * time.Hour

// Token is an opaque bearer credential: a printable authenticator string
// plus an expiry in epoch milliseconds. Two tokens are the same token iff
// their authenticators match. The generation scheme below is an opaque
// identifier format, not a security primitive.
type Token struct {
	Authenticator string `json:"authenticator"`
	Expiration    int64  `json:"expiration"`
}

// NewBlankToken returns a token with no authenticator. Blank tokens are
// what an entity holds after its previous token expired and was replaced.
func NewBlankToken() Token {
	return Token{
		Authenticator: "",
		Expiration:    time.Now().Add(blankTokenTTL).UnixMilli(),
	}
}

// NewToken mints a token whose authenticator is derived from the seed
// strings and a random multiplier, expiring ttlHours from now.
func NewToken(seed []string, ttlHours int) Token {
	return Token{
		Authenticator: generateAuthenticator(seed),
		Expiration:    time.Now().Add(time.Duration(ttlHours) * time.Hour).UnixMilli(),
	}
}

// IsValid reports whether the token's expiry is still in the future.
// Pure check: no lookup, no side effects.
func (t Token) IsValid() bool {
	return t.Expiration > time.Now().UnixMilli()
}

// Equal compares tokens by authenticator.
func (t Token) Equal(o Token) bool {
	return t.Authenticator == o.Authenticator
}

// String renders the wire form used in the websocket handshake path.
func (t Token) String() string {
	return fmt.Sprintf("%s,%d", t.Authenticator, t.Expiration)
}

// ParseTokenString parses "<authenticator>,<expirationEpochMillis>".
func ParseTokenString(s string) (Token, error) {
	i := strings.IndexByte(s, ',')
	if i < 0 {
		return Token{}, fmt.Errorf("token string missing ',' separator")
	}
	exp, err := strconv.ParseInt(s[i+1:], 10, 64)
	if err != nil {
		return Token{}, fmt.Errorf("token string has malformed expiration: %w", err)
	}
	return Token{Authenticator: s[:i], Expiration: exp}, nil
}

// Characters that can never appear in an authenticator except for the
// single '.' terminator: # % , . / ; ? [ \ ] { }
func forbiddenChar(c int) bool {
	switch c {
	case 35, 37, 44, 46, 47, 59, 63, 91, 92, 93, 123, 125:
		return true
	}
	return false
}

// stringWeight maps a seed string to an integer by summing its character
// codes, starting from 1.
func stringWeight(s string) int {
	w := 1
	for _, r := range s {
		w += int(r)
	}
	return w
}

// generateAuthenticator derives the key value from the seed weights
// (consecutive exponentiation, accumulated and clamped), multiplies by a
// random int32, renders the decimal digits as printable characters with a
// '.' terminator, and pads to a length that is >= 20 and a multiple of 10.
func generateAuthenticator(seed []string) string {
	parts := make([]int, len(seed))
	for i, s := range seed {
		parts[i] = stringWeight(s)
	}

	pow := 0
	if len(parts) > 1 {
		for i := 1; i < len(parts)-1; i++ {
			pow += int(math.Min(math.Pow(float64(parts[i-1]), float64(parts[i])), math.MaxInt32))
		}
	} else if len(parts) == 1 {
		pow = int(math.Min(math.Pow(float64(parts[0]), 2), math.MaxInt32))
	}

	keyValue := int64(pow) * int64(rand.Int31n(math.MaxInt32))
	return padAuthenticator(renderKey(keyValue))
}

// renderKey turns each decimal digit of the key into a printable character
// in the 33..117+digit range, re-rolling reserved punctuation, and appends
// the '.' terminator.
func renderKey(keyValue int64) string {
	digits := strconv.FormatInt(keyValue, 10)
	var b strings.Builder
	for _, d := range digits {
		num := int(d - '0')
		c := rand.Intn(85) + 33 + num
		for forbiddenChar(c) {
			c = rand.Intn(85) + 33 + num
		}
		b.WriteByte(byte(c))
	}
	b.WriteByte('.')
	return b.String()
}

// padAuthenticator appends random printable characters until the length is
// at least 20 and a multiple of 10.
func padAuthenticator(auth string) string {
	b := []byte(auth)
	for len(b) < 20 || len(b)%10 != 0 {
		c := rand.Intn(94) + 33
		for forbiddenChar(c) {
			c = rand.Intn(94) + 33
		}
		b = append(b, byte(c))
	}
	return string(b)
}
