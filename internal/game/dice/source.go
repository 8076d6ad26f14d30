package dice

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"
)

// cryptoSource implements RandomSource using crypto/rand.
//
// Invariant: All values produced are uniformly distributed and not reproducible.
type cryptoSource struct{}

// NewCryptoSource returns a RandomSource backed by crypto/rand.
//
// Postcondition: Every value returned by Intn is in [0, n).
func NewCryptoSource() RandomSource {
	return &cryptoSource{}
}

// Intn returns a cryptographically secure random int in [0, n).
//
// Precondition: n > 0. Panics with "dice: Intn called with n <= 0" if n <= 0.
func (c *cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("dice: Intn called with n <= 0")
	}
	val, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("dice: crypto/rand failure: " + err.Error())
	}
	return int(val.Int64())
}

// Float64 returns a float in [0, 1) built from 53 random bits.
func (c *cryptoSource) Float64() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("dice: crypto/rand failure: " + err.Error())
	}
	return float64(binary.BigEndian.Uint64(buf[:])>>11) / (1 << 53)
}

// Bool returns a fair coin flip.
func (c *cryptoSource) Bool() bool {
	return c.Intn(2) == 1
}
