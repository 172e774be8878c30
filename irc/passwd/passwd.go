// Copyright (c) 2018 Shivaram Lingamneni
// released under the MIT license

package passwd

import (
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/sha3"
)

const (
	MinCost     = bcrypt.MinCost
	DefaultCost = 12 // ballpark: 250 msec on a modern Intel CPU
)

// The connection password may be stored in the config file as a
// bcrypt hash instead of plaintext. An initial pass of sha3-512
// before bcrypt lets Diceware-style passphrases longer than bcrypt's
// 72-byte input limit hash without truncation.

func GenerateFromPassword(password []byte, cost int) (result []byte, err error) {
	sum := sha3.Sum512(password)
	return bcrypt.GenerateFromPassword(sum[:], cost)
}

func CompareHashAndPassword(hashedPassword, password []byte) error {
	sum := sha3.Sum512(password)
	return bcrypt.CompareHashAndPassword(hashedPassword, sum[:])
}
