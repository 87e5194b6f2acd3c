package core

import (
	"crypto/rand"
	"math/big"
	"strconv"
)

const (
	codeFloor = 100000
	codeCeil  = 999999
)

var codeSpan = big.NewInt(codeCeil - codeFloor + 1)

// GenerateCode returns a 6-digit code drawn uniformly from [100000, 999999].
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpan)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+codeFloor, 10), nil
}
