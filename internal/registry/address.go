package registry

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

const (
	stateSeed = "pigeon-state"
	userSeed  = "user"
)

// Address is the storage location of an account.
type Address [32]byte

// String returns the lowercase hex form used as a key by the backends.
func (a Address) String() string { return hex.EncodeToString(a[:]) }

// StateAddress derives the address of the registry singleton.
func StateAddress() Address {
	return deriveAddress([]byte(stateSeed))
}

// UserAddress derives the address of the user account for phone.
func UserAddress(phone string) Address {
	return deriveAddress([]byte(userSeed), []byte(phone))
}

func deriveAddress(seeds ...[]byte) Address {
	h := sha3.New256()
	for _, seed := range seeds {
		h.Write(seed)
	}
	var addr Address
	copy(addr[:], h.Sum(nil))
	return addr
}
