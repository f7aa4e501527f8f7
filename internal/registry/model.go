package registry

import "strings"

// Field ceilings fixed when an account is allocated.
const (
	MaxIdentityLen = 64
	MaxPhoneLen    = 20
	MaxAddressLen  = 64
	MaxMnemonicLen = 512
)

// Identity is an opaque caller handle supplied by the hosting environment.
type Identity string

// IsZero reports whether the identity is empty.
func (id Identity) IsZero() bool { return id == "" }

func (id Identity) String() string { return string(id) }

// State is the registry singleton.
type State struct {
	Admin      Identity
	TotalUsers uint64
}

// UserRecord is the onboarding record stored per phone number.
type UserRecord struct {
	Phone             string
	Address           string
	EncryptedMnemonic string
	CreatedAt         uint64
}

// OnboardInput captures the data required to register a phone number.
type OnboardInput struct {
	Phone             string
	Address           string
	EncryptedMnemonic string
	CreatedAt         uint64
}

// UpdateInput captures replacement wallet data for an existing phone number.
type UpdateInput struct {
	Phone             string
	Address           string
	EncryptedMnemonic string
}

// NormalizePhone strips every non-digit from raw and checks the result fits a
// user account.
func NormalizePhone(raw string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if digits == "" || len(digits) > MaxPhoneLen {
		return "", ErrInvalidPhone
	}
	return digits, nil
}
