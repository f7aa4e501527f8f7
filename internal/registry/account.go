package registry

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Kind discriminates the record stored in an account.
type Kind uint8

const (
	KindState Kind = 1
	KindUser  Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindState:
		return "state"
	case KindUser:
		return "user"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Allocated space per account kind. Large enough for the array encoding of a
// record whose fields are all at their ceiling.
const (
	StateSpace = (4 + MaxIdentityLen) + 8
	UserSpace  = (4 + MaxPhoneLen) + (4 + MaxAddressLen) + (4 + MaxMnemonicLen) + 8
)

// Account is a unit of persistent storage.
type Account struct {
	Kind  Kind
	Space int
	Data  []byte
}

type stateData struct {
	_msgpack struct{} `msgpack:",as_array"`

	Admin      string
	TotalUsers uint64
}

type userData struct {
	_msgpack struct{} `msgpack:",as_array"`

	Phone             string
	Address           string
	EncryptedMnemonic string
	CreatedAt         uint64
}

func encodeState(s State) (Account, error) {
	if len(s.Admin) > MaxIdentityLen {
		return Account{}, fmt.Errorf("admin identity is %d bytes, limit %d: %w", len(s.Admin), MaxIdentityLen, ErrAllocation)
	}
	data, err := msgpack.Marshal(&stateData{Admin: string(s.Admin), TotalUsers: s.TotalUsers})
	if err != nil {
		return Account{}, fmt.Errorf("encode state: %w", err)
	}
	return Account{Kind: KindState, Space: StateSpace, Data: data}, nil
}

func decodeState(acct Account) (State, error) {
	if acct.Kind != KindState {
		return State{}, fmt.Errorf("expected %s account, got %s: %w", KindState, acct.Kind, ErrCorruptAccount)
	}
	var d stateData
	if err := msgpack.Unmarshal(acct.Data, &d); err != nil {
		return State{}, fmt.Errorf("decode state: %v: %w", err, ErrCorruptAccount)
	}
	return State{Admin: Identity(d.Admin), TotalUsers: d.TotalUsers}, nil
}

func encodeUser(u UserRecord) (Account, error) {
	for _, f := range []struct {
		name  string
		value string
		limit int
	}{
		{"phone", u.Phone, MaxPhoneLen},
		{"address", u.Address, MaxAddressLen},
		{"encrypted_mnemonic", u.EncryptedMnemonic, MaxMnemonicLen},
	} {
		if len(f.value) > f.limit {
			return Account{}, fmt.Errorf("%s is %d bytes, limit %d: %w", f.name, len(f.value), f.limit, ErrAllocation)
		}
	}
	data, err := msgpack.Marshal(&userData{
		Phone:             u.Phone,
		Address:           u.Address,
		EncryptedMnemonic: u.EncryptedMnemonic,
		CreatedAt:         u.CreatedAt,
	})
	if err != nil {
		return Account{}, fmt.Errorf("encode user: %w", err)
	}
	return Account{Kind: KindUser, Space: UserSpace, Data: data}, nil
}

func decodeUser(acct Account) (UserRecord, error) {
	if acct.Kind != KindUser {
		return UserRecord{}, fmt.Errorf("expected %s account, got %s: %w", KindUser, acct.Kind, ErrCorruptAccount)
	}
	var d userData
	if err := msgpack.Unmarshal(acct.Data, &d); err != nil {
		return UserRecord{}, fmt.Errorf("decode user: %v: %w", err, ErrCorruptAccount)
	}
	return UserRecord{
		Phone:             d.Phone,
		Address:           d.Address,
		EncryptedMnemonic: d.EncryptedMnemonic,
		CreatedAt:         d.CreatedAt,
	}, nil
}
