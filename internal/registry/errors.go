package registry

import "errors"

var (
	// ErrUnauthorized is returned when a gated mutation is attempted by anyone
	// other than the recorded admin.
	ErrUnauthorized = errors.New("only the admin can perform this action")

	// ErrOverflow indicates the user counter cannot be incremented.
	ErrOverflow = errors.New("arithmetic overflow")

	// ErrUnderflow indicates the user counter cannot be decremented.
	ErrUnderflow = errors.New("arithmetic underflow")

	// ErrAlreadyExists is returned when an exclusive create targets an occupied address.
	ErrAlreadyExists = errors.New("account already exists")

	// ErrNotFound is returned when an operation addresses an account that does not exist.
	ErrNotFound = errors.New("account not found")

	// ErrNotInitialized is returned when the registry state has not been created yet.
	ErrNotInitialized = errors.New("registry not initialized")

	// ErrAllocation indicates a record does not fit the space allocated for its account.
	ErrAllocation = errors.New("account allocation exceeded")

	// ErrCorruptAccount indicates stored data could not be decoded as the expected record.
	ErrCorruptAccount = errors.New("corrupt account data")

	// ErrReadOnly is returned by write calls made inside a read-only transaction.
	ErrReadOnly = errors.New("read-only transaction")

	// ErrConflict indicates a concurrent writer kept invalidating the transaction.
	ErrConflict = errors.New("concurrent modification")

	// ErrInvalidPhone indicates the phone number is empty or too long after normalization.
	ErrInvalidPhone = errors.New("phone must contain between 1 and 20 digits")
)
