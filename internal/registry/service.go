package registry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pigeon-sms/pigeon/internal/notification"
)

// Operation names reported to the Recorder.
const (
	OpInitialize     = "initialize"
	OpOnboardUser    = "onboard_user"
	OpUpdateUser     = "update_user"
	OpDeleteUser     = "delete_user"
	OpGetUser        = "get_user"
	OpUserExists     = "user_exists"
	OpGetUserAddress = "get_user_address"
	OpGetTotalUsers  = "get_total_users"
	OpGetState       = "get_state"
	OpNotify         = "notify"
)

// Recorder observes operation outcomes.
type Recorder interface {
	ObserveOperation(op string, err error)
	SetTotalUsers(n uint64)
}

// Service applies the registry's state transitions on top of a Store.
type Service struct {
	store    Store
	notifier notification.Notifier
	recorder Recorder
	now      func() time.Time
}

// NewService creates a registry service. notifier and recorder may be nil.
func NewService(store Store, notifier notification.Notifier, recorder Recorder) *Service {
	return &Service{store: store, notifier: notifier, recorder: recorder, now: time.Now}
}

// Initialize records caller as the admin. It can succeed once per store.
func (s *Service) Initialize(ctx context.Context, caller Identity) (state State, err error) {
	defer s.observe(OpInitialize, &err)

	if caller.IsZero() {
		return State{}, ErrUnauthorized
	}
	state = State{Admin: caller}
	acct, err := encodeState(state)
	if err != nil {
		return State{}, err
	}
	stateAddr := StateAddress()
	err = s.store.Update(ctx, []Address{stateAddr}, func(ctx context.Context, tx Tx) error {
		return tx.Create(ctx, stateAddr, acct)
	})
	if err != nil {
		return State{}, fmt.Errorf("initialize: %w", err)
	}

	s.notify(ctx, notification.Event{Kind: notification.KindRegistryInitialized, Actor: caller.String()})
	s.setTotalUsers(0)
	return state, nil
}

// OnboardUser creates the account for in.Phone and bumps the user counter.
func (s *Service) OnboardUser(ctx context.Context, caller Identity, in OnboardInput) (user UserRecord, err error) {
	defer s.observe(OpOnboardUser, &err)

	user = UserRecord{
		Phone:             in.Phone,
		Address:           in.Address,
		EncryptedMnemonic: in.EncryptedMnemonic,
		CreatedAt:         in.CreatedAt,
	}
	userAddr := UserAddress(in.Phone)

	state, err := s.mutate(ctx, caller, []Address{userAddr}, func(ctx context.Context, tx Tx, state *State) error {
		userAcct, err := encodeUser(user)
		if err != nil {
			return err
		}
		if err := tx.Create(ctx, userAddr, userAcct); err != nil {
			return err
		}
		if state.TotalUsers == math.MaxUint64 {
			return ErrOverflow
		}
		state.TotalUsers++
		return nil
	})
	if err != nil {
		return UserRecord{}, fmt.Errorf("onboard %s: %w", in.Phone, err)
	}

	s.notify(ctx, notification.Event{
		Kind:       notification.KindUserOnboarded,
		Actor:      caller.String(),
		Phone:      user.Phone,
		TotalUsers: state.TotalUsers,
	})
	s.setTotalUsers(state.TotalUsers)
	return user, nil
}

// UpdateUser replaces the wallet address and encrypted mnemonic of an
// existing user. The phone and creation timestamp are kept as stored.
func (s *Service) UpdateUser(ctx context.Context, caller Identity, in UpdateInput) (user UserRecord, err error) {
	defer s.observe(OpUpdateUser, &err)

	userAddr := UserAddress(in.Phone)
	state, err := s.mutate(ctx, caller, []Address{userAddr}, func(ctx context.Context, tx Tx, _ *State) error {
		acct, found, err := tx.Get(ctx, userAddr)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		existing, err := decodeUser(acct)
		if err != nil {
			return err
		}
		existing.Address = in.Address
		existing.EncryptedMnemonic = in.EncryptedMnemonic
		updated, err := encodeUser(existing)
		if err != nil {
			return err
		}
		if err := tx.Put(ctx, userAddr, updated); err != nil {
			return err
		}
		user = existing
		return nil
	})
	if err != nil {
		return UserRecord{}, fmt.Errorf("update %s: %w", in.Phone, err)
	}

	s.notify(ctx, notification.Event{
		Kind:       notification.KindUserUpdated,
		Actor:      caller.String(),
		Phone:      user.Phone,
		TotalUsers: state.TotalUsers,
	})
	return user, nil
}

// DeleteUser releases the account for phone and decrements the user counter.
// The reclaimed space is credited to the admin.
func (s *Service) DeleteUser(ctx context.Context, caller Identity, phone string) (err error) {
	defer s.observe(OpDeleteUser, &err)

	userAddr := UserAddress(phone)
	var reclaimed int
	state, err := s.mutate(ctx, caller, []Address{userAddr}, func(ctx context.Context, tx Tx, state *State) error {
		_, found, err := tx.Get(ctx, userAddr)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		if state.TotalUsers == 0 {
			return ErrUnderflow
		}
		state.TotalUsers--
		reclaimed, err = tx.Delete(ctx, userAddr)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", phone, err)
	}

	s.notify(ctx, notification.Event{
		Kind:           notification.KindUserDeleted,
		Actor:          state.Admin.String(),
		Phone:          phone,
		TotalUsers:     state.TotalUsers,
		ReclaimedSpace: reclaimed,
	})
	s.setTotalUsers(state.TotalUsers)
	return nil
}

// GetUser returns the full record stored for phone.
func (s *Service) GetUser(ctx context.Context, phone string) (user UserRecord, err error) {
	defer s.observe(OpGetUser, &err)
	return s.loadUser(ctx, phone)
}

// UserExists reports whether an account lives at the address derived from phone.
func (s *Service) UserExists(ctx context.Context, phone string) (exists bool, err error) {
	defer s.observe(OpUserExists, &err)

	userAddr := UserAddress(phone)
	err = s.store.View(ctx, []Address{userAddr}, func(ctx context.Context, tx Tx) error {
		_, exists, err = tx.Get(ctx, userAddr)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("user exists %s: %w", phone, err)
	}
	return exists, nil
}

// GetUserAddress returns only the wallet address stored for phone.
func (s *Service) GetUserAddress(ctx context.Context, phone string) (address string, err error) {
	defer s.observe(OpGetUserAddress, &err)

	user, err := s.loadUser(ctx, phone)
	if err != nil {
		return "", err
	}
	return user.Address, nil
}

// GetTotalUsers returns the number of live user accounts.
func (s *Service) GetTotalUsers(ctx context.Context) (total uint64, err error) {
	defer s.observe(OpGetTotalUsers, &err)

	state, err := s.loadState(ctx)
	if err != nil {
		return 0, err
	}
	return state.TotalUsers, nil
}

// GetState returns the registry singleton.
func (s *Service) GetState(ctx context.Context) (state State, err error) {
	defer s.observe(OpGetState, &err)
	return s.loadState(ctx)
}

// PublishTotalUsers pushes the stored user count to the recorder. It lets a
// restarted process report the count before its first mutation.
func (s *Service) PublishTotalUsers(ctx context.Context) error {
	state, err := s.loadState(ctx)
	if err != nil {
		return err
	}
	s.setTotalUsers(state.TotalUsers)
	return nil
}

func (s *Service) loadUser(ctx context.Context, phone string) (UserRecord, error) {
	userAddr := UserAddress(phone)
	var user UserRecord
	err := s.store.View(ctx, []Address{userAddr}, func(ctx context.Context, tx Tx) error {
		acct, found, err := tx.Get(ctx, userAddr)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		user, err = decodeUser(acct)
		return err
	})
	if err != nil {
		return UserRecord{}, fmt.Errorf("get user %s: %w", phone, err)
	}
	return user, nil
}

func (s *Service) loadState(ctx context.Context) (State, error) {
	stateAddr := StateAddress()
	var state State
	err := s.store.View(ctx, []Address{stateAddr}, func(ctx context.Context, tx Tx) error {
		acct, found, err := tx.Get(ctx, stateAddr)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotInitialized
		}
		state, err = decodeState(acct)
		return err
	})
	if err != nil {
		return State{}, fmt.Errorf("load state: %w", err)
	}
	return state, nil
}

// mutate is the admin gate shared by every mutation. It loads the state inside
// the transaction, rejects callers other than the admin, runs fn and writes the
// state back if fn changed it.
func (s *Service) mutate(ctx context.Context, caller Identity, accounts []Address, fn func(ctx context.Context, tx Tx, state *State) error) (State, error) {
	stateAddr := StateAddress()
	var result State
	err := s.store.Update(ctx, append([]Address{stateAddr}, accounts...), func(ctx context.Context, tx Tx) error {
		acct, found, err := tx.Get(ctx, stateAddr)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotInitialized
		}
		state, err := decodeState(acct)
		if err != nil {
			return err
		}
		if caller.IsZero() || caller != state.Admin {
			return ErrUnauthorized
		}

		before := state
		if err := fn(ctx, tx, &state); err != nil {
			return err
		}
		if state != before {
			updated, err := encodeState(state)
			if err != nil {
				return err
			}
			if err := tx.Put(ctx, stateAddr, updated); err != nil {
				return err
			}
		}
		result = state
		return nil
	})
	return result, err
}

func (s *Service) notify(ctx context.Context, event notification.Event) {
	if s.notifier == nil {
		return
	}
	event.At = s.now().UTC()
	// Delivery problems never undo a committed mutation; they are only counted.
	err := s.notifier.Send(ctx, event)
	if s.recorder != nil {
		s.recorder.ObserveOperation(OpNotify, err)
	}
}

func (s *Service) observe(op string, err *error) {
	if s.recorder != nil {
		s.recorder.ObserveOperation(op, *err)
	}
}

func (s *Service) setTotalUsers(n uint64) {
	if s.recorder != nil {
		s.recorder.SetTotalUsers(n)
	}
}
