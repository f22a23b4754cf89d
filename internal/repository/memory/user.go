package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
	"github.com/egannguyen/cart-ecommerce/internal/repository"
)

type userRepository struct {
	mu        sync.Mutex
	users     map[string]*entity.User
	addresses map[string][]entity.Address
	cards     map[string][]entity.SavedCard
}

func newUserRepository() *userRepository {
	return &userRepository{
		users:     make(map[string]*entity.User),
		addresses: make(map[string][]entity.Address),
		cards:     make(map[string][]entity.SavedCard),
	}
}

func (r *userRepository) Create(_ context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrConflict
		}
	}
	c := *user
	r.users[user.ID] = &c
	return nil
}

func (r *userRepository) FindByID(_ context.Context, id string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (r *userRepository) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepository) update(id string, fn func(u *entity.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(u)
	return nil
}

func (r *userRepository) SetOTP(_ context.Context, id, cipher string, expires time.Time) error {
	return r.update(id, func(u *entity.User) {
		u.OTPCipher = cipher
		u.OTPExpiresAt = &expires
	})
}

func (r *userRepository) Activate(_ context.Context, id string) error {
	return r.update(id, func(u *entity.User) {
		u.IsVerified = true
		u.OTPCipher = ""
		u.OTPExpiresAt = nil
	})
}

func (r *userRepository) SetOnline(_ context.Context, id string, online bool) error {
	return r.update(id, func(u *entity.User) { u.IsOnline = online })
}

func (r *userRepository) SetResetToken(_ context.Context, id, hash string, expires time.Time) error {
	return r.update(id, func(u *entity.User) {
		u.ResetTokenHash = hash
		u.ResetExpiresAt = &expires
	})
}

func (r *userRepository) ResetPassword(_ context.Context, id, passwordHash string) error {
	return r.update(id, func(u *entity.User) {
		u.PasswordHash = passwordHash
		u.ResetTokenHash = ""
		u.ResetExpiresAt = nil
	})
}

func (r *userRepository) AddAddress(_ context.Context, addr *entity.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if addr.IsDefault {
		list := r.addresses[addr.UserID]
		for i := range list {
			list[i].IsDefault = false
		}
	}
	r.addresses[addr.UserID] = append(r.addresses[addr.UserID], *addr)
	return nil
}

func (r *userRepository) FindAddress(_ context.Context, userID, addressID string) (*entity.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.addresses[userID] {
		if a.ID == addressID {
			c := a
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepository) ListAddresses(_ context.Context, userID string) ([]entity.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.Address(nil), r.addresses[userID]...), nil
}

func (r *userRepository) AddSavedCard(_ context.Context, userID string, card entity.SavedCard) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cards[userID] {
		if c.AuthorizationCode == card.AuthorizationCode {
			return false, nil
		}
	}
	r.cards[userID] = append(r.cards[userID], card)
	return true, nil
}

func (r *userRepository) ListSavedCards(_ context.Context, userID string) ([]entity.SavedCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.SavedCard(nil), r.cards[userID]...), nil
}
