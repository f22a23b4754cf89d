package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/egannguyen/cart-ecommerce/internal/auth"
	"github.com/egannguyen/cart-ecommerce/internal/entity"
	"github.com/egannguyen/cart-ecommerce/internal/notify"
	"github.com/egannguyen/cart-ecommerce/internal/repository"
	"github.com/google/uuid"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^[0-9]{11}$`)
)

const minPasswordLength = 8

// AccountSettings are the token lifetimes and secrets of the account flows.
type AccountSettings struct {
	OTPTTL    time.Duration
	ResetTTL  time.Duration
	AdminKey  string
	PublicURL string
}

// RegisterInput is a signup request.
type RegisterInput struct {
	Fullname string      `json:"fullname"`
	Phone    string      `json:"phone_no"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     entity.Role `json:"role,omitempty"`
	AdminKey string      `json:"admin_key,omitempty"`
}

func (in *RegisterInput) normalize() error {
	in.Fullname = strings.TrimSpace(in.Fullname)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	if in.Role == "" {
		in.Role = entity.RoleMember
	}
	switch {
	case in.Fullname == "":
		return entity.ValidationError("fullname is required")
	case !phonePattern.MatchString(in.Phone):
		return entity.ValidationError("phone number must be 11 digits")
	case !emailPattern.MatchString(in.Email):
		return entity.ValidationError("email address is invalid")
	case len(in.Password) < minPasswordLength:
		return entity.ValidationError("password must be at least 8 characters")
	case in.Role != entity.RoleMember && in.Role != entity.RoleAdmin:
		return entity.ValidationError("unknown role")
	}
	return nil
}

// Session is returned on login and activation.
type Session struct {
	Token string       `json:"token"`
	User  *entity.User `json:"user"`
}

// AccountService covers signup, login and the address book.
type AccountService struct {
	Deps
	tokens   *auth.Tokens
	otp      *auth.OTPCipher
	settings AccountSettings
	now      func() time.Time
}

func NewAccountService(deps Deps, tokens *auth.Tokens, otp *auth.OTPCipher, settings AccountSettings) (*AccountService, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if tokens == nil || otp == nil {
		return nil, errors.New("token issuer and otp cipher are required")
	}
	return &AccountService{Deps: deps, tokens: tokens, otp: otp, settings: settings, now: time.Now}, nil
}

func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*entity.User, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if in.Role == entity.RoleAdmin {
		if s.settings.AdminKey == "" || subtle.ConstantTimeCompare([]byte(in.AdminKey), []byte(s.settings.AdminKey)) != 1 {
			return nil, entity.ErrForbidden
		}
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &entity.User{
		ID:           uuid.NewString(),
		Fullname:     in.Fullname,
		Phone:        in.Phone,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		CreatedAt:    s.now(),
	}
	err = s.Users.Create(ctx, user)
	if errors.Is(err, repository.ErrConflict) {
		return nil, entity.ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.Logger.Infow("User registered", "user_id", user.ID, "role", user.Role)

	if err := s.issueOTP(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Activate verifies the emailed code and signs the user in.
func (s *AccountService) Activate(ctx context.Context, email, code string) (*Session, error) {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.IsVerified {
		return nil, entity.ValidationError("account is already verified")
	}
	if user.OTPCipher == "" || user.OTPExpiresAt == nil || !s.now().Before(*user.OTPExpiresAt) {
		return nil, entity.ErrTokenExpired
	}
	if !s.otp.Matches(user.OTPCipher, strings.TrimSpace(code)) {
		return nil, entity.ValidationError("verification code is incorrect")
	}
	if err := s.Users.Activate(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("failed to activate user: %w", err)
	}
	user.IsVerified = true
	user.OTPCipher, user.OTPExpiresAt = "", nil

	s.Logger.Infow("User activated", "user_id", user.ID)
	notify.Dispatch(ctx, s.Notifier, s.Logger, notify.Message{
		To:       user.Email,
		Template: notify.TemplateWelcome,
		Data:     map[string]any{"name": user.Fullname},
	})
	return s.session(ctx, user)
}

func (s *AccountService) ResendOTP(ctx context.Context, email string) error {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return entity.ValidationError("account is already verified")
	}
	return s.issueOTP(ctx, user)
}

func (s *AccountService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.Users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, entity.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, entity.ErrInvalidCredentials
	}
	return s.session(ctx, user)
}

func (s *AccountService) Logout(ctx context.Context, caller entity.Identity) error {
	if err := s.Users.SetOnline(ctx, caller.UserID, false); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}

// ForgotPassword emails a reset link. Unknown addresses are not disclosed.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.Users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repository.ErrNotFound) {
		s.Logger.Infow("Password reset for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}

	token, hash, err := auth.NewResetToken()
	if err != nil {
		return err
	}
	if err := s.Users.SetResetToken(ctx, user.ID, hash, s.now().Add(s.settings.ResetTTL)); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	link := fmt.Sprintf("%s/auth/password/reset?email=%s&token=%s",
		strings.TrimRight(s.settings.PublicURL, "/"), url.QueryEscape(user.Email), token)
	notify.Dispatch(ctx, s.Notifier, s.Logger, notify.Message{
		To:       user.Email,
		Template: notify.TemplateForgotPassword,
		Data:     map[string]any{"name": user.Fullname, "link": link, "minutes": int(s.settings.ResetTTL.Minutes())},
	})
	return nil
}

func (s *AccountService) ResetPassword(ctx context.Context, email, token, password string) error {
	if len(password) < minPasswordLength {
		return entity.ValidationError("password must be at least 8 characters")
	}
	user, err := s.Users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repository.ErrNotFound) {
		return entity.ErrTokenExpired
	}
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user.ResetTokenHash == "" || user.ResetExpiresAt == nil || !s.now().Before(*user.ResetExpiresAt) {
		return entity.ErrTokenExpired
	}
	if subtle.ConstantTimeCompare([]byte(auth.HashToken(token)), []byte(user.ResetTokenHash)) != 1 {
		return entity.ErrTokenExpired
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.Users.ResetPassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}
	s.Logger.Infow("Password reset", "user_id", user.ID)
	return nil
}

// AddressInput is a new address book entry.
type AddressInput struct {
	Recipient string `json:"recipient"`
	Phone     string `json:"phone"`
	Street    string `json:"street"`
	City      string `json:"city"`
	Region    string `json:"region"`
	IsDefault bool   `json:"default"`
}

func (s *AccountService) AddAddress(ctx context.Context, caller entity.Identity, in AddressInput) (*entity.Address, error) {
	addr := &entity.Address{
		ID:        uuid.NewString(),
		UserID:    caller.UserID,
		Recipient: strings.TrimSpace(in.Recipient),
		Phone:     strings.TrimSpace(in.Phone),
		Street:    strings.TrimSpace(in.Street),
		City:      strings.TrimSpace(in.City),
		Region:    strings.TrimSpace(in.Region),
		IsDefault: in.IsDefault,
	}
	if addr.Recipient == "" || addr.Street == "" || addr.City == "" || addr.Region == "" {
		return nil, entity.ValidationError("recipient, street, city and region are required")
	}
	if err := s.Users.AddAddress(ctx, addr); err != nil {
		return nil, fmt.Errorf("failed to add address: %w", err)
	}
	return addr, nil
}

func (s *AccountService) ListAddresses(ctx context.Context, caller entity.Identity) ([]entity.Address, error) {
	list, err := s.Users.ListAddresses(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	if list == nil {
		list = []entity.Address{}
	}
	return list, nil
}

// ListSavedCards returns the caller's cards in masked form.
func (s *AccountService) ListSavedCards(ctx context.Context, caller entity.Identity) ([]entity.CardSummary, error) {
	cards, err := s.Users.ListSavedCards(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	out := make([]entity.CardSummary, 0, len(cards))
	for _, c := range cards {
		out = append(out, entity.CardSummary{ID: c.CardID(), Display: c.Masked()})
	}
	return out, nil
}

func (s *AccountService) issueOTP(ctx context.Context, user *entity.User) error {
	code, err := auth.GenerateOTP()
	if err != nil {
		return err
	}
	sealed, err := s.otp.Encrypt(code)
	if err != nil {
		return err
	}
	if err := s.Users.SetOTP(ctx, user.ID, sealed, s.now().Add(s.settings.OTPTTL)); err != nil {
		return fmt.Errorf("failed to store otp: %w", err)
	}
	notify.Dispatch(ctx, s.Notifier, s.Logger, notify.Message{
		To:       user.Email,
		Template: notify.TemplateOTP,
		Data:     map[string]any{"name": user.Fullname, "otp": code, "minutes": int(s.settings.OTPTTL.Minutes())},
	})
	return nil
}

func (s *AccountService) session(ctx context.Context, user *entity.User) (*Session, error) {
	if err := s.Users.SetOnline(ctx, user.ID, true); err != nil {
		return nil, fmt.Errorf("failed to mark user online: %w", err)
	}
	user.IsOnline = true
	token, err := s.tokens.BuildJWT(entity.Identity{
		UserID:     user.ID,
		Email:      user.Email,
		Role:       user.Role,
		IsVerified: user.IsVerified,
	})
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: user}, nil
}

func (s *AccountService) userByEmail(ctx context.Context, email string) (*entity.User, error) {
	user, err := s.Users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, entity.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}
