package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// User is an account holder. Secrets are stored hashed or encrypted.
type User struct {
	ID             string     `json:"id"`
	Fullname       string     `json:"fullname"`
	Phone          string     `json:"phone_no"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	Role           Role       `json:"role"`
	IsVerified     bool       `json:"is_verified"`
	IsOnline       bool       `json:"is_online"`
	OTPCipher      string     `json:"-"`
	OTPExpiresAt   *time.Time `json:"-"`
	ResetTokenHash string     `json:"-"`
	ResetExpiresAt *time.Time `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Identity is the authenticated caller as carried by an access token.
type Identity struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	Role       Role   `json:"role"`
	IsVerified bool   `json:"is_verified"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Address is an address book entry.
type Address struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Recipient string `json:"recipient"`
	Phone     string `json:"phone"`
	Street    string `json:"street"`
	City      string `json:"city"`
	Region    string `json:"region"`
	IsDefault bool   `json:"default"`
}

// Snapshot copies the address into the form stored on orders.
func (a *Address) Snapshot() ShippingAddress {
	return ShippingAddress{
		Recipient: a.Recipient,
		Phone:     a.Phone,
		Street:    a.Street,
		City:      a.City,
		Region:    a.Region,
	}
}

// SavedCard is a reusable card authorization returned by the gateway.
type SavedCard struct {
	AuthorizationCode string `json:"-"`
	CardType          string `json:"card_type"`
	Last4             string `json:"last4"`
	ExpMonth          string `json:"exp_month"`
	ExpYear           string `json:"exp_year"`
	Bank              string `json:"bank"`
}

// CardID is the handle buyers use to pick a card. It does not reveal the
// authorization code.
func (c SavedCard) CardID() string {
	sum := sha256.Sum256([]byte(c.AuthorizationCode))
	return hex.EncodeToString(sum[:8])
}

// CardSummary is a saved card as shown to its owner.
type CardSummary struct {
	ID      string `json:"id"`
	Display string `json:"display"`
}

// Masked renders the card as "VISA •••• 1234 (Bank, exp 12/30)".
func (c SavedCard) Masked() string {
	year := c.ExpYear
	if len(year) > 2 {
		year = year[len(year)-2:]
	}
	return fmt.Sprintf("%s •••• %s (%s, exp %s/%s)",
		strings.ToUpper(strings.TrimSpace(c.CardType)), c.Last4, c.Bank, c.ExpMonth, year)
}
