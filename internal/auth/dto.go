package auth

import (
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/users"
)

// LoginRequest captures the shopper credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest contains the payload required to open a shopper account.
type RegisterRequest struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
}

// RefreshRequest carries the current access token (possibly expired) and its refresh token.
type RefreshRequest struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// MergeSummary reports what happened to the visitor's guest cart on sign-in.
type MergeSummary struct {
	GuestLines int `json:"guest_lines"`
	Migrated   int `json:"migrated_lines"`
	Failed     int `json:"failed_lines"`
}

// LoginResponse contains the tokens, user and merge outcome of a successful sign-in.
type LoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.UserDTO `json:"user"`
	CartMerge    *MergeSummary  `json:"cart_merge,omitempty"`
	// ClearGuestCookie tells the transport layer the guest cart is gone.
	ClearGuestCookie bool `json:"-"`
}

// TokenResponse is the rotated token pair returned by refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func mergeSummary(result cart.MergeResult) *MergeSummary {
	return &MergeSummary{
		GuestLines: result.GuestLines,
		Migrated:   result.Migrated,
		Failed:     result.Failed,
	}
}
