package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/s-rangarajan/festicart/internal/cart"
)

// ClientProfile is the logged in customer.
type ClientProfile struct {
	ID        cart.ID `json:"id"`
	LastName  string  `json:"last_name"`
	FirstName string  `json:"first_name"`
	Email     string  `json:"email"`
	Phone     string  `json:"phone"`
	IsAdmin   bool    `json:"is_admin"`
}

func (p ClientProfile) DisplayName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

type wireClient struct {
	IDPERS     cart.ID `json:"IDPERS"`
	ID         cart.ID `json:"id"`
	NOMPERS    string  `json:"NOMPERS"`
	PRENOMPERS string  `json:"PRENOMPERS"`
	MAILCLIENT string  `json:"MAILCLIENT"`
	TELCLIENT  string  `json:"TELCLIENT"`
	ROLEPERS   string  `json:"ROLEPERS"`
	IsAdmin    flag    `json:"is_admin"`
}

func normalizeClient(w wireClient) (ClientProfile, error) {
	id := firstID(w.IDPERS, w.ID)
	if id == "" {
		return ClientProfile{}, fmt.Errorf("client without id: %w", ErrUnrecognizedResponse)
	}
	return ClientProfile{
		ID:        id,
		LastName:  w.NOMPERS,
		FirstName: w.PRENOMPERS,
		Email:     w.MAILCLIENT,
		Phone:     w.TELCLIENT,
		IsAdmin:   bool(w.IsAdmin) || strings.EqualFold(w.ROLEPERS, "admin"),
	}, nil
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	LastName             string `json:"last_name" validate:"required"`
	FirstName            string `json:"first_name" validate:"required"`
	Email                string `json:"email" validate:"required,email"`
	Phone                string `json:"phone" validate:"required"`
	Password             string `json:"password" validate:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

type ProfileUpdate struct {
	LastName  string `json:"last_name" validate:"required"`
	FirstName string `json:"first_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required"`
}

type PasswordChange struct {
	CurrentPassword         string `json:"current_password" validate:"required"`
	NewPassword             string `json:"new_password" validate:"required,min=8"`
	NewPasswordConfirmation string `json:"new_password_confirmation" validate:"required,eqfield=NewPassword"`
}

// AuthResult carries the client and the bearer token issued at login or
// registration.
type AuthResult struct {
	Client ClientProfile
	Token  string
}

type wireAuth struct {
	Data struct {
		Client      *wireClient `json:"client"`
		AccessToken string      `json:"access_token"`
	} `json:"data"`
}

func normalizeAuth(body json.RawMessage) (AuthResult, error) {
	var wire wireAuth
	if err := json.Unmarshal(body, &wire); err != nil {
		return AuthResult{}, fmt.Errorf("auth response: %w: %v", ErrUnrecognizedResponse, err)
	}
	if wire.Data.AccessToken == "" || wire.Data.Client == nil {
		return AuthResult{}, fmt.Errorf("auth response without token or client: %w", ErrUnrecognizedResponse)
	}
	client, err := normalizeClient(*wire.Data.Client)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Client: client, Token: wire.Data.AccessToken}, nil
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (AuthResult, error) {
	if err := Validate(req); err != nil {
		return AuthResult{}, err
	}

	var body json.RawMessage
	err := c.post(ctx, "/v1/login", map[string]string{
		"MAILCLIENT": req.Email,
		"password":   req.Password,
	}, &body)
	if err != nil {
		return AuthResult{}, err
	}
	return normalizeAuth(body)
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (AuthResult, error) {
	if err := Validate(req); err != nil {
		return AuthResult{}, err
	}

	var body json.RawMessage
	err := c.post(ctx, "/v1/register", map[string]string{
		"NOMPERS":               req.LastName,
		"PRENOMPERS":            req.FirstName,
		"MAILCLIENT":            req.Email,
		"TELCLIENT":             req.Phone,
		"password":              req.Password,
		"password_confirmation": req.PasswordConfirmation,
	}, &body)
	if err != nil {
		return AuthResult{}, err
	}
	return normalizeAuth(body)
}

type wireMe struct {
	Data struct {
		Client *wireClient `json:"client"`
		User   *wireClient `json:"user"`
	} `json:"data"`
	Client *wireClient `json:"client"`
}

// Me fetches the profile of the token holder. The backend nests the client
// under data.client, data.user, data or client depending on the route
// version; anything else is rejected.
func (c *Client) Me(ctx context.Context) (ClientProfile, error) {
	var body json.RawMessage
	if err := c.get(ctx, "/v1/me", &body); err != nil {
		return ClientProfile{}, err
	}

	var wire wireMe
	if err := json.Unmarshal(body, &wire); err != nil {
		return ClientProfile{}, fmt.Errorf("profile: %w: %v", ErrUnrecognizedResponse, err)
	}
	switch {
	case wire.Data.Client != nil:
		return normalizeClient(*wire.Data.Client)
	case wire.Data.User != nil:
		return normalizeClient(*wire.Data.User)
	case wire.Client != nil:
		return normalizeClient(*wire.Client)
	}

	var direct wireClient
	if err := json.Unmarshal(unwrap(body), &direct); err != nil {
		return ClientProfile{}, fmt.Errorf("profile: %w: %v", ErrUnrecognizedResponse, err)
	}
	return normalizeClient(direct)
}

// UpdateProfile sends the profile with the phone number reduced to digits.
func (c *Client) UpdateProfile(ctx context.Context, req ProfileUpdate) error {
	if err := Validate(req); err != nil {
		return err
	}
	return c.put(ctx, "/v1/me", map[string]string{
		"NOMPERS":    req.LastName,
		"PRENOMPERS": req.FirstName,
		"MAILCLIENT": req.Email,
		"TELCLIENT":  digitsOnly(req.Phone),
	}, nil)
}

func (c *Client) ChangePassword(ctx context.Context, req PasswordChange) error {
	if err := Validate(req); err != nil {
		return err
	}
	return c.post(ctx, "/v1/change-password", req, nil)
}

func (c *Client) DeleteAccount(ctx context.Context) error {
	return c.delete(ctx, "/v1/me", nil)
}

func (c *Client) Logout(ctx context.Context) error {
	return c.post(ctx, "/v1/logout", struct{}{}, nil)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
