package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s-rangarajan/festicart/internal/cart"
	pkgerrors "github.com/s-rangarajan/festicart/internal/errors"
)

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var payload map[string]any
	assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
	return payload
}

func TestLoginPostsCredentialsAndReturnsToken(t *testing.T) {
	var payload map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/login", r.URL.Path)
		payload = decodeBody(t, r)
		_, _ = io.WriteString(w, `{"data":{"access_token":"tok","client":{"IDPERS":7,"NOMPERS":"Martin","PRENOMPERS":"Lea","MAILCLIENT":"lea@example.com"}}}`)
	})

	result, err := c.Login(context.Background(), LoginRequest{Email: "lea@example.com", Password: "secret"})

	require.NoError(t, err)
	require.Equal(t, "tok", result.Token)
	require.Equal(t, cart.ID("7"), result.Client.ID)
	require.Equal(t, "Lea Martin", result.Client.DisplayName())
	require.Equal(t, map[string]any{"MAILCLIENT": "lea@example.com", "password": "secret"}, payload)
}

func TestLoginValidatesBeforeCallingTheAPI(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := c.Login(context.Background(), LoginRequest{Email: "not-an-email", Password: "secret"})

	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	require.Equal(t, "email must be a valid email", typed.Message())
	require.False(t, called)
}

func TestLoginRejectsResponseWithoutToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"client":{"IDPERS":7}}}`)
	})

	_, err := c.Login(context.Background(), LoginRequest{Email: "lea@example.com", Password: "secret"})

	require.ErrorIs(t, err, ErrUnrecognizedResponse)
}

func TestRegisterRequiresMatchingPasswords(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := c.Register(context.Background(), RegisterRequest{
		LastName:             "Martin",
		FirstName:            "Lea",
		Email:                "lea@example.com",
		Phone:                "0601020304",
		Password:             "longenough",
		PasswordConfirmation: "different1",
	})

	require.Error(t, err)
	require.Equal(t, "password_confirmation must match Password", pkgerrors.As(err).Message())
	require.False(t, called)
}

func TestMeAcceptsEveryKnownNesting(t *testing.T) {
	bodies := []string{
		`{"data":{"client":{"IDPERS":7,"NOMPERS":"Martin"}}}`,
		`{"data":{"user":{"IDPERS":7,"NOMPERS":"Martin"}}}`,
		`{"client":{"IDPERS":7,"NOMPERS":"Martin"}}`,
		`{"data":{"IDPERS":7,"NOMPERS":"Martin"}}`,
		`{"IDPERS":7,"NOMPERS":"Martin"}`,
	}

	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/me", r.URL.Path)
				_, _ = io.WriteString(w, body)
			})

			profile, err := c.Me(context.Background())

			require.NoError(t, err)
			require.Equal(t, cart.ID("7"), profile.ID)
			require.Equal(t, "Martin", profile.LastName)
		})
	}
}

func TestMeRejectsProfileWithoutID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"message":"hello"}}`)
	})

	_, err := c.Me(context.Background())

	require.ErrorIs(t, err, ErrUnrecognizedResponse)
}

func TestUpdateProfileSendsDigitsOnlyPhone(t *testing.T) {
	var payload map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		payload = decodeBody(t, r)
		w.WriteHeader(http.StatusOK)
	})

	err := c.UpdateProfile(context.Background(), ProfileUpdate{
		LastName:  "Martin",
		FirstName: "Lea",
		Email:     "lea@example.com",
		Phone:     "+33 6 01-02-03-04",
	})

	require.NoError(t, err)
	require.Equal(t, "33601020304", payload["TELCLIENT"])
}

func TestAdminFlagFromRoleOrFlag(t *testing.T) {
	byRole, err := normalizeClient(wireClient{IDPERS: "1", ROLEPERS: "Admin"})
	require.NoError(t, err)
	require.True(t, byRole.IsAdmin)

	byFlag, err := normalizeClient(wireClient{ID: "2", IsAdmin: true})
	require.NoError(t, err)
	require.True(t, byFlag.IsAdmin)
}
