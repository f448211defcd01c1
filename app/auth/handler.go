package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mytheresa/storefront/app/httpx"
	"github.com/mytheresa/storefront/app/session"
	"github.com/mytheresa/storefront/models"
)

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

type CartMerger interface {
	Merge(ctx context.Context, sessionID string, userID uint) error
}

type TokenResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

type AuthHandler struct {
	users  UserStore
	carts  CartMerger
	tokens *Tokens
}

func NewAuthHandler(users UserStore, carts CartMerger, tokens *Tokens) *AuthHandler {
	return &AuthHandler{users: users, carts: carts, tokens: tokens}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Phone    string `json:"phone" validate:"omitempty,max=30"`
}

func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var input registerRequest
	if !httpx.Bind(w, r, &input) {
		return
	}

	user := &models.User{
		Name:  input.Name,
		Email: input.Email,
		Phone: input.Phone,
		Role:  models.RoleCustomer,
	}
	if err := user.SetPassword(input.Password); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to register")
		return
	}
	if err := h.users.CreateUser(r.Context(), user); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to register")
		return
	}

	h.signIn(w, r, user, http.StatusCreated)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var input loginRequest
	if !httpx.Bind(w, r, &input) {
		return
	}

	user, err := h.users.GetByEmail(r.Context(), input.Email)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		httpx.WriteDomainError(w, r, err, "Failed to sign in")
		return
	}
	if user == nil || !user.CheckPassword(input.Password) {
		httpx.WriteError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	h.signIn(w, r, user, http.StatusOK)
}

// signIn moves the guest cart over to the user and answers with a token.
func (h *AuthHandler) signIn(w http.ResponseWriter, r *http.Request, user *models.User, status int) {
	if sid := session.ID(r); sid != "" {
		if err := h.carts.Merge(r.Context(), sid, user.ID); err != nil {
			httpx.Log(r.Context()).WithError(err).WithField("user_id", user.ID).Warn("failed to merge guest cart")
		} else {
			session.Clear(w)
		}
	}

	token, expires, err := h.tokens.Issue(user)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to issue token")
		return
	}
	httpx.WriteJSON(w, status, TokenResponse{Token: token, ExpiresAt: expires, User: user})
}

func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, UserFrom(r.Context()))
}
