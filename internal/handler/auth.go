// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"

	"github.com/alrawaj/rawaj-web/internal/backend"
	"github.com/alrawaj/rawaj-web/internal/middleware"
	"github.com/alrawaj/rawaj-web/internal/state"
	"github.com/alrawaj/rawaj-web/internal/visitor"
)

// EmailConfirmer redeems confirmation links sent after sign-up.
type EmailConfirmer interface {
	ConfirmEmail(ctx context.Context, token string) error
}

// AuthHandler handles sign-in, sign-up and sign-out.
type AuthHandler struct {
	base
	sessionManager  *scs.SessionManager
	loginProtection *middleware.LoginProtection
	confirmer       EmailConfirmer
}

// NewAuthHandler creates a new AuthHandler. loginProtection and confirmer
// may be nil.
func NewAuthHandler(d Deps, sm *scs.SessionManager, lp *middleware.LoginProtection, confirmer EmailConfirmer) *AuthHandler {
	return &AuthHandler{
		base:            newBase(d),
		sessionManager:  sm,
		loginProtection: lp,
		confirmer:       confirmer,
	}
}

// LoginData holds data for the login form.
type LoginData struct {
	Email string
	From  string
	Error string
}

// SignupData holds data for the sign-up form.
type SignupData struct {
	FullName   string
	Phone      string
	Email      string
	Error      string
	CheckEmail bool
}

// homeFor returns where a signed-in visitor lands.
func homeFor(v *visitor.Visitor) string {
	if v.Admin.IsAdmin() {
		return "/admin"
	}
	return "/"
}

// LoginForm handles GET /login.
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	v, ok := requireVisitor(w, r)
	if !ok {
		return
	}
	if v.Session.Session() != nil {
		http.Redirect(w, r, homeFor(v), http.StatusSeeOther)
		return
	}

	data := LoginData{From: r.URL.Query().Get("from")}
	h.render(w, r, "auth/login", h.page(r, "auth.loginTitle", data))
}

// Login handles POST /login. Admins go to the page they were sent away
// from, or the dashboard; everyone else goes home.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	v, ok := requireVisitor(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	data := LoginData{
		Email: strings.TrimSpace(r.PostFormValue("email")),
		From:  r.PostFormValue("from"),
	}
	password := r.PostFormValue("password")

	if data.Email == "" || password == "" {
		data.Error = h.t(r, "auth.required")
		h.renderStatus(w, r, http.StatusUnprocessableEntity, "auth/login", h.page(r, "auth.loginTitle", data))
		return
	}

	if h.loginProtection != nil {
		if locked, remaining := h.loginProtection.IsLocked(data.Email); locked {
			h.logger.Warn("login attempt on locked account", "email", data.Email, "remaining", remaining)
			data.Error = h.t(r, "auth.tooManyAttempts")
			h.renderStatus(w, r, http.StatusTooManyRequests, "auth/login", h.page(r, "auth.loginTitle", data))
			return
		}
	}

	res, err := v.Admin.Login(r.Context(), data.Email, password)
	if err != nil {
		h.logger.Info("login failed", "email", data.Email, "error", err)
		data.Error = h.authErrorMessage(r, err)
		if h.loginProtection != nil {
			if locked, _ := h.loginProtection.RecordFailure(data.Email); locked {
				data.Error = h.t(r, "auth.tooManyAttempts")
			}
		}
		h.renderStatus(w, r, http.StatusUnprocessableEntity, "auth/login", h.page(r, "auth.loginTitle", data))
		return
	}

	if h.loginProtection != nil {
		h.loginProtection.RecordSuccess(data.Email)
	}
	h.renewToken(r)

	h.logger.Info("user logged in", "user_id", res.Session.User.ID, "admin", res.IsAdmin)

	target := "/"
	if res.IsAdmin {
		target = middleware.SafeRedirectPath(data.From, "/admin")
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// authErrorMessage shows backend errors verbatim except the unconfirmed
// email case, which gets a friendlier message.
func (h *AuthHandler) authErrorMessage(r *http.Request, err error) string {
	if backend.ErrorCode(err) == backend.CodeEmailNotConfirmed {
		return h.t(r, "auth.emailNotConfirmed")
	}
	return err.Error()
}

// SignupForm handles GET /signup.
func (h *AuthHandler) SignupForm(w http.ResponseWriter, r *http.Request) {
	v, ok := requireVisitor(w, r)
	if !ok {
		return
	}
	if v.Session.Session() != nil {
		http.Redirect(w, r, homeFor(v), http.StatusSeeOther)
		return
	}
	h.render(w, r, "auth/signup", h.page(r, "auth.signupTitle", SignupData{}))
}

// Signup handles POST /signup. When the backend requires email
// confirmation no session is issued and the visitor is asked to check
// their inbox.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	v, ok := requireVisitor(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	data := SignupData{
		FullName: strings.TrimSpace(r.PostFormValue("full_name")),
		Phone:    strings.TrimSpace(r.PostFormValue("phone")),
		Email:    strings.TrimSpace(r.PostFormValue("email")),
	}
	password := r.PostFormValue("password")

	if data.Email == "" || password == "" {
		data.Error = h.t(r, "auth.required")
		h.renderStatus(w, r, http.StatusUnprocessableEntity, "auth/signup", h.page(r, "auth.signupTitle", data))
		return
	}

	res, err := v.Session.SignUp(r.Context(), data.Email, password, state.Profile{
		FullName:    data.FullName,
		PhoneNumber: data.Phone,
	})
	if err != nil {
		h.logger.Info("sign up failed", "email", data.Email, "error", err)
		data.Error = err.Error()
		h.renderStatus(w, r, http.StatusUnprocessableEntity, "auth/signup", h.page(r, "auth.signupTitle", data))
		return
	}

	if res.Session == nil {
		h.render(w, r, "auth/signup", h.page(r, "auth.signupTitle", SignupData{CheckEmail: true}))
		return
	}

	h.renewToken(r)
	flashSuccess(w, r, h.renderer, "/", h.t(r, "auth.signupSuccess"))
}

// Logout handles POST /logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	v, ok := requireVisitor(w, r)
	if !ok {
		return
	}

	userID := v.Session.UserID()
	if err := v.Admin.Logout(r.Context()); err != nil {
		h.logger.Warn("logout reported an error", "user_id", userID, "error", err)
	}
	h.renewToken(r)

	h.logger.Info("user logged out", "user_id", userID)
	flashInfo(w, r, h.renderer, "/", h.t(r, "auth.loggedOut"))
}

// Confirm handles GET /auth/confirm?token=.
func (h *AuthHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if h.confirmer == nil {
		http.NotFound(w, r)
		return
	}

	if err := h.confirmer.ConfirmEmail(r.Context(), r.URL.Query().Get("token")); err != nil {
		h.logger.Info("email confirmation failed", "error", err)
		flashError(w, r, h.renderer, "/login", h.t(r, "auth.confirmFailed"))
		return
	}
	flashSuccess(w, r, h.renderer, "/login", h.t(r, "auth.confirmed"))
}

// renewToken rotates the scs token on privilege changes. The visitor id
// stored in the session is kept.
func (h *AuthHandler) renewToken(r *http.Request) {
	if h.sessionManager == nil {
		return
	}
	if err := h.sessionManager.RenewToken(r.Context()); err != nil {
		h.logger.Error("failed to renew session token", "error", err)
	}
}
