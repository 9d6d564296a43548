package handler

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/parisxmas/intake/internal/auth"
	"github.com/parisxmas/intake/internal/service"
	"github.com/parisxmas/intake/internal/session"
	"github.com/parisxmas/intake/internal/views"
)

type AuthHandler struct {
	svc      *service.AuthService
	sessions *session.Manager
	views    *views.Renderer
	secure   bool
}

func NewAuthHandler(svc *service.AuthService, sessions *session.Manager, v *views.Renderer, secure bool) *AuthHandler {
	return &AuthHandler{svc: svc, sessions: sessions, views: v, secure: secure}
}

// loginCookie carries a login token for browser pages. It lives as long as
// the browser session; the token carries its own expiry.
func loginCookie(token string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/apply"
	}
	return next
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	data := views.LoginPage{Page: page(r, nil, "Sign in"), Next: safeNext(r.URL.Query().Get("next"))}
	h.views.Render(w, http.StatusOK, views.PageLogin, data)
}

func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeBadForm(h.views, w, r, err)
		return
	}
	email := strings.TrimSpace(r.PostForm.Get("email"))
	next := safeNext(r.PostForm.Get("next"))
	result, err := h.svc.Login(r.Context(), email, r.PostForm.Get("password"))
	if err != nil {
		data := views.LoginPage{Page: page(r, nil, "Sign in"), Email: email, Next: next}
		data.Error = "Invalid email or password."
		if !errors.Is(err, service.ErrInvalidCredentials) {
			log.Printf("login failed: %v", err)
			data.Error = genericFailure
		}
		h.views.Render(w, http.StatusUnauthorized, views.PageLogin, data)
		return
	}
	http.SetCookie(w, loginCookie(result.Token, h.secure))
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// Logout clears the login cookie and forgets the session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(session.CookieName); err == nil && c.Value != "" {
		if err := h.sessions.Delete(r.Context(), c.Value); err != nil {
			log.Printf("session delete failed: %v", err)
		}
	}
	expired := loginCookie("", h.secure)
	expired.MaxAge = -1
	http.SetCookie(w, expired)
	gone := h.sessions.Cookie("")
	gone.MaxAge = -1
	http.SetCookie(w, gone)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	result, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUser(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, err := h.svc.Me(r.Context(), claims.UserID)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
