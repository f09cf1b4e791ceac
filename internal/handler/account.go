package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/campus-forum/internal/account"
	"github.com/sakif/campus-forum/internal/apperror"
	"github.com/sakif/campus-forum/internal/auth"
)

// AccountHandler manages registration, login, and the account-scoped views
// (profile, notifications).
//
// DEPENDENCY CHAIN:
//   - accounts *account.Service — registration/login/profile rules
//   - tokens   *auth.TokenService — issues the session JWT cookie
//
// The handler parses requests and writes responses; every rule lives in the
// service. Responses carry plain data — never internal locks or mutable
// shared structures.
type AccountHandler struct {
	accounts *account.Service
	tokens   *auth.TokenService
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(accounts *account.Service, tokens *auth.TokenService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, tokens: tokens, logger: logger}
}

// sessionCookie builds the HttpOnly JWT cookie. maxAge <= 0 clears it.
func sessionCookie(token string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     "token",
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// HandleRegister creates a new account.
//
// HTTP: POST /api/register
// BODY: {"studentId": "S1", "nickname": "N1", "password": "pw1",
//        "email": "s1@example.edu", "code": "123456"}
//
// email/code are optional — when both are present, the verification code is
// checked against the email collaborator before the account is created.
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StudentID string `json:"studentId"`
		Nickname  string `json:"nickname"`
		Password  string `json:"password"`
		Email     string `json:"email"`
		Code      string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	if req.Email != "" || req.Code != "" {
		if !h.accounts.VerifyCode(req.Email, req.Code) {
			writeError(w, apperror.ValidationFailed("code", "verification code is invalid or expired"))
			return
		}
	}

	user, err := h.accounts.Register(req.StudentID, req.Nickname, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// HandleLogin verifies credentials and sets the session cookie.
//
// HTTP: POST /api/login
// BODY: {"studentId": "S1", "password": "pw1"}
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StudentID string `json:"studentId"`
		Password  string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	user, err := h.accounts.Login(req.StudentID, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := h.tokens.Generate(user.StudentID)
	if err != nil {
		h.logger.Error("issuing session token",
			slog.String("studentID", user.StudentID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	http.SetCookie(w, sessionCookie(token, 12*60*60))
	writeJSON(w, http.StatusOK, user)
}

// HandleLogout ends the session and clears the cookie.
//
// HTTP: POST /api/logout
func (h *AccountHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.accounts.Logout()
	http.SetCookie(w, sessionCookie("", -1))
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleMe returns the authenticated user's profile.
//
// HTTP: GET /api/me (behind RequireAuth)
func (h *AccountHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	studentID, _ := auth.StudentIDFromContext(r.Context())

	user, err := h.accounts.Get(studentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleUpdateProfile changes nickname and/or avatar path.
//
// HTTP: PUT /api/me (behind RequireAuth)
// BODY: {"nickname": "new", "avatarPath": "cat.png"}
func (h *AccountHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	studentID, _ := auth.StudentIDFromContext(r.Context())

	var req struct {
		Nickname   string `json:"nickname"`
		AvatarPath string `json:"avatarPath"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	if err := h.accounts.UpdateProfile(studentID, req.Nickname, req.AvatarPath); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.accounts.Get(studentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleUpdatePassword re-derives the stored credentials.
//
// HTTP: PUT /api/me/password (behind RequireAuth)
// BODY: {"oldPassword": "...", "newPassword": "..."}
func (h *AccountHandler) HandleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	studentID, _ := auth.StudentIDFromContext(r.Context())

	var req struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	if err := h.accounts.UpdatePassword(studentID, req.OldPassword, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleSendCode asks the email collaborator to issue a verification code.
//
// HTTP: POST /api/verification-code
// BODY: {"email": "s1@example.edu"}
func (h *AccountHandler) HandleSendCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	if err := h.accounts.SendVerificationCode(req.Email); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleNotifications returns the authenticated user's notifications,
// newest delivery last (append order).
//
// HTTP: GET /api/me/notifications (behind RequireAuth)
func (h *AccountHandler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	studentID, _ := auth.StudentIDFromContext(r.Context())
	writeJSON(w, http.StatusOK, h.accounts.Notifications(studentID))
}

// HandleMarkNotificationRead flips one notification's read flag.
//
// HTTP: POST /api/me/notifications/{id}/read (behind RequireAuth)
func (h *AccountHandler) HandleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	studentID, _ := auth.StudentIDFromContext(r.Context())
	notificationID := r.PathValue("id")

	if err := h.accounts.MarkNotificationRead(studentID, notificationID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
