package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tickerlens/tickerlens/internal/middleware"
	"github.com/tickerlens/tickerlens/internal/session"
)

const accessTokenDuration = 12 * time.Hour

type userCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionView struct {
	LoggedIn    bool   `json:"loggedIn"`
	Email       string `json:"email,omitempty"`
	MFAEnabled  bool   `json:"mfaEnabled"`
	MFARequired bool   `json:"mfaRequired"`
	MFAVerified bool   `json:"mfaVerified"`
}

type KeyProvider interface {
	VerificationKey() ([]byte, error)
}

type TokenIssuer interface {
	KeyProvider
	Issue(email string, validFor time.Duration) (string, error)
	VerifyAndGetEmail(token string) (string, error)
}

type SessionHandler struct {
	sessions *session.Service
	tokens   TokenIssuer
	logger   *slog.Logger
}

func NewSessionHandler(logger *slog.Logger, sessions *session.Service, tokens TokenIssuer) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		tokens:   tokens,
		logger:   logger,
	}
}

func (h *SessionHandler) Run(ctx context.Context, addr string) {
	mx := http.NewServeMux()
	mx.HandleFunc("GET /jwks", h.jwks)
	mx.HandleFunc("GET /session", h.session)
	mx.HandleFunc("POST /login", h.login)
	mx.HandleFunc("POST /logout", h.logout)
	mx.HandleFunc("POST /mfa/enable", h.enableMFA)
	mx.HandleFunc("POST /mfa/disable", h.disableMFA)
	mx.HandleFunc("POST /mfa/verify", h.verifyMFA)

	handler := middleware.Attach(mx, middleware.Logging(h.logger))

	srv := http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error(err.Error())
		}
	}()

	<-ctx.Done()

	timeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(timeout); err != nil {
		h.logger.Error(err.Error())
	}
}

func (h *SessionHandler) login(w http.ResponseWriter, r *http.Request) {
	var credentials userCredentials
	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	snap, err := h.sessions.Login(r.Context(), credentials.Email, credentials.Password)
	if errors.Is(err, session.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	h.writeSession(w, snap)
}

func (h *SessionHandler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context()); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) enableMFA(w http.ResponseWriter, r *http.Request) {
	h.mutateMFA(w, r, h.sessions.EnableMFA)
}

func (h *SessionHandler) disableMFA(w http.ResponseWriter, r *http.Request) {
	h.mutateMFA(w, r, h.sessions.DisableMFA)
}

func (h *SessionHandler) mutateMFA(w http.ResponseWriter, r *http.Request, op func(context.Context) error) {
	err := op(r.Context())
	if errors.Is(err, session.ErrNoActiveSession) {
		writeError(w, http.StatusConflict, "no active session")
		return
	}
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	h.writeSession(w, h.sessions.Snapshot())
}

func (h *SessionHandler) verifyMFA(w http.ResponseWriter, r *http.Request) {
	inputData := struct {
		Code string `json:"code"`
	}{}

	if err := json.NewDecoder(r.Body).Decode(&inputData); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ok, err := h.sessions.VerifyMFA(r.Context(), inputData.Code)
	if errors.Is(err, session.ErrNoActiveSession) {
		writeError(w, http.StatusConflict, "no active session")
		return
	}
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid code")
		return
	}

	h.writeSession(w, h.sessions.Snapshot())
}

// session reports the current snapshot. A bearer token, when presented, is
// verified and its subject echoed back; a token that fails verification is
// rejected outright.
func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) {
	tokenEmail := ""
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		rawToken, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		email, err := h.tokens.VerifyAndGetEmail(rawToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		tokenEmail = email
	}

	h.writeSessionToken(w, h.sessions.Snapshot(), tokenEmail)
}

func (h *SessionHandler) jwks(w http.ResponseWriter, _ *http.Request) {
	key, err := h.tokens.VerificationKey()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if _, err := w.Write(key); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// writeSession renders the snapshot and, once the session needs no further
// verification, attaches a fresh access token.
func (h *SessionHandler) writeSession(w http.ResponseWriter, snap session.Snapshot) {
	h.writeSessionToken(w, snap, "")
}

func (h *SessionHandler) writeSessionToken(w http.ResponseWriter, snap session.Snapshot, tokenEmail string) {
	view := sessionView{
		LoggedIn:    snap.LoggedIn(),
		MFARequired: snap.MFARequired,
		MFAVerified: snap.MFAVerified,
	}
	if snap.User != nil {
		view.Email = snap.User.Email
		view.MFAEnabled = snap.User.MFAEnabled
	}

	outputData := struct {
		Session    sessionView `json:"session"`
		Token      string      `json:"token,omitempty"`
		TokenEmail string      `json:"tokenEmail,omitempty"`
	}{Session: view, TokenEmail: tokenEmail}

	if snap.LoggedIn() && snap.MFAVerified {
		token, err := h.tokens.Issue(view.Email, accessTokenDuration)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		outputData.Token = token
	}

	if err := json.NewEncoder(w).Encode(outputData); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: message})
}
