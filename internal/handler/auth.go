package handler

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/aryan0dhankhar/societyhub/internal/domain"
	"github.com/aryan0dhankhar/societyhub/internal/observability/metrics"
	"github.com/aryan0dhankhar/societyhub/internal/security/auth"
	"github.com/aryan0dhankhar/societyhub/internal/security/middleware"
	"github.com/aryan0dhankhar/societyhub/internal/security/ratelimit"
	"github.com/aryan0dhankhar/societyhub/internal/service"
)

var errRateLimited = &domain.Error{Kind: domain.KindAuth, Code: "rate_limited", Message: "too many login attempts, try again later"}

// emailLimitFactor scales the per-client login limit into the limit shared by
// every client trying the same email
const emailLimitFactor = 5

// AuthHandler handles login and password changes for both account types
type AuthHandler struct {
	authService    *service.AuthService
	limiter        *ratelimit.Limiter
	loginLimit     int
	loginWindow    time.Duration
	trustedProxies []netip.Prefix
	logger         *slog.Logger
}

// NewAuthHandler creates a new auth handler. limiter may be nil to disable
// login throttling. X-Forwarded-For is read only from peers in
// trustedProxies.
func NewAuthHandler(authService *service.AuthService, limiter *ratelimit.Limiter, loginLimit int, trustedProxies []netip.Prefix, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthHandler{
		authService:    authService,
		limiter:        limiter,
		loginLimit:     loginLimit,
		loginWindow:    time.Minute,
		trustedProxies: trustedProxies,
		logger:         logger,
	}
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email" validate:"required,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}

// Login returns the handler for POST /society/login or POST /resident/login
func (h *AuthHandler) Login(kind auth.AccountType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, h.logger, err)
			return
		}

		if h.limiter != nil && !h.allowLogin(kind, req.Email, r) {
			metrics.ObserveRateLimited("login")
			h.logger.Warn("login rate limited",
				slog.String("account_type", string(kind)),
				slog.String("remote_ip", h.clientIP(r)),
			)
			writeJSON(w, h.logger, http.StatusTooManyRequests, ErrorResponse{Error: errRateLimited.Code, Message: errRateLimited.Message})
			return
		}

		result, err := h.authService.Login(r.Context(), kind, req.Email, req.Password)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}

		writeJSON(w, h.logger, http.StatusOK, result)
	}
}

// ChangePasswordRequest represents change password request
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required,max=72"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
}

// ChangePassword returns the handler for PUT /society/password or
// PUT /resident/password. It acts on the session's own account only.
func (h *AuthHandler) ChangePassword(kind auth.AccountType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, id, err := session(r)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		if claims.UserType != kind {
			writeError(w, r, h.logger, domain.ErrInvalidCredentials.WithMessage("session does not belong to a "+string(kind)+" account"))
			return
		}

		var req ChangePasswordRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, h.logger, err)
			return
		}

		if err := h.authService.ChangePassword(r.Context(), kind, id, req.OldPassword, req.NewPassword); err != nil {
			writeError(w, r, h.logger, err)
			return
		}

		writeJSON(w, h.logger, http.StatusOK, map[string]string{"message": "password changed successfully"})
	}
}

// session returns the verified claims and numeric account id of the request
func session(r *http.Request) (*auth.Claims, int64, error) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		return nil, 0, domain.ErrInvalidCredentials.WithMessage("missing session")
	}
	id, err := claims.AccountID()
	if err != nil {
		return nil, 0, domain.ErrInvalidCredentials.WithMessage("invalid session")
	}
	return claims, id, nil
}

// allowLogin takes a slot from the email's bucket for this client and from
// the email's bucket across all clients
func (h *AuthHandler) allowLogin(kind auth.AccountType, email string, r *http.Request) bool {
	account := string(kind) + ":" + strings.ToLower(strings.TrimSpace(email))
	if !h.limiter.AllowStrict(account+":"+h.clientIP(r), h.loginLimit, h.loginWindow) {
		return false
	}
	return h.limiter.AllowStrict(account, h.loginLimit*emailLimitFactor, h.loginWindow)
}

// clientIP is the connection's peer address. When the peer is a trusted
// proxy, X-Forwarded-For is walked from the right and the first hop that is
// not itself a trusted proxy wins.
func (h *AuthHandler) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !h.trusted(host) {
		return host
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !h.trusted(hop) {
			return hop
		}
		host = hop
	}
	return host
}

func (h *AuthHandler) trusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range h.trustedProxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
