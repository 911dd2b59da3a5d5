package handler

import (
	"net/http"

	"github.com/aryan0dhankhar/societyhub/internal/security"
	"github.com/aryan0dhankhar/societyhub/internal/security/audit"
	"github.com/aryan0dhankhar/societyhub/internal/security/auth"
	"github.com/aryan0dhankhar/societyhub/internal/security/middleware"
)

// Routes bundles everything the API mux needs
type Routes struct {
	Society  *SocietyHandler
	Flats    *FlatHandler
	Auth     *AuthHandler
	Resident *ResidentHandler
	Health   *HealthHandler
	Metrics  http.Handler

	Tokens *auth.TokenManager
	Authz  *security.AuthorizationService
	Audit  *audit.Logger
}

// Register mounts every endpoint on mux. Session routes are wrapped per route
// so the mux still sees the original request and sets its pattern.
func (rt *Routes) Register(mux *http.ServeMux) {
	guard := func(perm security.Permission, h http.HandlerFunc) http.Handler {
		return middleware.Chain(h,
			middleware.JWTMiddleware(rt.Tokens, rt.Audit),
			middleware.RequirePermission(rt.Authz, perm, rt.Audit),
		)
	}

	mux.HandleFunc("GET /healthz", rt.Health.Health)
	mux.HandleFunc("GET /readyz", rt.Health.Ready)
	if rt.Metrics != nil {
		mux.Handle("GET /metrics", rt.Metrics)
	}

	mux.HandleFunc("POST /society/register", rt.Society.Register)
	mux.Handle("POST /society/login", rt.Auth.Login(auth.AccountSociety))
	mux.Handle("POST /resident/login", rt.Auth.Login(auth.AccountResident))

	mux.Handle("GET /society/flats", guard(security.PermListFlats, rt.Society.ListFlats))
	mux.Handle("POST /society/flats", guard(security.PermManageFlats, rt.Flats.Create))
	mux.Handle("PUT /society/flats/{id}", guard(security.PermManageFlats, rt.Flats.Save))
	mux.Handle("GET /society/profile", guard(security.PermViewSociety, rt.Society.Profile))
	mux.Handle("PUT /society/password", guard(security.PermChangePassword, rt.Auth.ChangePassword(auth.AccountSociety)))

	mux.Handle("GET /resident/profile", guard(security.PermViewProfile, rt.Resident.Profile))
	mux.Handle("PUT /resident/profile", guard(security.PermEditProfile, rt.Resident.UpdateProfile))
	mux.Handle("PUT /resident/password", guard(security.PermChangePassword, rt.Auth.ChangePassword(auth.AccountResident)))
}
