package auth

import (
	"log/slog"
	"net/http"

	"github.com/rhuss/respgw/pkg/api"
	"github.com/rhuss/respgw/pkg/auth/jwt"
	"github.com/rhuss/respgw/pkg/backend"
	"github.com/rhuss/respgw/pkg/config"
	"github.com/rhuss/respgw/pkg/transport"
)

// Middleware builds the outermost HTTP middleware that implements spec
// step 1 of the request orchestrator: extract the caller's credential,
// reject if absent, optionally pre-check JWT shape, then stash the
// credential on the request context so the orchestrator's eventual
// backend call forwards it unchanged.
//
// cfg.Type == "none" skips extraction entirely (every request passes
// through unauthenticated, e.g. a local backend with no credential
// requirement at all).
func Middleware(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if cfg.Type == "none" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential, ok := Extract(r, cfg.AltHeader)
			if !ok {
				slog.Warn("request rejected: no credential", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				transport.WriteAPIError(w, api.NewMissingAPIKeyError())
				return
			}

			if cfg.JWTShapeCheck && jwt.LooksLikeJWT(credential) {
				if err := jwt.CheckShape(credential); err != nil {
					slog.Warn("request rejected: malformed bearer token",
						"path", r.URL.Path, "credential", Mask(credential), "error", err)
					transport.WriteAPIError(w, api.NewInvalidAuthTokenError(err.Error()))
					return
				}
			}

			slog.Debug("credential accepted", "credential", Mask(credential), "path", r.URL.Path)

			ctx := backend.ContextWithCredential(r.Context(), credential)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
