// Package middleware holds the access checks that run before a handler and
// the request-level logging and metrics wrappers.
package middleware

import (
	"errors"
	"net/http"

	"github.com/engboost/snaplang-api/auth"
	"github.com/engboost/snaplang-api/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Check admits a request, possibly returning it with an enriched context,
// or denies it with an error. Denials are usually *utils.APIError.
type Check func(r *http.Request) (*http.Request, error)

// Guard evaluates access checks against the store and the token service.
type Guard struct {
	DB     *gorm.DB
	Tokens *auth.TokenService
	Log    logrus.FieldLogger
}

func NewGuard(db *gorm.DB, tokens *auth.TokenService, log logrus.FieldLogger) *Guard {
	return &Guard{DB: db, Tokens: tokens, Log: log}
}

// Protect runs checks in order and calls next only if all of them admit the
// request. The first denial is written as the response.
func (g *Guard) Protect(next http.HandlerFunc, checks ...Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, check := range checks {
			admitted, err := check(r)
			if err != nil {
				utils.WriteError(w, r, g.Log, err)
				return
			}
			r = admitted
		}
		next(w, r)
	}
}

// Authenticated reads the access token from the cookie or bearer header and
// binds its claims to the request.
func (g *Guard) Authenticated() Check {
	return func(r *http.Request) (*http.Request, error) {
		token, err := auth.ExtractToken(r, auth.AccessCookie)
		if err != nil {
			return nil, utils.Unauthorized("Unauthorized! (Invalid token)")
		}
		if token == "" {
			return nil, utils.Unauthorized("Unauthorized! (Token not found)")
		}

		claims, err := g.Tokens.VerifyAccess(token)
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			return nil, utils.ExpiredAccessToken()
		case err != nil:
			g.Log.WithError(err).Debug("rejected access token")
			return nil, utils.Unauthorized("Unauthorized! (Invalid token)")
		}

		return r.WithContext(utils.WithIdentity(r.Context(), claims.Identity())), nil
	}
}
