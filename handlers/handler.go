// Package handlers implements the REST resources: accounts, folders,
// flashcards, courses and object detection.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/engboost/snaplang-api/auth"
	"github.com/engboost/snaplang-api/services"
	"github.com/engboost/snaplang-api/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DBHandler carries the store client and the collaborators every resource
// handler may need. It is built once in main and shared by all requests.
type DBHandler struct {
	*gorm.DB

	Tokens     *auth.TokenService
	Cookies    auth.CookieOptions
	Assets     services.AssetStore
	Cleaner    *services.Cleaner
	Mail       *services.MailQueue
	Translator services.Translator
	Detector   services.Detector
	Log        logrus.FieldLogger

	RootAdminEmail string
	WebsiteDomain  string
}

func (h *DBHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	utils.WriteError(w, r, h.Log, err)
}

// identity returns the claims bound by the authentication check.
func identity(r *http.Request) (auth.Identity, error) {
	id, ok := utils.GetIdentity(r)
	if !ok || id.UserID == "" {
		return auth.Identity{}, utils.Unauthorized("Unauthorized! (Token not found)")
	}
	return id, nil
}

const (
	defaultLimit = 100
	maxLimit     = 100
)

// pagination reads skip and limit from the query string.
func pagination(r *http.Request) (int, int, error) {
	skip, limit := 0, defaultLimit
	q := r.URL.Query()
	if v := q.Get("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, utils.BadRequest("skip must be a non-negative integer")
		}
		skip = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return 0, 0, utils.BadRequest("limit must be a positive integer")
		}
		limit = min(n, maxLimit)
	}
	return skip, limit, nil
}
