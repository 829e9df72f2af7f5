package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/engboost/snaplang-api/models"
	"github.com/engboost/snaplang-api/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// loadUser re-fetches the caller's record; the role in a token is never
// trusted on its own.
func (g *Guard) loadUser(r *http.Request) (*models.User, error) {
	if user, ok := utils.GetUser(r); ok {
		return user, nil
	}

	id, ok := utils.GetIdentity(r)
	if !ok || id.UserID == "" {
		return nil, utils.Unauthorized("Unauthorized! User ID not found in token")
	}
	if !models.ValidID(id.UserID) {
		return nil, utils.Unauthorized("Unauthorized! (Invalid token)")
	}

	var user models.User
	if err := g.DB.WithContext(r.Context()).Where("id = ?", id.UserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("User not found")
		}
		return nil, fmt.Errorf("load user %s: %w", id.UserID, err)
	}
	return &user, nil
}

// HasRole admits callers whose stored role is one of roles and binds the
// fresh user record to the request.
func (g *Guard) HasRole(roles ...models.Role) Check {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	denied := "Access denied. Required roles: " + strings.Join(names, ", ")

	return func(r *http.Request) (*http.Request, error) {
		user, err := g.loadUser(r)
		if err != nil {
			return nil, err
		}

		if !slices.Contains(roles, user.Role) {
			g.Log.WithFields(logrus.Fields{
				"user_id": user.ID,
				"role":    user.Role,
				"path":    r.URL.Path,
			}).Warn("role check denied")
			return nil, utils.Forbidden(denied)
		}

		return r.WithContext(utils.WithUser(r.Context(), user)), nil
	}
}

func (g *Guard) AdminOnly() Check {
	return g.HasRole(models.RoleAdmin)
}

func (g *Guard) AnyRole() Check {
	return g.HasRole(models.RoleAdmin, models.RoleClient)
}
