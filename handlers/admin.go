package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/engboost/snaplang-api/models"
	"github.com/engboost/snaplang-api/services"
	"github.com/engboost/snaplang-api/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SearchUsers matches q against email, username and display name.
func (h *DBHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := pagination(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	query := h.WithContext(r.Context()).Model(&models.User{})
	if q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q"))); q != "" {
		pattern := "%" + escapeLike(q) + "%"
		query = query.Where(
			"LOWER(email) LIKE ? ESCAPE '\\' OR LOWER(username) LIKE ? ESCAPE '\\' OR LOWER(display_name) LIKE ? ESCAPE '\\'",
			pattern, pattern, pattern,
		)
	}

	var users []models.User
	if err := query.Order("created_at DESC").Offset(skip).Limit(limit).Find(&users).Error; err != nil {
		h.fail(w, r, fmt.Errorf("search users: %w", err))
		return
	}

	out := make([]models.PublicUser, len(users))
	for i := range users {
		out[i] = users[i].Public()
	}
	utils.WriteJSON(w, http.StatusOK, out)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// loadTargetUser fetches the user named by the userID path value.
func (h *DBHandler) loadTargetUser(r *http.Request) (*models.User, error) {
	userID := r.PathValue("userID")
	if err := utils.RequireID(userID, "user"); err != nil {
		return nil, err
	}

	var user models.User
	if err := h.WithContext(r.Context()).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("User not found")
		}
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	return &user, nil
}

func (h *DBHandler) isRootAdmin(u *models.User) bool {
	return h.RootAdminEmail != "" && strings.EqualFold(u.Email, h.RootAdminEmail)
}

// UpdateRole sets a user's role. The root admin keeps its role.
func (h *DBHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role models.Role `json:"role"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	role := models.Role(strings.ToUpper(string(req.Role)))
	if role != models.RoleAdmin && role != models.RoleClient {
		h.fail(w, r, utils.BadRequest("Role must be ADMIN or CLIENT"))
		return
	}

	target, err := h.loadTargetUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if h.isRootAdmin(target) {
		h.fail(w, r, utils.Forbidden("The root admin's role cannot be changed"))
		return
	}

	if err := h.WithContext(r.Context()).Model(target).Update("role", role).Error; err != nil {
		h.fail(w, r, fmt.Errorf("update role: %w", err))
		return
	}
	target.Role = role

	h.Log.WithFields(logrus.Fields{"user_id": target.ID, "role": role}).Info("changed user role")
	utils.WriteJSON(w, http.StatusOK, target.Public())
}

// DeleteUser removes a user with their folders and flashcards in one
// transaction. Stored images are deleted only after the commit.
func (h *DBHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	target, err := h.loadTargetUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if h.isRootAdmin(target) {
		h.fail(w, r, utils.Forbidden("The root admin cannot be deleted"))
		return
	}
	if target.IsAdmin() {
		h.fail(w, r, utils.Forbidden("Admin accounts cannot be deleted. Change the role to CLIENT first"))
		return
	}

	var assets []services.AssetRef
	var folderCount, flashcardCount int64

	err = h.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		var folderIDs []string
		if err := tx.Model(&models.Folder{}).Where("user_id = ?", target.ID).Pluck("id", &folderIDs).Error; err != nil {
			return fmt.Errorf("list folders: %w", err)
		}

		if len(folderIDs) > 0 {
			var imageIDs []string
			if err := tx.Model(&models.Flashcard{}).
				Where("folder_id IN ? AND image_public_id IS NOT NULL", folderIDs).
				Pluck("image_public_id", &imageIDs).Error; err != nil {
				return fmt.Errorf("list flashcard images: %w", err)
			}
			for _, id := range imageIDs {
				assets = append(assets, services.AssetRef{ID: id, Kind: services.ImageAsset})
			}

			res := tx.Where("folder_id IN ?", folderIDs).Delete(&models.Flashcard{})
			if res.Error != nil {
				return fmt.Errorf("delete flashcards: %w", res.Error)
			}
			flashcardCount = res.RowsAffected

			res = tx.Where("id IN ?", folderIDs).Delete(&models.Folder{})
			if res.Error != nil {
				return fmt.Errorf("delete folders: %w", res.Error)
			}
			folderCount = res.RowsAffected
		}

		if err := tx.Where("user_id = ?", target.ID).Delete(&models.UserCourse{}).Error; err != nil {
			return fmt.Errorf("delete enrollments: %w", err)
		}

		if err := tx.Delete(&models.User{}, "id = ?", target.ID).Error; err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if target.AvatarPublicID != nil {
		assets = append(assets, services.AssetRef{ID: *target.AvatarPublicID, Kind: services.ImageAsset})
	}
	h.Cleaner.Delete(r.Context(), assets...)

	h.Log.WithFields(logrus.Fields{
		"user_id":    target.ID,
		"folders":    folderCount,
		"flashcards": flashcardCount,
	}).Info("deleted user")

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":            "User deleted successfully",
		"deleted_folders":    folderCount,
		"deleted_flashcards": flashcardCount,
	})
}
