package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/engboost/snaplang-api/models"
	"github.com/engboost/snaplang-api/services"
	"github.com/engboost/snaplang-api/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	maxFolderTitle       = 30
	maxFolderDescription = 500
)

var errFolderTitleTaken = utils.Conflict("Folder with this title already exists")

type folderRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	IsPublic    *bool   `json:"is_public"`
}

// loadFolder rejects malformed ids before querying.
func (h *DBHandler) loadFolder(r *http.Request, folderID string) (*models.Folder, error) {
	if err := utils.RequireID(folderID, "folder"); err != nil {
		return nil, err
	}

	var folder models.Folder
	if err := h.WithContext(r.Context()).Where("id = ?", folderID).First(&folder).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("Folder not found")
		}
		return nil, fmt.Errorf("load folder %s: %w", folderID, err)
	}
	return &folder, nil
}

// readableFolder admits the owner, or anyone when the folder is public.
func (h *DBHandler) readableFolder(r *http.Request, folderID, userID string) (*models.Folder, error) {
	folder, err := h.loadFolder(r, folderID)
	if err != nil {
		return nil, err
	}
	if folder.UserID != userID && !folder.IsPublic {
		return nil, utils.Forbidden("You don't have permission to access this folder")
	}
	return folder, nil
}

func (h *DBHandler) ownedFolder(r *http.Request, folderID, userID, action string) (*models.Folder, error) {
	folder, err := h.loadFolder(r, folderID)
	if err != nil {
		return nil, err
	}
	if folder.UserID != userID {
		return nil, utils.Forbidden(fmt.Sprintf("You don't have permission to %s this folder", action))
	}
	return folder, nil
}

// titleTaken checks the owner's other folders for title.
func (h *DBHandler) titleTaken(r *http.Request, userID, title, exceptID string) (bool, error) {
	q := h.WithContext(r.Context()).Model(&models.Folder{}).Where("user_id = ? AND title = ?", userID, title)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, fmt.Errorf("check folder title: %w", err)
	}
	return n > 0, nil
}

// createFolder inserts a private, empty folder owned by userID.
func (h *DBHandler) createFolder(r *http.Request, userID, title, description string) (*models.Folder, error) {
	taken, err := h.titleTaken(r, userID, title, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, errFolderTitleTaken
	}

	folder := models.Folder{
		Title:       title,
		Description: description,
		UserID:      userID,
	}
	if err := h.WithContext(r.Context()).Create(&folder).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errFolderTitleTaken
		}
		return nil, fmt.Errorf("create folder: %w", err)
	}
	return &folder, nil
}

// CreateFolder ignores any client supplied visibility or counter.
func (h *DBHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req folderRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Title == nil {
		h.fail(w, r, utils.BadRequest("Title is required"))
		return
	}
	title, err := utils.RequireText(*req.Title, "Title", maxFolderTitle)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	description, err := optionalText(req.Description, "Description", maxFolderDescription)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	folder, err := h.createFolder(r, id.UserID, title, description)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, folder)
}

func optionalText(v *string, field string, max int) (string, error) {
	if v == nil {
		return "", nil
	}
	if len([]rune(*v)) > max {
		return "", utils.BadRequest(fmt.Sprintf("%s must be at most %d characters", field, max))
	}
	return *v, nil
}

// ListFolders returns the caller's folders, newest first.
func (h *DBHandler) ListFolders(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var folders []models.Folder
	if err := h.WithContext(r.Context()).Where("user_id = ?", id.UserID).Order("created_at DESC").Find(&folders).Error; err != nil {
		h.fail(w, r, fmt.Errorf("list folders: %w", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, folders)
}

func (h *DBHandler) GetFolder(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	folder, err := h.readableFolder(r, r.PathValue("folderID"), id.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, folder)
}

// UpdateFolder only honours title, description and is_public; identity,
// owner, timestamps and the counter are never taken from the payload.
func (h *DBHandler) UpdateFolder(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	folder, err := h.ownedFolder(r, r.PathValue("folderID"), id.UserID, "update")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req folderRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		title, err := utils.RequireText(*req.Title, "Title", maxFolderTitle)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if title != folder.Title {
			taken, err := h.titleTaken(r, id.UserID, title, folder.ID)
			if err != nil {
				h.fail(w, r, err)
				return
			}
			if taken {
				h.fail(w, r, errFolderTitleTaken)
				return
			}
			updates["title"] = title
		}
	}
	if req.Description != nil {
		description, err := optionalText(req.Description, "Description", maxFolderDescription)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		updates["description"] = description
	}
	visibilityChanged := req.IsPublic != nil && *req.IsPublic != folder.IsPublic
	if visibilityChanged {
		updates["is_public"] = *req.IsPublic
	}

	if len(updates) > 0 {
		if err := h.WithContext(r.Context()).Model(&models.Folder{}).Where("id = ?", folder.ID).Updates(updates).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				h.fail(w, r, errFolderTitleTaken)
				return
			}
			h.fail(w, r, fmt.Errorf("update folder: %w", err))
			return
		}
	}
	if visibilityChanged {
		h.propagateVisibility(r, folder.ID, *req.IsPublic)
	}

	updated, err := h.loadFolder(r, folder.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, updated)
}

// propagateVisibility copies the folder flag onto its flashcards. The folder
// is already updated and stays the source of truth; a failure here is left
// for the reconciler.
func (h *DBHandler) propagateVisibility(r *http.Request, folderID string, isPublic bool) {
	err := h.WithContext(r.Context()).Model(&models.Flashcard{}).
		Where("folder_id = ?", folderID).
		Update("is_public", isPublic).Error
	if err != nil {
		h.Log.WithError(err).WithField("folder_id", folderID).Warn("flashcard visibility propagation failed")
	}
}

// ToggleVisibility flips is_public. Allowed for the owner and for admins.
func (h *DBHandler) ToggleVisibility(w http.ResponseWriter, r *http.Request) {
	user, ok := utils.GetUser(r)
	if !ok {
		h.fail(w, r, utils.Unauthorized("Unauthorized!"))
		return
	}

	folder, err := h.loadFolder(r, r.PathValue("folderID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if folder.UserID != user.ID && !user.IsAdmin() {
		h.fail(w, r, utils.Forbidden("You don't have permission to update this folder"))
		return
	}

	next := !folder.IsPublic
	if err := h.WithContext(r.Context()).Model(folder).Update("is_public", next).Error; err != nil {
		h.fail(w, r, fmt.Errorf("toggle folder visibility: %w", err))
		return
	}
	folder.IsPublic = next
	h.propagateVisibility(r, folder.ID, next)

	utils.WriteJSON(w, http.StatusOK, folder)
}

// DeleteFolder removes the folder and its flashcards. Stored images are
// deleted afterwards and never fail the request.
func (h *DBHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	folder, err := h.ownedFolder(r, r.PathValue("folderID"), id.UserID, "delete")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	db := h.WithContext(r.Context())

	var imageIDs []string
	if err := db.Model(&models.Flashcard{}).
		Where("folder_id = ? AND image_public_id IS NOT NULL", folder.ID).
		Pluck("image_public_id", &imageIDs).Error; err != nil {
		h.fail(w, r, fmt.Errorf("list flashcard images: %w", err))
		return
	}

	res := db.Where("folder_id = ?", folder.ID).Delete(&models.Flashcard{})
	if res.Error != nil {
		h.fail(w, r, fmt.Errorf("delete flashcards: %w", res.Error))
		return
	}
	if err := db.Delete(&models.Folder{}, "id = ?", folder.ID).Error; err != nil {
		h.fail(w, r, fmt.Errorf("delete folder: %w", err))
		return
	}

	refs := make([]services.AssetRef, len(imageIDs))
	for i, imageID := range imageIDs {
		refs[i] = services.AssetRef{ID: imageID, Kind: services.ImageAsset}
	}
	h.Cleaner.Delete(r.Context(), refs...)

	h.Log.WithFields(logrus.Fields{"folder_id": folder.ID, "flashcards": res.RowsAffected}).Info("deleted folder")
	utils.WriteJSON(w, http.StatusOK, folder)
}
