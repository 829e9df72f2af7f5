package handlers

import (
	"bytes"
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

const (
	maxTerm       = 200
	maxObject     = 100
	maxImportSize = 500
)

func (h *DBHandler) loadFlashcard(r *http.Request) (*models.Flashcard, error) {
	flashcardID := r.PathValue("flashcardID")
	if err := utils.RequireID(flashcardID, "flashcard"); err != nil {
		return nil, err
	}

	var flashcard models.Flashcard
	if err := h.WithContext(r.Context()).Where("id = ?", flashcardID).First(&flashcard).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("Flashcard not found")
		}
		return nil, fmt.Errorf("load flashcard %s: %w", flashcardID, err)
	}
	return &flashcard, nil
}

// ListFlashcards pages through a readable folder, newest first. Non-owners
// only see cards that are themselves public.
func (h *DBHandler) ListFlashcards(w http.ResponseWriter, r *http.Request) {
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

	skip, limit, err := pagination(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	query := h.WithContext(r.Context()).Where("folder_id = ?", folder.ID)
	if folder.UserID != id.UserID {
		query = query.Where("is_public = ?", true)
	}

	var flashcards []models.Flashcard
	if err := query.Order("created_at DESC").Offset(skip).Limit(limit).Find(&flashcards).Error; err != nil {
		h.fail(w, r, fmt.Errorf("list flashcards: %w", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, flashcards)
}

// GetFlashcard re-checks the containing folder. Non-owners need both the
// folder and the card to be public.
func (h *DBHandler) GetFlashcard(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	flashcard, err := h.loadFlashcard(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	// The folder flag wins over a card flag that has not caught up yet.
	folder, err := h.loadFolder(r, flashcard.FolderID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if folder.UserID != id.UserID && (!folder.IsPublic || !flashcard.IsPublic) {
		h.fail(w, r, utils.Forbidden("You don't have permission to access this flashcard"))
		return
	}
	utils.WriteJSON(w, http.StatusOK, flashcard)
}

// DeleteFlashcard is allowed for the owner of the containing folder. The
// folder counter is recomputed from a live count afterwards.
func (h *DBHandler) DeleteFlashcard(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	flashcard, err := h.loadFlashcard(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	owner := flashcard.UserID
	var folder models.Folder
	folderErr := h.WithContext(r.Context()).Where("id = ?", flashcard.FolderID).First(&folder).Error
	switch {
	case folderErr == nil:
		owner = folder.UserID
	case !errors.Is(folderErr, gorm.ErrRecordNotFound):
		h.fail(w, r, fmt.Errorf("load folder %s: %w", flashcard.FolderID, folderErr))
		return
	}
	if owner != id.UserID {
		h.fail(w, r, utils.Forbidden("You don't have permission to delete this flashcard"))
		return
	}

	if err := h.WithContext(r.Context()).Delete(&models.Flashcard{}, "id = ?", flashcard.ID).Error; err != nil {
		h.fail(w, r, fmt.Errorf("delete flashcard: %w", err))
		return
	}

	if folderErr == nil {
		if err := h.recountFolder(r, folder.ID); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	if flashcard.ImagePublicID != nil {
		h.Cleaner.Delete(r.Context(), services.AssetRef{ID: *flashcard.ImagePublicID, Kind: services.ImageAsset})
	}

	utils.WriteJSON(w, http.StatusOK, flashcard)
}

// recountFolder sets flashcard_count to the live number of cards.
func (h *DBHandler) recountFolder(r *http.Request, folderID string) error {
	db := h.WithContext(r.Context())

	var n int64
	if err := db.Model(&models.Flashcard{}).Where("folder_id = ?", folderID).Count(&n).Error; err != nil {
		return fmt.Errorf("count flashcards: %w", err)
	}
	if err := db.Model(&models.Folder{}).Where("id = ?", folderID).Update("flashcard_count", n).Error; err != nil {
		return fmt.Errorf("update flashcard count: %w", err)
	}
	return nil
}

type flashcardCandidate struct {
	English    string  `json:"english"`
	Vietnamese string  `json:"vietnamese"`
	Object     *string `json:"object"`
	ImageURL   *string `json:"image_url"`
	// ImageURLAlt is the camelCase spelling some clients send.
	ImageURLAlt *string `json:"imageUrl"`
}

func (c flashcardCandidate) image() string {
	if c.ImageURL != nil && *c.ImageURL != "" {
		return strings.TrimSpace(*c.ImageURL)
	}
	if c.ImageURLAlt != nil {
		return strings.TrimSpace(*c.ImageURLAlt)
	}
	return ""
}

type saveToFolderRequest struct {
	FolderID        string               `json:"folder_id"`
	CreateNewFolder bool                 `json:"create_new_folder"`
	FolderTitle     string               `json:"folder_title"`
	Flashcards      []flashcardCandidate `json:"flashcards"`
}

type rejectedCandidate struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

type saveToFolderResponse struct {
	Message  string              `json:"message"`
	Folder   *models.Folder      `json:"folder"`
	Imported int                 `json:"imported"`
	Invalid  int                 `json:"invalid"`
	Rejected []rejectedCandidate `json:"rejected"`
}

// SaveToFolder imports a batch of flashcards into an existing folder or a
// new one. Each candidate is validated on its own; invalid ones are reported
// and skipped. Accepted cards are written in one bulk insert.
func (h *DBHandler) SaveToFolder(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req saveToFolderRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if len(req.Flashcards) == 0 {
		h.fail(w, r, utils.BadRequest("No flashcards provided"))
		return
	}
	if len(req.Flashcards) > maxImportSize {
		h.fail(w, r, utils.BadRequest(fmt.Sprintf("At most %d flashcards can be saved at once", maxImportSize)))
		return
	}

	var folder *models.Folder
	if req.CreateNewFolder {
		title, err := utils.RequireText(req.FolderTitle, "Folder title", maxFolderTitle)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		folder, err = h.createFolder(r, id.UserID, title, "")
		if err != nil {
			h.fail(w, r, err)
			return
		}
	} else {
		if req.FolderID == "" {
			h.fail(w, r, utils.BadRequest("folder_id is required when create_new_folder is false"))
			return
		}
		folder, err = h.ownedFolder(r, req.FolderID, id.UserID, "update")
		if err != nil {
			h.fail(w, r, err)
			return
		}
	}

	accepted, uploaded, rejected := h.partition(r, req.Flashcards, folder, id.UserID)

	if len(accepted) > 0 {
		db := h.WithContext(r.Context())
		if err := db.Create(&accepted).Error; err != nil {
			h.discard(r.Context(), services.ImageAsset, uploaded...)
			h.fail(w, r, fmt.Errorf("insert flashcards: %w", err))
			return
		}
		err := db.Model(&models.Folder{}).Where("id = ?", folder.ID).
			Update("flashcard_count", gorm.Expr("flashcard_count + ?", len(accepted))).Error
		if err != nil {
			h.fail(w, r, fmt.Errorf("increment flashcard count: %w", err))
			return
		}
	}

	saved, err := h.loadFolder(r, folder.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.Log.WithFields(logrus.Fields{
		"folder_id": folder.ID,
		"imported":  len(accepted),
		"invalid":   len(rejected),
	}).Info("saved flashcards to folder")

	utils.WriteJSON(w, http.StatusOK, saveToFolderResponse{
		Message:  fmt.Sprintf("Saved %d flashcards to folder", len(accepted)),
		Folder:   saved,
		Imported: len(accepted),
		Invalid:  len(rejected),
		Rejected: rejected,
	})
}

// partition validates candidates independently. Inline images are uploaded
// here; plain URLs pass through unchanged.
func (h *DBHandler) partition(r *http.Request, candidates []flashcardCandidate, folder *models.Folder, userID string) ([]models.Flashcard, []*services.StoredAsset, []rejectedCandidate) {
	accepted := make([]models.Flashcard, 0, len(candidates))
	var uploaded []*services.StoredAsset
	rejected := []rejectedCandidate{}

	reject := func(i int, err error) {
		reason := "Invalid flashcard"
		if apiErr, ok := utils.AsAPIError(err); ok {
			reason = apiErr.Message
		} else {
			h.Log.WithError(err).WithField("index", i).Warn("flashcard image upload failed")
			reason = "Image upload failed"
		}
		rejected = append(rejected, rejectedCandidate{Index: i, Reason: reason})
	}

	for i, c := range candidates {
		english, err := utils.RequireText(c.English, "English", maxTerm)
		if err != nil {
			reject(i, err)
			continue
		}
		vietnamese, err := utils.RequireText(c.Vietnamese, "Vietnamese", maxTerm)
		if err != nil {
			reject(i, err)
			continue
		}

		card := models.Flashcard{
			English:    english,
			Vietnamese: vietnamese,
			FolderID:   folder.ID,
			UserID:     userID,
			IsPublic:   folder.IsPublic,
		}
		if c.Object != nil && strings.TrimSpace(*c.Object) != "" {
			object, err := utils.RequireText(*c.Object, "Object", maxObject)
			if err != nil {
				reject(i, err)
				continue
			}
			card.Object = &object
		}

		switch img := c.image(); {
		case img == "":
		case services.IsDataURI(img):
			data, contentType, filename, err := services.DecodeDataURI(img)
			if err != nil {
				reject(i, err)
				continue
			}
			asset, err := h.Assets.Upload(r.Context(), bytes.NewReader(data), services.ImageAsset, filename, contentType)
			if err != nil {
				reject(i, err)
				continue
			}
			uploaded = append(uploaded, asset)
			card.ImageURL = &asset.URL
			card.ImagePublicID = &asset.ID
		case strings.HasPrefix(img, "http://") || strings.HasPrefix(img, "https://"):
			card.ImageURL = &img
		default:
			reject(i, utils.BadRequest("Image must be a URL or a base64 data URI"))
			continue
		}

		accepted = append(accepted, card)
	}

	return accepted, uploaded, rejected
}
