package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/engboost/snaplang-api/services"
	"github.com/engboost/snaplang-api/utils"
)

const multipartMemory = 32 << 20

// parseMultipart caps the request body at limit bytes and parses it.
func parseMultipart(w http.ResponseWriter, r *http.Request, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return utils.PayloadTooLarge("Request body too large")
		}
		return utils.BadRequest("Invalid multipart form")
	}
	return nil
}

// uploadFormFile validates and stores the file sent under field. It returns
// nil without error when the field is absent and not required.
func (h *DBHandler) uploadFormFile(r *http.Request, field string, kind services.AssetKind, required bool) (*services.StoredAsset, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			if required {
				return nil, utils.BadRequest(fmt.Sprintf("%s file is required", field))
			}
			return nil, nil
		}
		return nil, utils.BadRequest(fmt.Sprintf("Invalid %s file", field))
	}
	defer file.Close()

	if err := services.ValidateUpload(header.Filename, header.Size, kind); err != nil {
		return nil, err
	}

	asset, err := h.Assets.Upload(r.Context(), file, kind, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", field, err)
	}
	return asset, nil
}

// discard removes freshly uploaded assets after the write they belonged to
// failed.
func (h *DBHandler) discard(ctx context.Context, kind services.AssetKind, assets ...*services.StoredAsset) {
	refs := make([]services.AssetRef, 0, len(assets))
	for _, a := range assets {
		if a != nil {
			refs = append(refs, services.AssetRef{ID: a.ID, Kind: kind})
		}
	}
	h.Cleaner.Delete(ctx, refs...)
}
