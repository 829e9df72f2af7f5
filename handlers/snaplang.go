package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/engboost/snaplang-api/services"
	"github.com/engboost/snaplang-api/utils"
)

// translationFallback is shown when a label cannot be translated.
const translationFallback = "Không tìm thấy"

type detection struct {
	Object     string `json:"object"`
	English    string `json:"english"`
	Vietnamese string `json:"vietnamese"`
}

// Detect runs object detection on the uploaded image and translates each
// distinct label once.
func (h *DBHandler) Detect(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r, services.MaxImageSize+1<<20); err != nil {
		h.fail(w, r, err)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		h.fail(w, r, utils.BadRequest("No image uploaded"))
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		h.fail(w, r, fmt.Errorf("read image: %w", err))
		return
	}
	if len(image) == 0 || !strings.HasPrefix(http.DetectContentType(image), "image/") {
		h.fail(w, r, utils.BadRequest("Invalid image format"))
		return
	}

	labels, err := h.Detector.Detect(r.Context(), image, header.Filename)
	if err != nil {
		h.fail(w, r, fmt.Errorf("detect objects: %w", err))
		return
	}

	unique := dedupe(labels)
	if len(unique) == 0 {
		utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "No objects detected"})
		return
	}

	detections := make([]detection, len(unique))
	for i, label := range unique {
		vietnamese, err := h.Translator.Translate(r.Context(), label)
		if err != nil {
			h.Log.WithError(err).WithField("label", label).Warn("translation failed")
			vietnamese = translationFallback
		}
		detections[i] = detection{Object: label, English: capitalize(label), Vietnamese: vietnamese}
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"detections": detections})
}

// dedupe keeps the first occurrence of each non-empty label, ignoring case.
func dedupe(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		key := strings.ToLower(l)
		if l == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, l)
	}
	return out
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
