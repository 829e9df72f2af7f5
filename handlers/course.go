package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/engboost/snaplang-api/models"
	"github.com/engboost/snaplang-api/services"
	"github.com/engboost/snaplang-api/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	maxCourseTitle       = 100
	maxCourseDescription = 5000
	maxCourseRequest     = services.MaxVideoSize + services.MaxImageSize + 1<<20
)

func (h *DBHandler) loadCourse(r *http.Request) (*models.Course, error) {
	courseID := r.PathValue("courseID")
	if err := utils.RequireID(courseID, "course"); err != nil {
		return nil, err
	}

	var course models.Course
	if err := h.WithContext(r.Context()).Where("id = ?", courseID).First(&course).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("Course not found")
		}
		return nil, fmt.Errorf("load course %s: %w", courseID, err)
	}
	return &course, nil
}

// courseForm holds the text fields of a course multipart form. Nil means
// the field was not sent.
type courseForm struct {
	Title       *string
	Description *string
	IsPublic    *bool
	Duration    *float64
}

func readCourseForm(r *http.Request) (courseForm, error) {
	var f courseForm
	values := r.MultipartForm.Value

	if v, ok := values["title"]; ok && len(v) > 0 {
		title, err := utils.RequireText(v[0], "Title", maxCourseTitle)
		if err != nil {
			return f, err
		}
		f.Title = &title
	}
	if v, ok := values["description"]; ok && len(v) > 0 {
		description, err := optionalText(&v[0], "Description", maxCourseDescription)
		if err != nil {
			return f, err
		}
		f.Description = &description
	}
	if v, ok := values["is_public"]; ok && len(v) > 0 {
		b, err := strconv.ParseBool(strings.TrimSpace(v[0]))
		if err != nil {
			return f, utils.BadRequest("is_public must be a boolean")
		}
		f.IsPublic = &b
	}
	if v, ok := values["duration"]; ok && len(v) > 0 && v[0] != "" {
		d, err := strconv.ParseFloat(strings.TrimSpace(v[0]), 64)
		if err != nil || d < 0 {
			return f, utils.BadRequest("duration must be a non-negative number")
		}
		f.Duration = &d
	}
	return f, nil
}

// CreateCourse stores the uploaded video and thumbnail, then the course.
func (h *DBHandler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	user, ok := utils.GetUser(r)
	if !ok {
		h.fail(w, r, utils.Unauthorized("Unauthorized!"))
		return
	}

	if err := parseMultipart(w, r, maxCourseRequest); err != nil {
		h.fail(w, r, err)
		return
	}
	form, err := readCourseForm(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if form.Title == nil {
		h.fail(w, r, utils.BadRequest("Title is required"))
		return
	}

	video, err := h.uploadFormFile(r, "video", services.VideoAsset, true)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	thumbnail, err := h.uploadFormFile(r, "thumbnail", services.ImageAsset, true)
	if err != nil {
		h.discard(r.Context(), services.VideoAsset, video)
		h.fail(w, r, err)
		return
	}

	course := models.Course{
		Title:             *form.Title,
		AuthorID:          user.ID,
		VideoURL:          video.URL,
		VideoPublicID:     video.ID,
		ThumbnailURL:      thumbnail.URL,
		ThumbnailPublicID: thumbnail.ID,
		Format:            video.Format,
	}
	if form.Description != nil {
		course.Description = *form.Description
	}
	if form.IsPublic != nil {
		course.IsPublic = *form.IsPublic
	}
	if form.Duration != nil {
		course.Duration = *form.Duration
	}

	if err := h.WithContext(r.Context()).Create(&course).Error; err != nil {
		h.discard(r.Context(), services.VideoAsset, video)
		h.discard(r.Context(), services.ImageAsset, thumbnail)
		h.fail(w, r, fmt.Errorf("create course: %w", err))
		return
	}

	h.Log.WithFields(logrus.Fields{"course_id": course.ID, "author_id": user.ID}).Info("created course")
	utils.WriteJSON(w, http.StatusCreated, course)
}

// UpdateCourse may replace either asset; the old one is deleted only after
// the new one is stored and the course saved. Making a course private drops
// its enrollments.
func (h *DBHandler) UpdateCourse(w http.ResponseWriter, r *http.Request) {
	course, err := h.loadCourse(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := parseMultipart(w, r, maxCourseRequest); err != nil {
		h.fail(w, r, err)
		return
	}
	form, err := readCourseForm(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	video, err := h.uploadFormFile(r, "video", services.VideoAsset, false)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	thumbnail, err := h.uploadFormFile(r, "thumbnail", services.ImageAsset, false)
	if err != nil {
		h.discard(r.Context(), services.VideoAsset, video)
		h.fail(w, r, err)
		return
	}

	updates := map[string]interface{}{}
	if form.Title != nil {
		updates["title"] = *form.Title
	}
	if form.Description != nil {
		updates["description"] = *form.Description
	}
	if form.IsPublic != nil {
		updates["is_public"] = *form.IsPublic
	}
	if form.Duration != nil {
		updates["duration"] = *form.Duration
	}
	var stale []services.AssetRef
	if video != nil {
		updates["video_url"] = video.URL
		updates["video_public_id"] = video.ID
		updates["format"] = video.Format
		stale = append(stale, services.AssetRef{ID: course.VideoPublicID, Kind: services.VideoAsset})
	}
	if thumbnail != nil {
		updates["thumbnail_url"] = thumbnail.URL
		updates["thumbnail_public_id"] = thumbnail.ID
		stale = append(stale, services.AssetRef{ID: course.ThumbnailPublicID, Kind: services.ImageAsset})
	}

	if len(updates) == 0 {
		h.fail(w, r, utils.BadRequest("Nothing to update"))
		return
	}

	db := h.WithContext(r.Context())
	if err := db.Model(&models.Course{}).Where("id = ?", course.ID).Updates(updates).Error; err != nil {
		h.discard(r.Context(), services.VideoAsset, video)
		h.discard(r.Context(), services.ImageAsset, thumbnail)
		h.fail(w, r, fmt.Errorf("update course: %w", err))
		return
	}

	if form.IsPublic != nil && !*form.IsPublic && course.IsPublic {
		res := db.Where("course_id = ?", course.ID).Delete(&models.UserCourse{})
		if res.Error != nil {
			h.fail(w, r, fmt.Errorf("remove enrollments: %w", res.Error))
			return
		}
		h.Log.WithFields(logrus.Fields{"course_id": course.ID, "enrollments": res.RowsAffected}).Info("course made private")
	}

	h.Cleaner.Delete(r.Context(), stale...)

	updated, err := h.loadCourse(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, updated)
}

// DeleteCourse removes the stored assets best-effort, then the course.
// Enrollment records are left in place.
func (h *DBHandler) DeleteCourse(w http.ResponseWriter, r *http.Request) {
	course, err := h.loadCourse(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.Cleaner.Delete(r.Context(),
		services.AssetRef{ID: course.VideoPublicID, Kind: services.VideoAsset},
		services.AssetRef{ID: course.ThumbnailPublicID, Kind: services.ImageAsset},
	)

	db := h.WithContext(r.Context())
	if err := db.Delete(&models.Course{}, "id = ?", course.ID).Error; err != nil {
		h.fail(w, r, fmt.Errorf("delete course: %w", err))
		return
	}

	var orphaned int64
	if err := db.Model(&models.UserCourse{}).Where("course_id = ?", course.ID).Count(&orphaned).Error; err == nil && orphaned > 0 {
		h.Log.WithFields(logrus.Fields{"course_id": course.ID, "enrollments": orphaned}).Info("deleted course still has enrollment records")
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Course deleted successfully"})
}

// ListCourses returns every course to admins. Other callers see public
// courses and the ones they registered for.
func (h *DBHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	user, ok := utils.GetUser(r)
	if !ok {
		h.fail(w, r, utils.Unauthorized("Unauthorized!"))
		return
	}

	db := h.WithContext(r.Context())
	query := db.Model(&models.Course{})
	if !user.IsAdmin() {
		enrolled := db.Model(&models.UserCourse{}).Select("course_id").Where("user_id = ?", user.ID)
		query = query.Where("is_public = ?", true).Or("id IN (?)", enrolled)
	}

	var courses []models.Course
	if err := query.Order("created_at DESC").Find(&courses).Error; err != nil {
		h.fail(w, r, fmt.Errorf("list courses: %w", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, courses)
}

// GetCourse relies on the course access check upstream.
func (h *DBHandler) GetCourse(w http.ResponseWriter, r *http.Request) {
	course, err := h.loadCourse(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, course)
}

// RegisterCourse enrolls the caller once per course.
func (h *DBHandler) RegisterCourse(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	course, err := h.loadCourse(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	db := h.WithContext(r.Context())

	var existing int64
	if err := db.Model(&models.UserCourse{}).Where("user_id = ? AND course_id = ?", id.UserID, course.ID).Count(&existing).Error; err != nil {
		h.fail(w, r, fmt.Errorf("check enrollment: %w", err))
		return
	}
	if existing > 0 {
		h.fail(w, r, utils.Conflict("You have already registered for this course"))
		return
	}

	enrollment := models.UserCourse{
		UserID:       id.UserID,
		CourseID:     course.ID,
		RegisteredAt: time.Now(),
	}
	if err := db.Create(&enrollment).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			h.fail(w, r, utils.Conflict("You have already registered for this course"))
			return
		}
		h.fail(w, r, fmt.Errorf("create enrollment: %w", err))
		return
	}

	utils.WriteJSON(w, http.StatusCreated, enrollment)
}
