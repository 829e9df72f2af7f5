package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/engboost/snaplang-api/auth"
	"github.com/engboost/snaplang-api/models"
	"github.com/engboost/snaplang-api/services"
	"github.com/engboost/snaplang-api/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

type loginResponse struct {
	models.PublicUser
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Register creates an inactive account and mails its verification link.
func (h *DBHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !utils.ValidEmail(email) {
		h.fail(w, r, utils.BadRequest("Email is invalid"))
		return
	}
	if err := utils.ValidatePassword(req.Password); err != nil {
		h.fail(w, r, err)
		return
	}

	var existing int64
	if err := h.WithContext(r.Context()).Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		h.fail(w, r, fmt.Errorf("check email: %w", err))
		return
	}
	if existing > 0 {
		h.fail(w, r, utils.Conflict("Email already exists!"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	token := uuid.NewString()
	username, _, _ := strings.Cut(email, "@")
	user := models.User{
		Email:       email,
		Password:    hash,
		Username:    username,
		DisplayName: username,
		Role:        models.RoleClient,
		VerifyToken: &token,
	}

	if err := h.WithContext(r.Context()).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			h.fail(w, r, utils.Conflict("Email already exists!"))
			return
		}
		h.fail(w, r, fmt.Errorf("create user: %w", err))
		return
	}

	h.Mail.Enqueue(services.Mail{
		To:      user.Email,
		Subject: "Please verify your email before using our services!",
		HTML:    verificationEmail(h.WebsiteDomain, user.Email, token),
	})

	h.Log.WithField("user_id", user.ID).Info("registered user")
	utils.WriteJSON(w, http.StatusCreated, user.Public())
}

func verificationEmail(site, email, token string) string {
	link := fmt.Sprintf("%s/account/verification?email=%s&token=%s",
		strings.TrimRight(site, "/"), url.QueryEscape(email), url.QueryEscape(token))
	return fmt.Sprintf(`<h3>Here is your verification link:</h3>
<h3><a href="%s">%s</a></h3>
<h3>Sincerely,<br/> EngBoost</h3>`, link, link)
}

// Verify activates an account. The token is single use.
func (h *DBHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	var user models.User
	if err := h.WithContext(r.Context()).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.fail(w, r, utils.NotFound("Account not found!"))
			return
		}
		h.fail(w, r, fmt.Errorf("load user: %w", err))
		return
	}

	if user.IsActive {
		h.fail(w, r, utils.NotAcceptable("Your account is already active!"))
		return
	}
	if user.VerifyToken == nil || req.Token == "" || *user.VerifyToken != req.Token {
		h.fail(w, r, utils.NotAcceptable("Token is invalid!"))
		return
	}

	// The token condition makes a concurrent second verification a no-op.
	result := h.WithContext(r.Context()).Model(&user).
		Where("verify_token = ?", req.Token).
		Updates(map[string]interface{}{"is_active": true, "verify_token": nil})
	if result.Error != nil {
		h.fail(w, r, fmt.Errorf("activate user: %w", result.Error))
		return
	}
	if result.RowsAffected == 0 {
		h.fail(w, r, utils.NotAcceptable("Token is invalid!"))
		return
	}
	user.IsActive = true
	user.VerifyToken = nil

	utils.WriteJSON(w, http.StatusOK, user.Public())
}

// Login checks credentials and sets the access and refresh cookies.
func (h *DBHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	var user models.User
	if err := h.WithContext(r.Context()).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.fail(w, r, utils.NotFound("Account not found!"))
			return
		}
		h.fail(w, r, fmt.Errorf("load user: %w", err))
		return
	}

	if !user.IsActive {
		h.fail(w, r, utils.NotAcceptable("Your account is not active!"))
		return
	}
	if !auth.CheckPassword(user.Password, req.Password) {
		h.fail(w, r, utils.NotAcceptable("Your Email or Password is incorrect!"))
		return
	}

	access, refresh, err := h.Tokens.IssuePair(auth.Identity{UserID: user.ID, Email: user.Email})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	now := time.Now()
	if err := h.WithContext(r.Context()).Model(&user).Update("last_login_at", now).Error; err != nil {
		h.Log.WithError(err).WithField("user_id", user.ID).Warn("failed to record login time")
	}

	h.Cookies.SetSessionCookies(w, access, refresh)
	utils.WriteJSON(w, http.StatusOK, loginResponse{
		PublicUser:   user.Public(),
		AccessToken:  access,
		RefreshToken: refresh,
	})
}

func (h *DBHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.Cookies.ClearSessionCookies(w)
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"loggedOut": true})
}

// RefreshToken issues a new access token from a valid refresh token. The
// refresh token itself is not rotated.
func (h *DBHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	token, err := auth.ExtractToken(r, auth.RefreshCookie)
	if err != nil || token == "" {
		h.fail(w, r, utils.Forbidden("Please Sign In! (Error from refresh Token)"))
		return
	}

	claims, err := h.Tokens.VerifyRefresh(token)
	if err != nil {
		h.Log.WithError(err).Debug("rejected refresh token")
		h.fail(w, r, utils.Forbidden("Please Sign In! (Error from refresh Token)"))
		return
	}

	access, err := h.Tokens.IssueAccess(claims.Identity())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.Cookies.SetAccessCookie(w, access)
	utils.WriteJSON(w, http.StatusOK, map[string]string{"accessToken": access})
}

// Me returns the caller's profile. Requires a role check upstream.
func (h *DBHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := utils.GetUser(r)
	if !ok {
		h.fail(w, r, utils.Unauthorized("Unauthorized!"))
		return
	}
	utils.WriteJSON(w, http.StatusOK, user.Public())
}

// UpdateMe changes the username, display name or avatar. A new avatar is
// stored before the old one is deleted.
func (h *DBHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user, ok := utils.GetUser(r)
	if !ok {
		h.fail(w, r, utils.Unauthorized("Unauthorized!"))
		return
	}

	var username, displayName *string
	var avatar *services.StoredAsset

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := parseMultipart(w, r, services.MaxImageSize+1<<20); err != nil {
			h.fail(w, r, err)
			return
		}
		if v, ok := r.MultipartForm.Value["username"]; ok && len(v) > 0 {
			username = &v[0]
		}
		if v, ok := r.MultipartForm.Value["displayName"]; ok && len(v) > 0 {
			displayName = &v[0]
		}
		var err error
		avatar, err = h.uploadFormFile(r, "avatar", services.ImageAsset, false)
		if err != nil {
			h.fail(w, r, err)
			return
		}
	} else {
		var req struct {
			Username    *string `json:"username"`
			DisplayName *string `json:"displayName"`
		}
		if err := utils.DecodeJSON(r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
		username, displayName = req.Username, req.DisplayName
	}

	updates := map[string]interface{}{}
	if username != nil {
		v, err := utils.RequireText(*username, "Username", 100)
		if err != nil {
			h.discard(r.Context(), services.ImageAsset, avatar)
			h.fail(w, r, err)
			return
		}
		updates["username"] = v
	}
	if displayName != nil {
		v, err := utils.RequireText(*displayName, "Display name", 100)
		if err != nil {
			h.discard(r.Context(), services.ImageAsset, avatar)
			h.fail(w, r, err)
			return
		}
		updates["display_name"] = v
	}
	var oldAvatar string
	if user.AvatarPublicID != nil {
		oldAvatar = *user.AvatarPublicID
	}
	if avatar != nil {
		updates["avatar"] = avatar.URL
		updates["avatar_public_id"] = avatar.ID
	}

	if len(updates) == 0 {
		h.fail(w, r, utils.BadRequest("Nothing to update"))
		return
	}

	if err := h.WithContext(r.Context()).Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		h.discard(r.Context(), services.ImageAsset, avatar)
		h.fail(w, r, fmt.Errorf("update profile: %w", err))
		return
	}

	var updated models.User
	if err := h.WithContext(r.Context()).Where("id = ?", user.ID).First(&updated).Error; err != nil {
		h.fail(w, r, fmt.Errorf("reload profile: %w", err))
		return
	}

	if avatar != nil && oldAvatar != "" {
		h.Cleaner.Delete(r.Context(), services.AssetRef{ID: oldAvatar, Kind: services.ImageAsset})
	}

	h.Log.WithFields(logrus.Fields{"user_id": user.ID, "fields": len(updates)}).Info("updated profile")
	utils.WriteJSON(w, http.StatusOK, updated.Public())
}

// MyCourses lists the courses the caller registered for that still exist.
func (h *DBHandler) MyCourses(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var courses []models.Course
	err = h.WithContext(r.Context()).
		Joins("JOIN user_courses ON user_courses.course_id = courses.id").
		Where("user_courses.user_id = ?", id.UserID).
		Order("user_courses.registered_at DESC").
		Find(&courses).Error
	if err != nil {
		h.fail(w, r, fmt.Errorf("list my courses: %w", err))
		return
	}

	utils.WriteJSON(w, http.StatusOK, courses)
}
