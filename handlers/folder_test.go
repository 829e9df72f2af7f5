package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/engboost/snaplang-api/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFolderTitleUniquePerOwner(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser("alice@x.com", models.RoleClient)
	bob := env.createUser("bob@x.com", models.RoleClient)

	w := env.serve(jsonRequest(http.MethodPost, "/api/folders", map[string]string{"title": "Animals"}), env.tokenFor(alice))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.serve(jsonRequest(http.MethodPost, "/api/folders", map[string]string{"title": " Animals "}), env.tokenFor(alice))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Folder with this title already exists", decode[errorResponse](t, w).Message)

	w = env.serve(jsonRequest(http.MethodPost, "/api/folders", map[string]string{"title": "Animals"}), env.tokenFor(bob))
	assert.Equal(t, http.StatusCreated, w.Code, "titles are only unique per owner")

	var n int64
	require.NoError(t, env.db.Model(&models.Folder{}).Where("title = ?", "Animals").Count(&n).Error)
	assert.Equal(t, int64(2), n)
}

func TestCreateFolderIgnoresClientCounters(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser("alice@x.com", models.RoleClient)

	w := env.serve(jsonRequest(http.MethodPost, "/api/folders", map[string]interface{}{
		"title": "Verbs", "is_public": true, "flashcard_count": 99, "user_id": "someone-else",
	}), env.tokenFor(alice))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	folder := decode[models.Folder](t, w)
	assert.False(t, folder.IsPublic)
	assert.Equal(t, int64(0), folder.FlashcardCount)
	assert.Equal(t, alice.ID, folder.UserID)
}

func TestCreateFolderValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(env.createUser("alice@x.com", models.RoleClient))

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing title", map[string]interface{}{"description": "x"}},
		{"blank title", map[string]interface{}{"title": "   "}},
		{"long title", map[string]interface{}{"title": "this folder title is far too long to keep"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.serve(jsonRequest(http.MethodPost, "/api/folders", tt.body), token)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	w := env.serve(jsonRequest(http.MethodPost, "/api/folders", map[string]string{"title": "x"}), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFolderReadAccess(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser("alice@x.com", models.RoleClient)
	bob := env.createUser("bob@x.com", models.RoleClient)
	private := env.createFolder(alice, "Private", false)
	public := env.createFolder(alice, "Public", true)

	tests := []struct {
		name       string
		user       models.User
		folder     models.Folder
		wantStatus int
	}{
		{"owner reads private", alice, private, http.StatusOK},
		{"stranger reads private", bob, private, http.StatusForbidden},
		{"stranger reads public", bob, public, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.serve(httptest.NewRequest(http.MethodGet, "/api/folders/"+tt.folder.ID, nil), env.tokenFor(tt.user))
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}

	w := env.serve(httptest.NewRequest(http.MethodGet, "/api/folders/not-an-id", nil), env.tokenFor(alice))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid folder ID", decode[errorResponse](t, w).Message)

	w = env.serve(httptest.NewRequest(http.MethodGet, "/api/folders/V1StGXR8_Z5jdHi6B-myT", nil), env.tokenFor(alice))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListFoldersOnlyOwn(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser("alice@x.com", models.RoleClient)
	bob := env.createUser("bob@x.com", models.RoleClient)
	env.createFolder(alice, "One", false)
	env.createFolder(alice, "Two", true)
	env.createFolder(bob, "Three", true)

	w := env.serve(httptest.NewRequest(http.MethodGet, "/api/folders", nil), env.tokenFor(alice))
	require.Equal(t, http.StatusOK, w.Code)
	folders := decode[[]models.Folder](t, w)
	require.Len(t, folders, 2)
	for _, f := range folders {
		assert.Equal(t, alice.ID, f.UserID)
	}
}

func TestUpdateFolder(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser("alice@x.com", models.RoleClient)
	bob := env.createUser("bob@x.com", models.RoleClient)
	folder := env.createFolder(alice, "Animals", false)
	env.createFolder(alice, "Plants", false)
	card := env.createFlashcard(folder, "cat", false, nil)
	path := "/api/folders/" + folder.ID

	t.Run("strips disallowed fields", func(t *testing.T) {
		w := env.serve(jsonRequest(http.MethodPut, path, map[string]interface{}{
			"description": "pets", "user_id": bob.ID, "flashcard_count": 42, "_id": "V1StGXR8_Z5jdHi6B-myT",
		}), env.tokenFor(alice))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		updated := decode[models.Folder](t, w)
		assert.Equal(t, "pets", updated.Description)
		assert.Equal(t, folder.ID, updated.ID)
		assert.Equal(t, alice.ID, updated.UserID)
		assert.Equal(t, int64(1), updated.FlashcardCount)
	})

	t.Run("title conflict", func(t *testing.T) {
		w := env.serve(jsonRequest(http.MethodPut, path, map[string]string{"title": "Plants"}), env.tokenFor(alice))
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("same title is not a conflict", func(t *testing.T) {
		w := env.serve(jsonRequest(http.MethodPut, path, map[string]string{"title": "Animals"}), env.tokenFor(alice))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("visibility propagates", func(t *testing.T) {
		w := env.serve(jsonRequest(http.MethodPut, path, map[string]bool{"is_public": true}), env.tokenFor(alice))
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decode[models.Folder](t, w).IsPublic)

		var reloaded models.Flashcard
		require.NoError(t, env.db.First(&reloaded, "id = ?", card.ID).Error)
		assert.True(t, reloaded.IsPublic)
	})

	t.Run("non-owner", func(t *testing.T) {
		w := env.serve(jsonRequest(http.MethodPut, path, map[string]string{"title": "Mine"}), env.tokenFor(bob))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestToggleVisibility(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser("alice@x.com", models.RoleClient)
	bob := env.createUser("bob@x.com", models.RoleClient)
	admin := env.createUser("admin@x.com", models.RoleAdmin)
	folder := env.createFolder(alice, "Animals", false)
	cards := []models.Flashcard{
		env.createFlashcard(folder, "cat", false, nil),
		env.createFlashcard(folder, "dog", false, nil),
	}
	path := "/api/folders/" + folder.ID + "/visibility"

	cardsPublic := func() []bool {
		var out []bool
		for _, c := range cards {
			var reloaded models.Flashcard
			require.NoError(t, env.db.First(&reloaded, "id = ?", c.ID).Error)
			out = append(out, reloaded.IsPublic)
		}
		return out
	}

	w := env.serve(httptest.NewRequest(http.MethodPut, path, nil), env.tokenFor(alice))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[models.Folder](t, w).IsPublic)
	assert.Equal(t, []bool{true, true}, cardsPublic())

	w = env.serve(httptest.NewRequest(http.MethodPut, path, nil), env.tokenFor(bob))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.serve(httptest.NewRequest(http.MethodPut, path, nil), env.tokenFor(admin))
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[models.Folder](t, w).IsPublic)
	assert.Equal(t, []bool{false, false}, cardsPublic())
}

func TestDeleteFolderSurvivesStorageFailure(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser("alice@x.com", models.RoleClient)
	folder := env.createFolder(alice, "Animals", false)
	img1, img2 := "images/a.png", "images/b.png"
	env.createFlashcard(folder, "cat", false, &img1)
	env.createFlashcard(folder, "dog", false, &img2)
	env.createFlashcard(folder, "bird", false, nil)
	env.assets.failDeletes = true

	w := env.serve(httptest.NewRequest(http.MethodDelete, "/api/folders/"+folder.ID, nil), env.tokenFor(alice))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var n int64
	require.NoError(t, env.db.Model(&models.Flashcard{}).Where("folder_id = ?", folder.ID).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, env.db.Model(&models.Folder{}).Where("id = ?", folder.ID).Count(&n).Error)
	assert.Zero(t, n)

	warnings := 0
	for _, e := range env.logs.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "best-effort asset delete failed" {
			warnings++
		}
	}
	assert.Equal(t, 2, warnings)
}

func TestDeleteFolderRequiresOwner(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser("alice@x.com", models.RoleClient)
	bob := env.createUser("bob@x.com", models.RoleClient)
	folder := env.createFolder(alice, "Animals", true)

	w := env.serve(httptest.NewRequest(http.MethodDelete, "/api/folders/"+folder.ID, nil), env.tokenFor(bob))
	assert.Equal(t, http.StatusForbidden, w.Code)

	var n int64
	require.NoError(t, env.db.Model(&models.Folder{}).Where("id = ?", folder.ID).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}
