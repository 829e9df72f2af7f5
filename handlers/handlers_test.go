package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/engboost/snaplang-api/auth"
	"github.com/engboost/snaplang-api/config"
	"github.com/engboost/snaplang-api/middleware"
	"github.com/engboost/snaplang-api/models"
	"github.com/engboost/snaplang-api/services"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const rootAdminEmail = "root@engboost.dev"

// memoryStore is an in-memory AssetStore.
type memoryStore struct {
	mu          sync.Mutex
	seq         int
	objects     map[string][]byte
	deleted     []string
	failDeletes bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (s *memoryStore) Upload(ctx context.Context, body io.Reader, kind services.AssetKind, filename, contentType string) (*services.StoredAsset, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	ext := filename[strings.LastIndex(filename, ".")+1:]
	id := fmt.Sprintf("%ss/%d.%s", kind, s.seq, ext)
	s.objects[id] = data
	return &services.StoredAsset{URL: "https://cdn.test/" + id, ID: id, Format: ext, Bytes: int64(len(data))}, nil
}

func (s *memoryStore) Delete(ctx context.Context, id string, kind services.AssetKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDeletes {
		return errors.New("storage provider unavailable")
	}
	delete(s.objects, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *memoryStore) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[id]
	return ok
}

func (s *memoryStore) deletedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []services.Mail
}

func (m *recordingMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, services.Mail{To: to, Subject: subject, HTML: htmlBody})
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fakeTranslator struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
}

func (f *fakeTranslator) Translate(ctx context.Context, word string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[word]++
	if f.fail[word] {
		return "", errors.New("translate quota exceeded")
	}
	return "vi-" + word, nil
}

type fakeDetector struct {
	labels []string
	err    error
}

func (f *fakeDetector) Detect(ctx context.Context, image []byte, filename string) ([]string, error) {
	return f.labels, f.err
}

type testEnv struct {
	t          *testing.T
	db         *gorm.DB
	handler    *DBHandler
	mux        *http.ServeMux
	tokens     *auth.TokenService
	assets     *memoryStore
	mailer     *recordingMailer
	translator *fakeTranslator
	detector   *fakeDetector
	logs       *test.Hook
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	db, err := config.Open(sqlite.Open("file::memory:"), logger)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, config.Migrate(db))

	tokens, err := auth.NewTokenService("access-secret", time.Hour, "refresh-secret", 24*time.Hour)
	require.NoError(t, err)

	assets := newMemoryStore()
	mailer := &recordingMailer{}
	mailQueue := services.NewMailQueue(mailer, logger, 1, 10)
	t.Cleanup(func() {
		mailQueue.Close(context.Background())
		config.Close(db)
	})

	env := &testEnv{
		t:          t,
		db:         db,
		tokens:     tokens,
		assets:     assets,
		mailer:     mailer,
		translator: &fakeTranslator{calls: map[string]int{}, fail: map[string]bool{}},
		detector:   &fakeDetector{},
		logs:       hook,
	}
	env.handler = &DBHandler{
		DB:             db,
		Tokens:         tokens,
		Cookies:        auth.CookieOptions{MaxAge: time.Hour},
		Assets:         assets,
		Cleaner:        services.NewCleaner(assets, logger, 2),
		Mail:           mailQueue,
		Translator:     env.translator,
		Detector:       env.detector,
		Log:            logger,
		RootAdminEmail: rootAdminEmail,
		WebsiteDomain:  "http://localhost:5173",
	}
	env.mux = http.NewServeMux()
	env.handler.Routes(env.mux, middleware.NewGuard(db, tokens, logger))
	return env
}

// createUser inserts an active account directly.
func (e *testEnv) createUser(email string, role models.Role) models.User {
	e.t.Helper()
	hash, err := auth.HashPassword("password1")
	require.NoError(e.t, err)
	u := models.User{Email: email, Password: hash, Username: strings.Split(email, "@")[0], Role: role, IsActive: true}
	require.NoError(e.t, e.db.Create(&u).Error)
	return u
}

func (e *testEnv) tokenFor(u models.User) string {
	e.t.Helper()
	token, err := e.tokens.IssueAccess(auth.Identity{UserID: u.ID, Email: u.Email})
	require.NoError(e.t, err)
	return token
}

func (e *testEnv) createFolder(owner models.User, title string, public bool) models.Folder {
	e.t.Helper()
	f := models.Folder{Title: title, UserID: owner.ID}
	require.NoError(e.t, e.db.Create(&f).Error)
	if public {
		require.NoError(e.t, e.db.Model(&f).Update("is_public", true).Error)
		f.IsPublic = true
	}
	return f
}

func (e *testEnv) createFlashcard(folder models.Folder, english string, public bool, imageID *string) models.Flashcard {
	e.t.Helper()
	c := models.Flashcard{English: english, Vietnamese: "vi-" + english, FolderID: folder.ID, UserID: folder.UserID, ImagePublicID: imageID}
	require.NoError(e.t, e.db.Create(&c).Error)
	if public {
		require.NoError(e.t, e.db.Model(&c).Update("is_public", true).Error)
		c.IsPublic = true
	}
	require.NoError(e.t, e.db.Model(&models.Folder{}).Where("id = ?", folder.ID).
		Update("flashcard_count", gorm.Expr("flashcard_count + 1")).Error)
	return c
}

func (e *testEnv) createCourse(public bool) models.Course {
	e.t.Helper()
	c := models.Course{
		Title: "Course", AuthorID: "V1StGXR8_Z5jdHi6B-myT",
		VideoURL: "https://cdn.test/videos/1.mp4", VideoPublicID: "videos/1.mp4",
		ThumbnailURL: "https://cdn.test/images/1.png", ThumbnailPublicID: "images/1.png",
	}
	require.NoError(e.t, e.db.Create(&c).Error)
	if public {
		require.NoError(e.t, e.db.Model(&c).Update("is_public", true).Error)
		c.IsPublic = true
	}
	return c
}

func jsonRequest(method, path string, body interface{}) *http.Request {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	r := httptest.NewRequest(method, path, reader)
	r.Header.Set("Content-Type", "application/json")
	return r
}

type formFile struct {
	field, filename string
	content         []byte
}

func multipartRequest(method, path string, fields map[string]string, files ...formFile) *http.Request {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		writer.WriteField(k, v)
	}
	for _, f := range files {
		fw, _ := writer.CreateFormFile(f.field, f.filename)
		fw.Write(f.content)
	}
	writer.Close()

	r := httptest.NewRequest(method, path, body)
	r.Header.Set("Content-Type", writer.FormDataContentType())
	return r
}

// serve dispatches r, authenticated as token when it is not empty.
func (e *testEnv) serve(r *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type errorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")
