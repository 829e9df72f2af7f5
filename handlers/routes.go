package handlers

import (
	"net/http"

	"github.com/engboost/snaplang-api/middleware"
)

// Routes registers every API endpoint on mux behind its access checks.
func (h *DBHandler) Routes(mux *http.ServeMux, g *middleware.Guard) {
	authed := g.Authenticated()

	// Users
	mux.HandleFunc("POST /api/users/register", h.Register)
	mux.HandleFunc("PUT /api/users/verify", h.Verify)
	mux.HandleFunc("POST /api/users/login", h.Login)
	mux.HandleFunc("DELETE /api/users/logout", h.Logout)
	mux.HandleFunc("GET /api/users/refresh_token", h.RefreshToken)
	mux.HandleFunc("GET /api/users/me", g.Protect(h.Me, authed, g.AnyRole()))
	mux.HandleFunc("PUT /api/users/me", g.Protect(h.UpdateMe, authed, g.AnyRole()))
	mux.HandleFunc("GET /api/users/me/courses", g.Protect(h.MyCourses, authed))

	// Admin
	mux.HandleFunc("GET /api/admin/users", g.Protect(h.SearchUsers, authed, g.AdminOnly()))
	mux.HandleFunc("PUT /api/admin/users/{userID}/role", g.Protect(h.UpdateRole, authed, g.AdminOnly()))
	mux.HandleFunc("DELETE /api/admin/users/{userID}", g.Protect(h.DeleteUser, authed, g.AdminOnly()))

	// Folders
	mux.HandleFunc("POST /api/folders", g.Protect(h.CreateFolder, authed))
	mux.HandleFunc("GET /api/folders", g.Protect(h.ListFolders, authed))
	mux.HandleFunc("GET /api/folders/{folderID}", g.Protect(h.GetFolder, authed))
	mux.HandleFunc("PUT /api/folders/{folderID}", g.Protect(h.UpdateFolder, authed))
	mux.HandleFunc("DELETE /api/folders/{folderID}", g.Protect(h.DeleteFolder, authed))
	mux.HandleFunc("PUT /api/folders/{folderID}/visibility", g.Protect(h.ToggleVisibility, authed, g.AnyRole()))

	// Flashcards
	mux.HandleFunc("GET /api/folders/{folderID}/flashcards", g.Protect(h.ListFlashcards, authed))
	mux.HandleFunc("POST /api/flashcards/save-to-folder", g.Protect(h.SaveToFolder, authed))
	mux.HandleFunc("GET /api/flashcards/{flashcardID}", g.Protect(h.GetFlashcard, authed))
	mux.HandleFunc("DELETE /api/flashcards/{flashcardID}", g.Protect(h.DeleteFlashcard, authed))

	// Courses
	mux.HandleFunc("GET /api/courses", g.Protect(h.ListCourses, authed, g.AnyRole()))
	mux.HandleFunc("POST /api/courses", g.Protect(h.CreateCourse, authed, g.AdminOnly()))
	mux.HandleFunc("GET /api/courses/{courseID}", g.Protect(h.GetCourse, authed, g.AnyRole(), g.CourseAccess("courseID")))
	mux.HandleFunc("PUT /api/courses/{courseID}", g.Protect(h.UpdateCourse, authed, g.AdminOnly()))
	mux.HandleFunc("DELETE /api/courses/{courseID}", g.Protect(h.DeleteCourse, authed, g.AdminOnly()))
	mux.HandleFunc("POST /api/courses/{courseID}/register", g.Protect(h.RegisterCourse, authed, g.AnyRole()))

	// Snaplang
	mux.HandleFunc("POST /api/snaplang/detect", h.Detect)

	mux.HandleFunc("GET /api/health", h.Health)
}
