package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/engboost/snaplang-api/models"
	"github.com/engboost/snaplang-api/utils"
	"gorm.io/gorm"
)

const registrationRequired = "You need to register for this course to view its content"

// CourseAccess guards the course named by the path value param. Admins pass
// first, then a missing course is 404, then public courses pass, and only
// then is an enrollment looked up.
func (g *Guard) CourseAccess(param string) Check {
	return func(r *http.Request) (*http.Request, error) {
		courseID := r.PathValue(param)
		if err := utils.RequireID(courseID, "course"); err != nil {
			return nil, err
		}

		user, err := g.loadUser(r)
		if err != nil {
			return nil, err
		}
		r = r.WithContext(utils.WithUser(r.Context(), user))

		if user.IsAdmin() {
			return r, nil
		}

		db := g.DB.WithContext(r.Context())

		var course models.Course
		if err := db.Select("id", "is_public").Where("id = ?", courseID).First(&course).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, utils.NotFound("Course not found")
			}
			return nil, fmt.Errorf("load course %s: %w", courseID, err)
		}
		if course.IsPublic {
			return r, nil
		}

		var enrolled int64
		if err := db.Model(&models.UserCourse{}).
			Where("user_id = ? AND course_id = ?", user.ID, courseID).
			Count(&enrolled).Error; err != nil {
			return nil, fmt.Errorf("check enrollment: %w", err)
		}
		if enrolled == 0 {
			return nil, utils.Forbidden(registrationRequired)
		}
		return r, nil
	}
}
