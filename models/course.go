package models

import "time"

// Course is an authored video lesson.
type Course struct {
	Model
	Title             string  `gorm:"not null;size:100" json:"title"`
	Description       string  `gorm:"type:text" json:"description"`
	AuthorID          string  `gorm:"not null;size:21;index" json:"author_id"`
	VideoURL          string  `gorm:"not null" json:"video_url"`
	VideoPublicID     string  `gorm:"not null" json:"video_public_id"`
	ThumbnailURL      string  `gorm:"not null" json:"thumbnail_url"`
	ThumbnailPublicID string  `gorm:"not null" json:"thumbnail_public_id"`
	Duration          float64 `gorm:"not null;default:0" json:"duration"`
	Format            string  `gorm:"size:20" json:"format"`
	IsPublic          bool    `gorm:"not null;default:false;index" json:"is_public"`
}

// UserCourse records that a user registered for a course.
type UserCourse struct {
	Model
	UserID       string    `gorm:"not null;size:21;uniqueIndex:idx_user_courses_user_course" json:"user_id"`
	CourseID     string    `gorm:"not null;size:21;uniqueIndex:idx_user_courses_user_course;index" json:"course_id"`
	RegisteredAt time.Time `gorm:"not null" json:"registered_at"`
}
