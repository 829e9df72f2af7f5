package models

// Flashcard is an english/vietnamese term pair inside a folder.
type Flashcard struct {
	Model
	English       string  `gorm:"not null;size:200" json:"english"`
	Vietnamese    string  `gorm:"not null;size:200" json:"vietnamese"`
	Object        *string `gorm:"size:100" json:"object"`
	ImageURL      *string `json:"image_url"`
	ImagePublicID *string `json:"image_public_id,omitempty"`

	FolderID string `gorm:"not null;size:21;index" json:"folder_id"`
	UserID   string `gorm:"not null;size:21;index" json:"user_id"`
	IsPublic bool   `gorm:"not null;default:false" json:"is_public"`
}
