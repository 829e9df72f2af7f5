package models

// Folder groups flashcards. Titles are unique per owner and FlashcardCount
// mirrors the number of flashcards referencing the folder.
type Folder struct {
	Model
	Title          string `gorm:"not null;size:100;uniqueIndex:idx_folders_owner_title" json:"title"`
	Description    string `gorm:"size:500" json:"description"`
	UserID         string `gorm:"not null;size:21;index;uniqueIndex:idx_folders_owner_title" json:"user_id"`
	IsPublic       bool   `gorm:"not null;default:false" json:"is_public"`
	FlashcardCount int64  `gorm:"not null;default:0" json:"flashcard_count"`
	// Destroyed is kept for schema compatibility; folders are hard deleted.
	Destroyed bool `gorm:"not null;default:false" json:"_destroy"`
}
