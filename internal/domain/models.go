// Package domain defines the persistence models and the document aggregate
// shared by the repository, service and HTTP layers.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// DocumentRecord is the metadata row of a document. The binary payload is
// never stored here; FilePath points at the object holding it.
//
// Fields:
//   - ID: client-generated document id, primary key.
//   - OwnerID: id of the owning user; every query is scoped by it.
//   - Name / Size / Type / UploadDate: immutable file facts.
//   - FilePath: object store path ("{owner}/{id}.pdf"), nil until the
//     payload has been written.
//   - AppData: JSON bag of derived artifacts and user edits (see AppData).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type DocumentRecord struct {
	ID         string         `json:"id"          gorm:"type:varchar(64);primaryKey"`
	OwnerID    string         `json:"owner_id"    gorm:"type:varchar(64);not null;index:idx_owner_docs,priority:1"`
	Name       string         `json:"name"        gorm:"type:varchar(255);not null"`
	Size       int64          `json:"size"        gorm:"not null;default:0"`
	Type       string         `json:"type"        gorm:"type:varchar(255);not null;default:''"`
	UploadDate time.Time      `json:"upload_date" gorm:"not null"`
	FilePath   *string        `json:"file_path"   gorm:"type:varchar(512)"`
	AppData    datatypes.JSON `json:"app_data"`
	CreatedAt  time.Time      `json:"created_at"  gorm:"index:idx_owner_docs,priority:2"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// TableName returns the database table name for DocumentRecord.
func (DocumentRecord) TableName() string { return "documents" }

// StudyStats holds per-user counters for ephemeral study sessions.
// Flashcards and quiz questions are never stored; only these counts are.
type StudyStats struct {
	UserID              string    `json:"user_id"              gorm:"type:varchar(64);primaryKey"`
	FlashcardsGenerated int64     `json:"flashcards_generated" gorm:"not null;default:0"`
	QuizzesGenerated    int64     `json:"quizzes_generated"    gorm:"not null;default:0"`
	QuizzesCompleted    int64     `json:"quizzes_completed"    gorm:"not null;default:0"`
	QuestionsAnswered   int64     `json:"questions_answered"   gorm:"not null;default:0"`
	CorrectAnswers      int64     `json:"correct_answers"      gorm:"not null;default:0"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// TableName returns the database table name for StudyStats.
func (StudyStats) TableName() string { return "study_stats" }
