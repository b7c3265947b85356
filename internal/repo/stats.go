// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) and the per-user study counters.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frandy73/Lumina/internal/domain"
)

// DocumentsStats returns aggregate metadata for an owner's documents: the
// total number of rows and the maximum UpdatedAt among them. When the owner
// has no documents, count is 0 and maxUpdatedAt is nil.
func DocumentsStats(ctx context.Context, db *gorm.DB, ownerID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.DocumentRecord{}).Where("owner_id = ?", ownerID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// StudyDelta is an increment applied to a user's study counters.
type StudyDelta struct {
	FlashcardsGenerated int64
	QuizzesGenerated    int64
	QuizzesCompleted    int64
	QuestionsAnswered   int64
	CorrectAnswers      int64
}

// IncrementStudyStats adds d to the counters of userID, creating the row on
// first use.
func IncrementStudyStats(ctx context.Context, db *gorm.DB, userID string, d StudyDelta) error {
	now := time.Now().UTC()
	row := &domain.StudyStats{
		UserID:              userID,
		FlashcardsGenerated: d.FlashcardsGenerated,
		QuizzesGenerated:    d.QuizzesGenerated,
		QuizzesCompleted:    d.QuizzesCompleted,
		QuestionsAnswered:   d.QuestionsAnswered,
		CorrectAnswers:      d.CorrectAnswers,
		UpdatedAt:           now,
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"flashcards_generated": gorm.Expr("study_stats.flashcards_generated + ?", d.FlashcardsGenerated),
			"quizzes_generated":    gorm.Expr("study_stats.quizzes_generated + ?", d.QuizzesGenerated),
			"quizzes_completed":    gorm.Expr("study_stats.quizzes_completed + ?", d.QuizzesCompleted),
			"questions_answered":   gorm.Expr("study_stats.questions_answered + ?", d.QuestionsAnswered),
			"correct_answers":      gorm.Expr("study_stats.correct_answers + ?", d.CorrectAnswers),
			"updated_at":           now,
		}),
	}).Create(row).Error
}

// GetStudyStats returns the counters of userID. A user with no recorded
// activity gets zeroed counters, not ErrNotFound.
func GetStudyStats(ctx context.Context, db *gorm.DB, userID string) (*domain.StudyStats, error) {
	var out domain.StudyStats
	res := db.WithContext(ctx).Where("user_id = ?", userID).Limit(1).Find(&out)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return &domain.StudyStats{UserID: userID}, nil
	}
	return &out, nil
}
