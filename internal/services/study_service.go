// Package services – StudyService
//
// StudyService generates the study artifacts of a document through the
// configured ai.Generator and persists the durable ones (summary, chat,
// insights, study guide, FAQ, notes) in the document's AppData through
// DocumentSync.Save. Those saves are metadata-only: the payload is already
// recorded, so nothing is uploaded again. Flashcards and quizzes are
// ephemeral; only their counts reach the study_stats table.
package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"gorm.io/gorm"

	"github.com/frandy73/Lumina/internal/ai"
	"github.com/frandy73/Lumina/internal/domain"
	"github.com/frandy73/Lumina/internal/observability"
	"github.com/frandy73/Lumina/internal/repo"
)

// Flashcard and quiz sizes.
const (
	DefaultSetSize = 10
	MaxSetSize     = 30
)

// maxHistory caps how many transcript messages are sent as chat context.
const maxHistory = 20

var errEmptyResponse = errors.New("empty model response")

// StatsRepo defines the study counters contract required by StudyService.
type StatsRepo interface {
	// IncrementStudyStats adds d to the user's counters.
	IncrementStudyStats(ctx context.Context, db *gorm.DB, userID string, d repo.StudyDelta) error

	// GetStudyStats returns the user's counters, zeroed when none exist.
	GetStudyStats(ctx context.Context, db *gorm.DB, userID string) (*domain.StudyStats, error)
}

// StudyService generates and stores study artifacts.
type StudyService struct {
	// DB is the GORM handle used for the study counters.
	DB *gorm.DB
	// Stats persists the study counters.
	Stats StatsRepo
	// AI produces every artifact.
	AI ai.Generator

	// MaxPromptRunes caps a chat question.
	MaxPromptRunes int
	// MaxNotesRunes caps the user notes of a document.
	MaxNotesRunes int

	now   func() time.Time
	newID func() string
}

// NewStudyService constructs a StudyService with default limits.
func NewStudyService(db *gorm.DB, stats StatsRepo, gen ai.Generator) *StudyService {
	if gen == nil {
		gen = ai.Disabled{}
	}
	return &StudyService{
		DB:             db,
		Stats:          stats,
		AI:             gen,
		MaxPromptRunes: 4000,
		MaxNotesRunes:  100_000,
		now:            time.Now,
		newID:          uuid.NewString,
	}
}

func aiDoc(d *domain.Document) ai.Doc {
	return ai.Doc{DataURI: d.Base64Data, Filename: d.Name}
}

// genErr records the outcome of one generation call and wraps failures.
func genErr(artifact string, err error) error {
	observability.ObserveGeneration(artifact, err)
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrGeneration, artifact, err)
}

// resolveLanguage validates a BCP 47 tag and returns its canonical form and
// English display name. Empty means English.
func resolveLanguage(lang string) (tag, name string, err error) {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		lang = "en"
	}
	t, err := language.Parse(lang)
	if err != nil {
		return "", "", fmt.Errorf("%w: language %q: %w", ErrInvalidOptions, lang, err)
	}
	name = display.Tags(language.English).Name(t)
	if name == "" {
		name = t.String()
	}
	return t.String(), name, nil
}

// Summarize returns the document with a summary in style and lang. A cached
// summary with the same style and language is reused unless refresh is set.
func (s *StudyService) Summarize(ctx context.Context, docs *DocumentSync, id, style, lang string, refresh bool) (*domain.Document, error) {
	if style == "" {
		style = domain.SummarySimple
	}
	if !slices.Contains(domain.SummaryStyles, style) {
		return nil, fmt.Errorf("%w: style must be one of %s", ErrInvalidOptions, strings.Join(domain.SummaryStyles, ", "))
	}
	tag, langName, err := resolveLanguage(lang)
	if err != nil {
		return nil, err
	}

	if !refresh {
		meta, err := docs.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if meta.Summary != "" && meta.SummaryType == style && meta.SummaryLang == tag {
			return meta, nil
		}
	}

	doc, err := docs.Hydrate(ctx, id)
	if err != nil {
		return nil, err
	}
	text, err := s.AI.GenerateText(ctx, ai.SummaryPrompt(aiDoc(doc), style, langName))
	if err == nil && strings.TrimSpace(text) == "" {
		err = errEmptyResponse
	}
	if err := genErr("summary", err); err != nil {
		return nil, err
	}

	doc.Summary = strings.TrimSpace(text)
	doc.SummaryType = style
	doc.SummaryLang = tag
	return docs.Save(ctx, doc)
}

// Chat asks question about the document. The question and the reply are
// appended to the transcript, which is saved with the document. It returns
// the saved document and the assistant message.
func (s *StudyService) Chat(ctx context.Context, docs *DocumentSync, id, question string) (*domain.Document, *domain.ChatMessage, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, nil, ErrEmptyPrompt
	}
	if s.MaxPromptRunes > 0 && utf8.RuneCountInString(question) > s.MaxPromptRunes {
		return nil, nil, ErrTooLong
	}

	doc, err := docs.Hydrate(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	history := doc.ChatHistory
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	req, schema := ai.ChatPrompt(aiDoc(doc), history, question)
	var reply ai.ChatReply
	err = s.AI.GenerateJSON(ctx, req, schema, &reply)
	if err == nil && strings.TrimSpace(reply.Answer) == "" {
		err = errEmptyResponse
	}
	if err := genErr("chat", err); err != nil {
		return nil, nil, err
	}

	now := s.now().UTC()
	suggested := reply.SuggestedQuestions
	if len(suggested) > 3 {
		suggested = suggested[:3]
	}
	answer := domain.ChatMessage{
		ID:                 s.newID(),
		Role:               domain.RoleAssistant,
		Text:               strings.TrimSpace(reply.Answer),
		Timestamp:          now,
		SuggestedQuestions: suggested,
	}
	doc.ChatHistory = append(slices.Clip(doc.ChatHistory),
		domain.ChatMessage{ID: s.newID(), Role: domain.RoleUser, Text: question, Timestamp: now},
		answer,
	)

	saved, err := docs.Save(ctx, doc)
	if err != nil {
		return nil, nil, err
	}
	return saved, &answer, nil
}

// RateMessage sets the feedback on an assistant message: 1 likes it, -1
// dislikes it and 0 clears both flags.
func (s *StudyService) RateMessage(ctx context.Context, docs *DocumentSync, id, messageID string, value int) (*domain.Document, error) {
	if value < -1 || value > 1 {
		return nil, ErrInvalidFeedback
	}
	doc, err := docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(doc.ChatHistory, func(m domain.ChatMessage) bool { return m.ID == messageID })
	if messageID == "" || idx < 0 {
		return nil, ErrMessageNotFound
	}
	msg := &doc.ChatHistory[idx]
	if msg.Role != domain.RoleAssistant {
		return nil, ErrForbiddenFeedback
	}
	msg.IsLiked = value == 1
	msg.IsDisliked = value == -1
	return docs.Save(ctx, doc)
}

// Insights generates the mind map, the strategic analysis and the key
// citations concurrently. The batch fails as a unit: if any call fails,
// nothing is saved. Cached insights are reused unless refresh is set.
func (s *StudyService) Insights(ctx context.Context, docs *DocumentSync, id string, refresh bool) (*domain.Document, error) {
	if !refresh {
		meta, err := docs.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if meta.HasInsights() {
			return meta, nil
		}
	}

	doc, err := docs.Hydrate(ctx, id)
	if err != nil {
		return nil, err
	}
	d := aiDoc(doc)

	var (
		mind      ai.MindMapResult
		analysis  string
		citations ai.CitationsResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		req, schema := ai.MindMapPrompt(d)
		err := s.AI.GenerateJSON(gctx, req, schema, &mind)
		if err == nil && strings.TrimSpace(mind.Root.Label) == "" {
			err = errEmptyResponse
		}
		return genErr("mind_map", err)
	})
	g.Go(func() error {
		text, err := s.AI.GenerateText(gctx, ai.AnalysisPrompt(d))
		if err == nil && strings.TrimSpace(text) == "" {
			err = errEmptyResponse
		}
		analysis = strings.TrimSpace(text)
		return genErr("analysis", err)
	})
	g.Go(func() error {
		req, schema := ai.CitationsPrompt(d)
		err := s.AI.GenerateJSON(gctx, req, schema, &citations)
		if err == nil && len(citations.Citations) == 0 {
			err = errEmptyResponse
		}
		return genErr("citations", err)
	})
	if err := g.Wait(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("document_id", id).Msg("insights batch failed; nothing saved")
		return nil, err
	}

	doc.MindMap = &mind.Root
	doc.StrategicAnalysis = analysis
	doc.KeyCitations = citations.Citations
	return docs.Save(ctx, doc)
}

// StudyGuide returns the document with a generated study guide.
func (s *StudyService) StudyGuide(ctx context.Context, docs *DocumentSync, id string, refresh bool) (*domain.Document, error) {
	if !refresh {
		meta, err := docs.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if meta.StudyGuide != "" {
			return meta, nil
		}
	}
	doc, err := docs.Hydrate(ctx, id)
	if err != nil {
		return nil, err
	}
	text, err := s.AI.GenerateText(ctx, ai.StudyGuidePrompt(aiDoc(doc)))
	if err == nil && strings.TrimSpace(text) == "" {
		err = errEmptyResponse
	}
	if err := genErr("study_guide", err); err != nil {
		return nil, err
	}
	doc.StudyGuide = strings.TrimSpace(text)
	return docs.Save(ctx, doc)
}

// FAQ returns the document with generated questions and answers.
func (s *StudyService) FAQ(ctx context.Context, docs *DocumentSync, id string, refresh bool) (*domain.Document, error) {
	if !refresh {
		meta, err := docs.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(meta.FAQ) > 0 {
			return meta, nil
		}
	}
	doc, err := docs.Hydrate(ctx, id)
	if err != nil {
		return nil, err
	}
	req, schema := ai.FAQPrompt(aiDoc(doc))
	var res ai.FAQResult
	err = s.AI.GenerateJSON(ctx, req, schema, &res)
	if err == nil && len(res.Items) == 0 {
		err = errEmptyResponse
	}
	if err := genErr("faq", err); err != nil {
		return nil, err
	}
	doc.FAQ = res.Items
	return docs.Save(ctx, doc)
}

// UpdateNotes replaces the user notes of a document.
func (s *StudyService) UpdateNotes(ctx context.Context, docs *DocumentSync, id, notes string) (*domain.Document, error) {
	if s.MaxNotesRunes > 0 && utf8.RuneCountInString(notes) > s.MaxNotesRunes {
		return nil, ErrTooLong
	}
	doc, err := docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	doc.UserNotes = notes
	return docs.Save(ctx, doc)
}

func setSize(count int) (int, error) {
	if count == 0 {
		return DefaultSetSize, nil
	}
	if count < 1 || count > MaxSetSize {
		return 0, fmt.Errorf("%w: count must be between 1 and %d", ErrInvalidOptions, MaxSetSize)
	}
	return count, nil
}

// Flashcards generates count cards (default 10). Cards are not stored.
func (s *StudyService) Flashcards(ctx context.Context, docs *DocumentSync, id string, count int) ([]domain.Flashcard, error) {
	n, err := setSize(count)
	if err != nil {
		return nil, err
	}
	doc, err := docs.Hydrate(ctx, id)
	if err != nil {
		return nil, err
	}
	req, schema := ai.FlashcardsPrompt(aiDoc(doc), n)
	var res ai.FlashcardsResult
	err = s.AI.GenerateJSON(ctx, req, schema, &res)

	cards := make([]domain.Flashcard, 0, n)
	for _, c := range res.Cards {
		if strings.TrimSpace(c.Front) == "" || strings.TrimSpace(c.Back) == "" {
			continue
		}
		c.Favorite = false
		cards = append(cards, c)
		if len(cards) == n {
			break
		}
	}
	if err == nil && len(cards) == 0 {
		err = errEmptyResponse
	}
	if err := genErr("flashcards", err); err != nil {
		return nil, err
	}

	s.count(ctx, docs.Session(), repo.StudyDelta{FlashcardsGenerated: int64(len(cards))})
	return cards, nil
}

// Quiz generates count multiple-choice questions (default 10). Questions
// without exactly four options or with an out-of-range answer are dropped.
func (s *StudyService) Quiz(ctx context.Context, docs *DocumentSync, id string, count int) ([]domain.QuizQuestion, error) {
	n, err := setSize(count)
	if err != nil {
		return nil, err
	}
	doc, err := docs.Hydrate(ctx, id)
	if err != nil {
		return nil, err
	}
	req, schema := ai.QuizPrompt(aiDoc(doc), n)
	var res ai.QuizResult
	err = s.AI.GenerateJSON(ctx, req, schema, &res)

	questions := make([]domain.QuizQuestion, 0, n)
	for _, q := range res.Questions {
		if strings.TrimSpace(q.Question) == "" || len(q.Options) != 4 || q.CorrectIndex < 0 || q.CorrectIndex > 3 {
			continue
		}
		questions = append(questions, q)
		if len(questions) == n {
			break
		}
	}
	if err == nil && len(questions) == 0 {
		err = errEmptyResponse
	}
	if err := genErr("quiz", err); err != nil {
		return nil, err
	}

	s.count(ctx, docs.Session(), repo.StudyDelta{QuizzesGenerated: 1})
	return questions, nil
}

// count applies d to the session user's counters. Counters are advisory; a
// failure is logged, not returned.
func (s *StudyService) count(ctx context.Context, sess Session, d repo.StudyDelta) {
	if err := s.Stats.IncrementStudyStats(ctx, s.DB, sess.UserID, d); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("study stats update failed")
	}
}

// RecordQuizResult records a finished quiz and returns the updated counters.
func (s *StudyService) RecordQuizResult(ctx context.Context, sess Session, correct, total int) (*domain.StudyStats, error) {
	if sess.UserID == "" {
		return nil, fmt.Errorf("%w: no session user", ErrAuth)
	}
	if total < 1 || total > MaxSetSize || correct < 0 || correct > total {
		return nil, ErrInvalidQuizResult
	}
	err := s.Stats.IncrementStudyStats(ctx, s.DB, sess.UserID, repo.StudyDelta{
		QuizzesCompleted:  1,
		QuestionsAnswered: int64(total),
		CorrectAnswers:    int64(correct),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	return s.StatsFor(ctx, sess)
}

// StatsFor returns the study counters of the session user.
func (s *StudyService) StatsFor(ctx context.Context, sess Session) (*domain.StudyStats, error) {
	if sess.UserID == "" {
		return nil, fmt.Errorf("%w: no session user", ErrAuth)
	}
	st, err := s.Stats.GetStudyStats(ctx, s.DB, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	return st, nil
}
