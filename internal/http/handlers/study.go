// Study HTTP handlers.
//
// Endpoints operating on one document's study data:
//   - POST /documents/{id}/summary
//   - POST /documents/{id}/chat
//   - POST /documents/{id}/chat/{messageId}/feedback
//   - POST /documents/{id}/insights
//   - POST /documents/{id}/study-guide
//   - POST /documents/{id}/faq
//   - PUT  /documents/{id}/notes
//   - POST /documents/{id}/flashcards
//   - POST /documents/{id}/quiz
//   - POST /documents/{id}/quiz/results
//   - GET  /stats
//
// Documents returned here never carry the payload; clients already hold it.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/frandy73/Lumina/internal/domain"
	"github.com/frandy73/Lumina/internal/utils"
)

// SummaryRequest selects the summary flavor.
type SummaryRequest struct {
	// simple, detailed, bullets or academic
	Style string `json:"style" example:"bullets"`
	// BCP 47 language tag; empty means English
	Lang string `json:"lang" example:"fr"`
	// Regenerate even when a matching summary is stored
	Refresh bool `json:"refresh"`
}

// ChatRequest carries one question about the document.
type ChatRequest struct {
	Question string `json:"question" binding:"required" example:"What is the main argument of chapter 2?"`
}

// ChatResponse returns the assistant reply and the updated document.
type ChatResponse struct {
	Message  domain.ChatMessage `json:"message"`
	Document domain.Document    `json:"document"`
}

// FeedbackRequest rates an assistant message: 1 like, -1 dislike, 0 clear.
type FeedbackRequest struct {
	Value *int `json:"value" binding:"required" example:"1"`
}

// NotesRequest replaces the user's notes.
type NotesRequest struct {
	Notes string `json:"notes" example:"Revise section 3 before Friday."`
}

// SetRequest sizes a flashcard deck or a quiz. 0 means the default.
type SetRequest struct {
	Count int `json:"count" example:"10"`
}

// FlashcardsResponse wraps a generated deck.
type FlashcardsResponse struct {
	Flashcards []domain.Flashcard `json:"flashcards"`
}

// QuizResponse wraps generated questions.
type QuizResponse struct {
	Questions []domain.QuizQuestion `json:"questions"`
}

// QuizResultRequest reports a finished quiz.
type QuizResultRequest struct {
	Correct int `json:"correct" example:"7"`
	Total   int `json:"total" binding:"required" example:"10"`
}

// bindOptional binds a JSON body when one is sent. An empty body leaves dst
// at its zero value.
func bindOptional(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			failFromService(c, err)
			return false
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func bindRequired(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			failFromService(c, err)
			return false
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// respondDoc writes doc without its payload.
func respondDoc(c *gin.Context, doc *domain.Document, err error) {
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, doc.Dehydrated())
}

// Summarize godoc
// @ID          summarizeDocument
// @Summary     Summarize a document
// @Description Generates a summary in the requested style and language, or returns the stored one when it matches and refresh is false.
// @Tags        Study
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string                   true   "Document ID"
// @Param       body  body  handlers.SummaryRequest  false  "Summary options"
//
// @Success     200  {object} domain.Document
// @Failure     400  {object} handlers.ErrorResponse "Invalid style or language"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Document not found"
// @Failure     429  {object} handlers.ErrorResponse "Too many generations"
// @Failure     502  {object} handlers.ErrorResponse "Generation or storage failed"
// @Failure     503  {object} handlers.ErrorResponse "AI not configured"
// @Router      /documents/{id}/summary [post]
func (h *Handlers) Summarize(c *gin.Context) {
	var req SummaryRequest
	if !bindOptional(c, &req) {
		return
	}
	refresh := req.Refresh || utils.BoolDefault(c.Query("refresh"), false)
	doc, err := h.study.Summarize(c.Request.Context(), h.docs(c), c.Param("id"), req.Style, req.Lang, refresh)
	respondDoc(c, doc, err)
}

// Chat godoc
// @ID          chatDocument
// @Summary     Ask about a document
// @Description Sends the question with the document and recent transcript to the model. Both messages are appended to the saved transcript.
// @Tags        Study
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string                true  "Document ID"
// @Param       body  body  handlers.ChatRequest  true  "Question"
//
// @Success     200  {object} handlers.ChatResponse
// @Failure     400  {object} handlers.ErrorResponse "Empty or too long question"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Document not found"
// @Failure     429  {object} handlers.ErrorResponse "Too many generations"
// @Failure     502  {object} handlers.ErrorResponse "Generation or storage failed"
// @Failure     503  {object} handlers.ErrorResponse "AI not configured"
// @Router      /documents/{id}/chat [post]
func (h *Handlers) Chat(c *gin.Context) {
	var req ChatRequest
	if !bindRequired(c, &req) {
		return
	}
	doc, msg, err := h.study.Chat(c.Request.Context(), h.docs(c), c.Param("id"), req.Question)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, ChatResponse{Message: *msg, Document: doc.Dehydrated()})
}

// RateMessage godoc
// @ID          rateChatMessage
// @Summary     Rate an answer
// @Description Likes (1), dislikes (-1) or clears (0) the rating of an assistant message.
// @Tags        Study
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id         path  string                    true  "Document ID"
// @Param       messageId  path  string                    true  "Message ID"
// @Param       body       body  handlers.FeedbackRequest  true  "Rating"
//
// @Success     200  {object} domain.Document
// @Failure     400  {object} handlers.ErrorResponse "Invalid value"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Document or message not found"
// @Failure     409  {object} handlers.ErrorResponse "Not an assistant message"
// @Router      /documents/{id}/chat/{messageId}/feedback [post]
func (h *Handlers) RateMessage(c *gin.Context) {
	var req FeedbackRequest
	if !bindRequired(c, &req) {
		return
	}
	doc, err := h.study.RateMessage(c.Request.Context(), h.docs(c), c.Param("id"), c.Param("messageId"), *req.Value)
	respondDoc(c, doc, err)
}

// Insights godoc
// @ID          documentInsights
// @Summary     Generate insights
// @Description Produces the mind map, strategic analysis and key citations together. Stored insights are returned unless refresh=true.
// @Tags        Study
// @Produce     json
// @Security    BearerAuth
//
// @Param       id       path   string  true   "Document ID"
// @Param       refresh  query  bool    false  "Regenerate"
//
// @Success     200  {object} domain.Document
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Document not found"
// @Failure     429  {object} handlers.ErrorResponse "Too many generations"
// @Failure     502  {object} handlers.ErrorResponse "Generation or storage failed"
// @Failure     503  {object} handlers.ErrorResponse "AI not configured"
// @Router      /documents/{id}/insights [post]
func (h *Handlers) Insights(c *gin.Context) {
	doc, err := h.study.Insights(c.Request.Context(), h.docs(c), c.Param("id"), utils.BoolDefault(c.Query("refresh"), false))
	respondDoc(c, doc, err)
}

// StudyGuide godoc
// @ID          documentStudyGuide
// @Summary     Generate a study guide
// @Description Produces a markdown study guide. The stored guide is returned unless refresh=true.
// @Tags        Study
// @Produce     json
// @Security    BearerAuth
//
// @Param       id       path   string  true   "Document ID"
// @Param       refresh  query  bool    false  "Regenerate"
//
// @Success     200  {object} domain.Document
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Document not found"
// @Failure     502  {object} handlers.ErrorResponse "Generation or storage failed"
// @Failure     503  {object} handlers.ErrorResponse "AI not configured"
// @Router      /documents/{id}/study-guide [post]
func (h *Handlers) StudyGuide(c *gin.Context) {
	doc, err := h.study.StudyGuide(c.Request.Context(), h.docs(c), c.Param("id"), utils.BoolDefault(c.Query("refresh"), false))
	respondDoc(c, doc, err)
}

// FAQ godoc
// @ID          documentFAQ
// @Summary     Generate an FAQ
// @Description Produces question and answer pairs. The stored FAQ is returned unless refresh=true.
// @Tags        Study
// @Produce     json
// @Security    BearerAuth
//
// @Param       id       path   string  true   "Document ID"
// @Param       refresh  query  bool    false  "Regenerate"
//
// @Success     200  {object} domain.Document
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Document not found"
// @Failure     502  {object} handlers.ErrorResponse "Generation or storage failed"
// @Failure     503  {object} handlers.ErrorResponse "AI not configured"
// @Router      /documents/{id}/faq [post]
func (h *Handlers) FAQ(c *gin.Context) {
	doc, err := h.study.FAQ(c.Request.Context(), h.docs(c), c.Param("id"), utils.BoolDefault(c.Query("refresh"), false))
	respondDoc(c, doc, err)
}

// UpdateNotes godoc
// @ID          updateNotes
// @Summary     Save notes
// @Description Replaces the user's free-form notes on the document.
// @Tags        Study
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string                 true  "Document ID"
// @Param       body  body  handlers.NotesRequest  true  "Notes"
//
// @Success     200  {object} domain.Document
// @Failure     400  {object} handlers.ErrorResponse "Notes too long"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Document not found"
// @Router      /documents/{id}/notes [put]
func (h *Handlers) UpdateNotes(c *gin.Context) {
	var req NotesRequest
	if !bindRequired(c, &req) {
		return
	}
	doc, err := h.study.UpdateNotes(c.Request.Context(), h.docs(c), c.Param("id"), req.Notes)
	respondDoc(c, doc, err)
}

// Flashcards godoc
// @ID          documentFlashcards
// @Summary     Generate flashcards
// @Description Produces a fresh deck. Decks are not stored; only the generation is counted.
// @Tags        Study
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string               true   "Document ID"
// @Param       body  body  handlers.SetRequest  false  "Deck size (1-30, default 10)"
//
// @Success     200  {object} handlers.FlashcardsResponse
// @Failure     400  {object} handlers.ErrorResponse "Invalid count"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Document not found"
// @Failure     502  {object} handlers.ErrorResponse "Generation failed"
// @Failure     503  {object} handlers.ErrorResponse "AI not configured"
// @Router      /documents/{id}/flashcards [post]
func (h *Handlers) Flashcards(c *gin.Context) {
	var req SetRequest
	if !bindOptional(c, &req) {
		return
	}
	cards, err := h.study.Flashcards(c.Request.Context(), h.docs(c), c.Param("id"), req.Count)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, FlashcardsResponse{Flashcards: cards})
}

// Quiz godoc
// @ID          documentQuiz
// @Summary     Generate a quiz
// @Description Produces multiple-choice questions. Quizzes are not stored; only the generation is counted.
// @Tags        Study
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string               true   "Document ID"
// @Param       body  body  handlers.SetRequest  false  "Question count (1-30, default 10)"
//
// @Success     200  {object} handlers.QuizResponse
// @Failure     400  {object} handlers.ErrorResponse "Invalid count"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Document not found"
// @Failure     502  {object} handlers.ErrorResponse "Generation failed"
// @Failure     503  {object} handlers.ErrorResponse "AI not configured"
// @Router      /documents/{id}/quiz [post]
func (h *Handlers) Quiz(c *gin.Context) {
	var req SetRequest
	if !bindOptional(c, &req) {
		return
	}
	qs, err := h.study.Quiz(c.Request.Context(), h.docs(c), c.Param("id"), req.Count)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, QuizResponse{Questions: qs})
}

// RecordQuizResult godoc
// @ID          recordQuizResult
// @Summary     Record a quiz score
// @Description Adds a finished quiz of the document to the caller's study counters and returns them.
// @Tags        Study
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string                      true  "Document ID"
// @Param       body  body  handlers.QuizResultRequest  true  "Score"
//
// @Success     200  {object} domain.StudyStats
// @Failure     400  {object} handlers.ErrorResponse "Invalid score"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Document not found"
// @Router      /documents/{id}/quiz/results [post]
func (h *Handlers) RecordQuizResult(c *gin.Context) {
	var req QuizResultRequest
	if !bindRequired(c, &req) {
		return
	}
	ctx := c.Request.Context()
	lib := h.docs(c)
	if _, err := lib.Get(ctx, c.Param("id")); err != nil {
		failFromService(c, err)
		return
	}
	st, err := h.study.RecordQuizResult(ctx, lib.Session(), req.Correct, req.Total)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, st)
}

// Stats godoc
// @ID          studyStats
// @Summary     Study counters
// @Description Returns the caller's lifetime flashcard, quiz and answer counters.
// @Tags        Study
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {object} domain.StudyStats
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Router      /stats [get]
func (h *Handlers) Stats(c *gin.Context) {
	st, err := h.study.StatsFor(c.Request.Context(), session(c))
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, st)
}
