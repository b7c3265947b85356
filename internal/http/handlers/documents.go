// Document HTTP handlers.
//
// This file exposes REST endpoints for the user's document library:
//   - GET    /documents               (list, ETag support, ?q= search)
//   - POST   /documents               (upload: multipart or JSON, idempotent)
//   - GET    /documents/{id}          (hydrated document)
//   - GET    /documents/{id}/content  (raw file bytes)
//   - PUT    /documents/{id}          (save the full aggregate)
//   - DELETE /documents/{id}          (delete row and payload)
//   - DELETE /documents               (clear the library)
//
// Handlers are transport-thin: they bind input, call the document sync
// manager scoped to the authenticated user, and translate results.
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/frandy73/Lumina/internal/blob"
	"github.com/frandy73/Lumina/internal/domain"
	"github.com/frandy73/Lumina/internal/http/middleware"
	"github.com/frandy73/Lumina/internal/search"
	"github.com/frandy73/Lumina/internal/services"
	"github.com/frandy73/Lumina/internal/sysutil"
	"github.com/frandy73/Lumina/internal/utils"
)

//
// Service contracts (context-aware)
//

// StudyService defines the AI-backed study operations consumed by handlers.
// Each call receives the library already scoped to the caller.
type StudyService interface {
	Summarize(ctx context.Context, docs *services.DocumentSync, id, style, lang string, refresh bool) (*domain.Document, error)
	Chat(ctx context.Context, docs *services.DocumentSync, id, question string) (*domain.Document, *domain.ChatMessage, error)
	RateMessage(ctx context.Context, docs *services.DocumentSync, id, messageID string, value int) (*domain.Document, error)
	Insights(ctx context.Context, docs *services.DocumentSync, id string, refresh bool) (*domain.Document, error)
	StudyGuide(ctx context.Context, docs *services.DocumentSync, id string, refresh bool) (*domain.Document, error)
	FAQ(ctx context.Context, docs *services.DocumentSync, id string, refresh bool) (*domain.Document, error)
	UpdateNotes(ctx context.Context, docs *services.DocumentSync, id, notes string) (*domain.Document, error)
	Flashcards(ctx context.Context, docs *services.DocumentSync, id string, count int) ([]domain.Flashcard, error)
	Quiz(ctx context.Context, docs *services.DocumentSync, id string, count int) ([]domain.QuizQuestion, error)
	RecordQuizResult(ctx context.Context, sess services.Session, correct, total int) (*domain.StudyStats, error)
	StatsFor(ctx context.Context, sess services.Session) (*domain.StudyStats, error)
}

// IdempotencyRecorder stores the resource produced under an Idempotency-Key.
type IdempotencyRecorder func(ctx context.Context, userID, scope, key, resourceID string, status int) error

//
// Handler wiring
//

// Handlers groups the document and study endpoints.
type Handlers struct {
	library *services.DocumentSync
	study   StudyService
	record  IdempotencyRecorder
}

// New constructs Handlers. library is the session-less document sync
// manager; each request derives its own copy bound to the caller. record may
// be nil, in which case Idempotency-Key is validated but not persisted.
func New(library *services.DocumentSync, study StudyService, record IdempotencyRecorder) *Handlers {
	return &Handlers{library: library, study: study, record: record}
}

func session(c *gin.Context) services.Session {
	return services.Session{UserID: middleware.UserID(c)}
}

// docs returns the library bound to the authenticated user.
func (h *Handlers) docs(c *gin.Context) *services.DocumentSync {
	return h.library.WithSession(session(c))
}

//
// DTOs
//

// SaveDocumentRequest is the JSON form of a document upload or save. It
// mirrors domain.Document; Base64Data may be a data URI or bare base64 and
// may be omitted when only metadata or study data changes.
type SaveDocumentRequest struct {
	domain.Document
}

// ListDocumentsResponse wraps the library listing.
type ListDocumentsResponse struct {
	Documents []domain.Document `json:"documents"`
	Total     int               `json:"total"`
	Query     string            `json:"query,omitempty"`
}

// ClearLibraryResponse reports how many documents were removed.
type ClearLibraryResponse struct {
	Deleted int64 `json:"deleted" example:"3"`
}

//
// Handlers
//

// ListDocuments godoc
// @ID          listDocuments
// @Summary     List the library
// @Description Returns the caller's documents newest first, without payloads. With q, returns only matching documents ranked by relevance. Supports weak ETag via If-None-Match when q is empty.
// @Tags        Documents
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"docs:3:1700000000000000000\")
// @Param       q              query   string  false "Search terms (name, summary, study guide, notes)"
//
// @Success     200  {object} handlers.ListDocumentsResponse
// @Header      200  {string} ETag "Weak ETag for the library state"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     502  {object} handlers.ErrorResponse "Storage unavailable"
// @Router      /documents [get]
func (h *Handlers) ListDocuments(c *gin.Context) {
	ctx := c.Request.Context()
	lib := h.docs(c)
	q := strings.TrimSpace(c.Query("q"))

	// Best effort: a failing stats query just skips the validator.
	if q == "" {
		if n, ts, err := lib.Version(ctx); err == nil && notModified(c, libraryETag(n, ts)) {
			return
		}
	}

	docs, err := lib.List(ctx, session(c).UserID)
	if err != nil {
		failFromService(c, err)
		return
	}

	if q != "" {
		byID := make(map[string]domain.Document, len(docs))
		for _, d := range docs {
			byID[d.ID] = d
		}
		hits := search.NewIndex(search.FromDocuments(docs)).TopK(q, 0)
		ranked := make([]domain.Document, 0, len(hits))
		for _, r := range hits {
			ranked = append(ranked, byID[r.ID])
		}
		docs = ranked
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	ok(c, http.StatusOK, ListDocumentsResponse{Documents: docs, Total: len(docs), Query: q})
}

// CreateDocument godoc
// @ID          createDocument
// @Summary     Upload a document
// @Description Stores a new document. Send multipart/form-data with a "file" part (optional "id" and "name" fields) or a JSON document whose base64Data carries the file. The payload is written once to object storage. Supports idempotency via the Idempotency-Key header (same key returns the same document).
// @Tags        Documents
// @Accept      multipart/form-data,json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header    string  false "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       file             formData  file    false "PDF or other file"
// @Param       id               formData  string  false "Client document id (generated when empty)"
// @Param       name             formData  string  false "Display name (defaults to the file name)"
//
// @Success     201  {object} domain.Document
// @Success     200  {object} domain.Document "Replayed by Idempotency-Key"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     403  {object} handlers.ErrorResponse "Id owned by another user"
// @Failure     413  {object} handlers.ErrorResponse "File too large"
// @Failure     422  {object} handlers.ErrorResponse "Malformed payload"
// @Failure     502  {object} handlers.ErrorResponse "Storage unavailable"
// @Router      /documents [post]
func (h *Handlers) CreateDocument(c *gin.Context) {
	ctx := c.Request.Context()
	lib := h.docs(c)

	if rid, replay := middleware.ReplayedResource(c); replay {
		if doc, err := lib.Get(ctx, rid); err == nil {
			replayed(c, doc)
			return
		}
		// The original document is gone; process the request anew.
	}

	doc, err := bindDocument(c)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			failFromService(c, err)
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	saved, err := lib.Save(ctx, doc)
	if err != nil {
		failFromService(c, err)
		return
	}

	if key, has := middleware.GetIdempotencyKey(c); has && h.record != nil {
		if err := h.record(ctx, session(c).UserID, middleware.IdempotencyScope(c), key, saved.ID, http.StatusCreated); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record failed")
		}
	}
	created(c, saved.ID, saved.Dehydrated())
}

// bindDocument reads a multipart upload or a JSON document.
func bindDocument(c *gin.Context) (*domain.Document, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, err
			}
			return nil, errors.New(`multipart upload needs a "file" part`)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, err
		}
		mime := fh.Header.Get("Content-Type")
		if mime == "" || mime == blob.DefaultMimeType {
			mime = blob.Sniff(data)
		}
		return &domain.Document{
			ID:         strings.TrimSpace(c.PostForm("id")),
			Name:       sysutil.FirstNonEmpty(strings.TrimSpace(c.PostForm("name")), fh.Filename),
			Size:       int64(len(data)),
			Type:       mime,
			UploadDate: time.Now().UTC(),
			Base64Data: blob.Encode(data, mime),
		}, nil
	}

	var req SaveDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, errors.New("invalid JSON body")
	}
	return &req.Document, nil
}

// GetDocument godoc
// @ID          getDocument
// @Summary     Open a document
// @Description Returns the document with its payload as base64Data. Pass hydrate=false for metadata and study data only.
// @Tags        Documents
// @Produce     json
// @Security    BearerAuth
//
// @Param       id       path   string  true   "Document ID"
// @Param       hydrate  query  bool    false  "Include the payload"  default(true)
//
// @Success     200  {object} domain.Document
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Document or payload not found"
// @Failure     502  {object} handlers.ErrorResponse "Storage unavailable"
// @Router      /documents/{id} [get]
func (h *Handlers) GetDocument(c *gin.Context) {
	ctx := c.Request.Context()
	lib := h.docs(c)
	id := c.Param("id")

	var (
		doc *domain.Document
		err error
	)
	if utils.BoolDefault(c.Query("hydrate"), true) {
		doc, err = lib.Hydrate(ctx, id)
	} else {
		doc, err = lib.Get(ctx, id)
	}
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, doc)
}

// GetDocumentContent godoc
// @ID          getDocumentContent
// @Summary     Download the file
// @Description Streams the stored payload with its recorded content type.
// @Tags        Documents
// @Produce     application/pdf,application/octet-stream
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Document ID"
//
// @Success     200  {file}   file
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Document or payload not found"
// @Failure     502  {object} handlers.ErrorResponse "Storage unavailable"
// @Router      /documents/{id}/content [get]
func (h *Handlers) GetDocumentContent(c *gin.Context) {
	data, mime, err := h.docs(c).Payload(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFromService(c, err)
		return
	}
	c.Header("Content-Disposition", "inline")
	c.Data(http.StatusOK, sysutil.FirstNonEmpty(mime, blob.DefaultMimeType), data)
}

// SaveDocument godoc
// @ID          saveDocument
// @Summary     Save a document
// @Description Persists the full aggregate (file facts and study data). The payload is uploaded only when the document has none stored yet.
// @Tags        Documents
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string                          true  "Document ID"
// @Param       body  body  handlers.SaveDocumentRequest    true  "Document"
//
// @Success     200  {object} domain.Document
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     403  {object} handlers.ErrorResponse "Id owned by another user"
// @Failure     422  {object} handlers.ErrorResponse "Malformed payload"
// @Failure     502  {object} handlers.ErrorResponse "Storage unavailable"
// @Router      /documents/{id} [put]
func (h *Handlers) SaveDocument(c *gin.Context) {
	var req SaveDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			failFromService(c, err)
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	id := c.Param("id")
	if req.ID != "" && req.ID != id {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "body id does not match path")
		return
	}
	req.ID = id

	saved, err := h.docs(c).Save(c.Request.Context(), &req.Document)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, saved.Dehydrated())
}

// DeleteDocument godoc
// @ID          deleteDocument
// @Summary     Delete a document
// @Description Removes the payload object, then the row. A missing payload is not an error.
// @Tags        Documents
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Document ID"
//
// @Success     204  {string} string "No Content"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Document not found"
// @Failure     502  {object} handlers.ErrorResponse "Storage unavailable"
// @Router      /documents/{id} [delete]
func (h *Handlers) DeleteDocument(c *gin.Context) {
	if err := h.docs(c).Delete(c.Request.Context(), c.Param("id")); err != nil {
		failFromService(c, err)
		return
	}
	noContent(c)
}

// ClearLibrary godoc
// @ID          clearLibrary
// @Summary     Clear the library
// @Description Deletes every document row of the caller. Payload objects are left in storage.
// @Tags        Documents
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {object} handlers.ClearLibraryResponse
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     502  {object} handlers.ErrorResponse "Storage unavailable"
// @Router      /documents [delete]
func (h *Handlers) ClearLibrary(c *gin.Context) {
	n, err := h.docs(c).ClearAll(c.Request.Context(), session(c).UserID)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, ClearLibraryResponse{Deleted: n})
}
