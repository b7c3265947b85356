// Package services – DocumentSync
//
// DocumentSync maps the in-memory Document aggregate onto the two stores:
// payload bytes live in the object store under a deterministic path, while
// everything else (file facts and the AppData bag) lives in one metadata
// row. The two writes are not transactional. A row is only ever written
// with a path that was confirmed by a successful Put, so the worst crash
// outcome is an orphaned object, never a row pointing at nothing.
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/frandy73/Lumina/internal/blob"
	"github.com/frandy73/Lumina/internal/cache"
	"github.com/frandy73/Lumina/internal/domain"
	"github.com/frandy73/Lumina/internal/objectstore"
	"github.com/frandy73/Lumina/internal/observability"
	"github.com/frandy73/Lumina/internal/repo"
)

var tracer = otel.Tracer("services/DocumentSync")

var docIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Session identifies the signed-in user a DocumentSync acts for.
type Session struct {
	UserID string
}

// DocumentRepo defines the metadata store contract required by DocumentSync.
// Every call is scoped by owner.
type DocumentRepo interface {
	// UpsertDocument inserts or replaces the row by id.
	UpsertDocument(ctx context.Context, db *gorm.DB, rec *domain.DocumentRecord) error

	// ListDocuments returns the owner's rows, newest first.
	ListDocuments(ctx context.Context, db *gorm.DB, ownerID string) ([]domain.DocumentRecord, error)

	// GetDocument fetches one row of the owner.
	GetDocument(ctx context.Context, db *gorm.DB, id, ownerID string) (*domain.DocumentRecord, error)

	// GetObjectPath returns the recorded payload path, or nil if none.
	GetObjectPath(ctx context.Context, db *gorm.DB, id, ownerID string) (*string, error)

	// DeleteDocument removes one row of the owner.
	DeleteDocument(ctx context.Context, db *gorm.DB, id, ownerID string) error

	// DeleteAllForOwner removes every row of the owner.
	DeleteAllForOwner(ctx context.Context, db *gorm.DB, ownerID string) (int64, error)

	// DocumentsStats returns the row count and latest update time.
	DocumentsStats(ctx context.Context, db *gorm.DB, ownerID string) (int64, *time.Time, error)
}

// DocumentSync is the only component that writes documents. It is bound to
// one Session; use WithSession to derive a copy for another user.
type DocumentSync struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the metadata store.
	Repo DocumentRepo
	// Store holds the payload bytes.
	Store objectstore.Store
	// Cache is the advisory list cache. Never nil.
	Cache cache.DocumentCache

	session Session
	now     func() time.Time
}

// NewDocumentSync wires a DocumentSync for session. A nil cache disables
// list caching.
func NewDocumentSync(session Session, db *gorm.DB, r DocumentRepo, store objectstore.Store, c cache.DocumentCache) *DocumentSync {
	if c == nil {
		c = cache.Noop{}
	}
	return &DocumentSync{
		DB:      db,
		Repo:    r,
		Store:   store,
		Cache:   c,
		session: session,
		now:     time.Now,
	}
}

// WithSession returns a copy of s acting for session.
func (s *DocumentSync) WithSession(session Session) *DocumentSync {
	cp := *s
	cp.session = session
	return &cp
}

// Session returns the session s acts for.
func (s *DocumentSync) Session() Session { return s.session }

func (s *DocumentSync) owner() (string, error) {
	if s.session.UserID == "" {
		return "", fmt.Errorf("%w: no session user", ErrAuth)
	}
	return s.session.UserID, nil
}

func (s *DocumentSync) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("user.id", s.session.UserID))
	return tracer.Start(ctx, "DocumentSync."+op, trace.WithAttributes(attrs...))
}

func finish(span trace.Span, op string, err error) {
	observability.EndSpan(span, err)
	observability.ObserveSync(op, observability.Outcome(err, ErrNotFound))
}

func validateDocument(d *domain.Document) error {
	return validation.ValidateStruct(d,
		validation.Field(&d.ID, validation.Required, validation.Length(1, 64), validation.Match(docIDPattern)),
		validation.Field(&d.Name, validation.Required, validation.RuneLength(1, 255)),
		validation.Field(&d.Size, validation.Min(0)),
	)
}

// Save persists doc. The payload is uploaded only when the row has no
// recorded path yet; later saves write metadata only. Zero upload date,
// type and size keep the stored values. The returned copy carries the
// recorded path.
func (s *DocumentSync) Save(ctx context.Context, doc *domain.Document) (out *domain.Document, err error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", ErrInvalidDocument)
	}
	ctx, span := s.start(ctx, "Save", attribute.String("document.id", doc.ID))
	defer func() { finish(span, "save", err) }()

	owner, err := s.owner()
	if err != nil {
		return nil, err
	}
	if verr := validateDocument(doc); verr != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, verr)
	}

	existing, err := s.Repo.GetDocument(ctx, s.DB, doc.ID, owner)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		existing = nil
	case err != nil:
		return nil, rowErr(err)
	}

	working := *doc
	var path *string
	if existing != nil {
		if existing.FilePath != nil && *existing.FilePath != "" {
			path = existing.FilePath
		}
		if working.UploadDate.IsZero() {
			working.UploadDate = existing.UploadDate
		}
	}
	if working.UploadDate.IsZero() {
		working.UploadDate = s.now().UTC()
	}

	if path == nil && working.Hydrated() {
		p, err := s.upload(ctx, owner, &working)
		if err != nil {
			return nil, err
		}
		path = &p
	}
	if existing != nil {
		if working.Type == "" {
			working.Type = existing.Type
		}
		if working.Size == 0 {
			working.Size = existing.Size
		}
	}

	rec, err := working.Record(owner, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if err := s.Repo.UpsertDocument(ctx, s.DB, &rec); err != nil {
		return nil, rowErr(err)
	}
	s.invalidate(ctx, owner)

	if path != nil {
		working.FilePath = *path
	}
	return &working, nil
}

// upload decodes the payload of d and writes it create-only. An object
// already at the deterministic path is adopted when its bytes match and
// overwritten otherwise, so an orphan left by ClearAll or a crash never
// shadows a new upload. Missing size and type are filled from the payload.
func (s *DocumentSync) upload(ctx context.Context, owner string, d *domain.Document) (string, error) {
	data, err := blob.Decode(d.Base64Data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if d.Type == "" {
		d.Type = payloadType(d.Base64Data, data)
	}
	if d.Size == 0 {
		d.Size = int64(len(data))
	}

	p := objectstore.ObjectPath(owner, d.ID)
	opts := objectstore.PutOptions{ContentType: d.Type}
	adopted := false
	err = s.Store.Put(ctx, p, data, opts)
	if errors.Is(err, objectstore.ErrAlreadyExists) {
		adopted, err = s.replaceStale(ctx, p, data, opts)
	}
	if err != nil {
		return "", objectErr(err)
	}
	observability.ObserveUpload(adopted)
	zerolog.Ctx(ctx).Debug().
		Str("document_id", d.ID).
		Str("path", p).
		Int("bytes", len(data)).
		Bool("adopted", adopted).
		Msg("document payload stored")
	return p, nil
}

// replaceStale resolves a create-only conflict at p. It reports true when
// the stored object already holds data.
func (s *DocumentSync) replaceStale(ctx context.Context, p string, data []byte, opts objectstore.PutOptions) (bool, error) {
	stored, err := s.Store.Get(ctx, p)
	switch {
	case err == nil && bytes.Equal(stored, data):
		return true, nil
	case err != nil && !errors.Is(err, objectstore.ErrNotFound):
		return false, err
	}
	zerolog.Ctx(ctx).Info().Str("path", p).Msg("replacing stale payload object")
	opts.Overwrite = true
	return false, s.Store.Put(ctx, p, data, opts)
}

func payloadType(dataURI string, data []byte) string {
	if mime, _ := blob.Split(dataURI); mime != "" && mime != blob.DefaultMimeType {
		return mime
	}
	return blob.Sniff(data)
}

// List returns the owner's documents, newest first, without payloads.
// Only the session user may list.
func (s *DocumentSync) List(ctx context.Context, ownerID string) (docs []domain.Document, err error) {
	ctx, span := s.start(ctx, "List")
	defer func() { finish(span, "list", err) }()

	owner, err := s.owner()
	if err != nil {
		return nil, err
	}
	if ownerID != owner {
		return nil, fmt.Errorf("%w: cannot list documents of another user", ErrAuth)
	}

	// the generation is read before the rows so a mutation in between
	// keeps this listing out of the cache
	lookup, cerr := s.Cache.GetList(ctx, owner)
	if cerr != nil {
		zerolog.Ctx(ctx).Warn().Err(cerr).Msg("document cache read failed")
	} else if lookup.Hit {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return lookup.Docs, nil
	}

	recs, err := s.Repo.ListDocuments(ctx, s.DB, owner)
	if err != nil {
		return nil, rowErr(err)
	}
	docs = make([]domain.Document, 0, len(recs))
	for _, rec := range recs {
		docs = append(docs, s.fromRecord(ctx, rec))
	}

	if cerr == nil {
		if err := s.Cache.SetList(ctx, owner, lookup.Generation, docs); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("document cache write failed")
		}
	}
	return docs, nil
}

// Version returns the row count and latest update of the session user's
// library, used for list ETags.
func (s *DocumentSync) Version(ctx context.Context) (int64, *time.Time, error) {
	owner, err := s.owner()
	if err != nil {
		return 0, nil, err
	}
	n, ts, err := s.Repo.DocumentsStats(ctx, s.DB, owner)
	if err != nil {
		return 0, nil, rowErr(err)
	}
	return n, ts, nil
}

// Get returns one document without its payload.
func (s *DocumentSync) Get(ctx context.Context, id string) (doc *domain.Document, err error) {
	ctx, span := s.start(ctx, "Get", attribute.String("document.id", id))
	defer func() { finish(span, "get", err) }()

	owner, err := s.owner()
	if err != nil {
		return nil, err
	}
	rec, err := s.Repo.GetDocument(ctx, s.DB, id, owner)
	if err != nil {
		return nil, rowErr(err)
	}
	d := s.fromRecord(ctx, *rec)
	return &d, nil
}

// Payload fetches the raw bytes of a document and its MIME type. A row
// without a recorded path, or a path whose object is gone, is ErrNotFound.
func (s *DocumentSync) Payload(ctx context.Context, id string) (data []byte, mimeType string, err error) {
	ctx, span := s.start(ctx, "Payload", attribute.String("document.id", id))
	defer func() { finish(span, "payload", err) }()

	owner, err := s.owner()
	if err != nil {
		return nil, "", err
	}
	rec, err := s.Repo.GetDocument(ctx, s.DB, id, owner)
	if err != nil {
		return nil, "", rowErr(err)
	}
	data, err = s.fetch(ctx, rec)
	if err != nil {
		return nil, "", err
	}
	return data, rec.Type, nil
}

// Hydrate returns the full document, payload included.
func (s *DocumentSync) Hydrate(ctx context.Context, id string) (doc *domain.Document, err error) {
	ctx, span := s.start(ctx, "Hydrate", attribute.String("document.id", id))
	defer func() { finish(span, "hydrate", err) }()

	owner, err := s.owner()
	if err != nil {
		return nil, err
	}
	rec, err := s.Repo.GetDocument(ctx, s.DB, id, owner)
	if err != nil {
		return nil, rowErr(err)
	}
	data, err := s.fetch(ctx, rec)
	if err != nil {
		return nil, err
	}
	d := s.fromRecord(ctx, *rec)
	d.Base64Data = blob.Encode(data, rec.Type)
	return &d, nil
}

func (s *DocumentSync) fetch(ctx context.Context, rec *domain.DocumentRecord) ([]byte, error) {
	if rec.FilePath == nil || *rec.FilePath == "" {
		return nil, fmt.Errorf("%w: document %s has no stored payload", ErrNotFound, rec.ID)
	}
	data, err := s.Store.Get(ctx, *rec.FilePath)
	if err != nil {
		return nil, objectErr(err)
	}
	return data, nil
}

// Delete removes the payload and then the row. A store fault aborts before
// the row is touched; a payload that is already gone is fine.
func (s *DocumentSync) Delete(ctx context.Context, id string) (err error) {
	ctx, span := s.start(ctx, "Delete", attribute.String("document.id", id))
	defer func() { finish(span, "delete", err) }()

	owner, err := s.owner()
	if err != nil {
		return err
	}
	path, err := s.Repo.GetObjectPath(ctx, s.DB, id, owner)
	if err != nil {
		return rowErr(err)
	}
	if path != nil {
		if err := s.Store.Delete(ctx, []string{*path}); err != nil {
			return objectErr(err)
		}
	}
	if err := s.Repo.DeleteDocument(ctx, s.DB, id, owner); err != nil {
		return rowErr(err)
	}
	s.invalidate(ctx, owner)
	return nil
}

// ClearAll deletes every row of ownerID. Payload objects are left in the
// store.
func (s *DocumentSync) ClearAll(ctx context.Context, ownerID string) (n int64, err error) {
	ctx, span := s.start(ctx, "ClearAll")
	defer func() { finish(span, "clear_all", err) }()

	owner, err := s.owner()
	if err != nil {
		return 0, err
	}
	if ownerID != owner {
		return 0, fmt.Errorf("%w: cannot clear documents of another user", ErrAuth)
	}
	n, err = s.Repo.DeleteAllForOwner(ctx, s.DB, owner)
	if err != nil {
		return 0, rowErr(err)
	}
	s.invalidate(ctx, owner)
	span.SetAttributes(attribute.Int64("documents.deleted", n))
	zerolog.Ctx(ctx).Info().
		Int64("rows", n).
		Msg("library cleared; payload objects left in store")
	return n, nil
}

// fromRecord rebuilds a dehydrated document. A corrupt app_data value
// degrades to an empty bag so the rest of the library still lists.
func (s *DocumentSync) fromRecord(ctx context.Context, rec domain.DocumentRecord) domain.Document {
	d, err := domain.DocumentFromRecord(rec)
	if err == nil {
		return d
	}
	zerolog.Ctx(ctx).Warn().Err(err).Str("document_id", rec.ID).Msg("unreadable app data; artifacts dropped")
	rec.AppData = nil
	d, _ = domain.DocumentFromRecord(rec)
	return d
}

func (s *DocumentSync) invalidate(ctx context.Context, owner string) {
	if err := s.Cache.Invalidate(ctx, owner); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("document cache invalidation failed")
	}
}
