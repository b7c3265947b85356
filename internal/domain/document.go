package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// AppDataVersion is written into every non-empty AppData bag. Readers accept
// any version: all fields are optional and unknown fields are ignored.
const AppDataVersion = 1

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Summary styles accepted by the summary generator.
const (
	SummarySimple   = "simple"
	SummaryDetailed = "detailed"
	SummaryBullets  = "bullets"
	SummaryAcademic = "academic"
)

// SummaryStyles lists the accepted summary styles.
var SummaryStyles = []string{SummarySimple, SummaryDetailed, SummaryBullets, SummaryAcademic}

// AppData is the bag of derived artifacts and user edits stored in the
// app_data column. Every field is optional.
type AppData struct {
	SchemaVersion     int           `json:"schemaVersion,omitempty"`
	Summary           string        `json:"summary,omitempty"`
	SummaryType       string        `json:"summaryType,omitempty"`
	SummaryLang       string        `json:"summaryLang,omitempty"`
	ChatHistory       []ChatMessage `json:"chatHistory,omitempty"`
	MindMap           *MindMapNode  `json:"mindMap,omitempty"`
	StrategicAnalysis string        `json:"strategicAnalysis,omitempty"`
	KeyCitations      []Citation    `json:"keyCitations,omitempty"`
	StudyGuide        string        `json:"studyGuide,omitempty"`
	FAQ               []FAQItem     `json:"faq,omitempty"`
	UserNotes         string        `json:"userNotes,omitempty"`
}

// IsZero reports whether the bag carries no artifact at all. The schema
// version alone does not count.
func (a AppData) IsZero() bool {
	return a.Summary == "" && a.SummaryType == "" && a.SummaryLang == "" &&
		len(a.ChatHistory) == 0 && a.MindMap == nil && a.StrategicAnalysis == "" &&
		len(a.KeyCitations) == 0 && a.StudyGuide == "" && len(a.FAQ) == 0 && a.UserNotes == ""
}

// HasInsights reports whether the mind map, analysis and citations batch has
// been generated.
func (a AppData) HasInsights() bool {
	return a.MindMap != nil && a.StrategicAnalysis != "" && len(a.KeyCitations) > 0
}

// ChatMessage is one entry of a document's chat transcript.
type ChatMessage struct {
	ID                 string    `json:"id,omitempty"`
	Role               string    `json:"role"`
	Text               string    `json:"text"`
	Timestamp          time.Time `json:"timestamp"`
	SuggestedQuestions []string  `json:"suggestedQuestions,omitempty"`
	IsLiked            bool      `json:"isLiked,omitempty"`
	IsDisliked         bool      `json:"isDisliked,omitempty"`
}

// MindMapNode is a node of the generated mind map tree.
type MindMapNode struct {
	Label    string        `json:"label"`
	Children []MindMapNode `json:"children,omitempty"`
}

// Citation is a notable quote extracted from the document.
type Citation struct {
	Quote     string `json:"quote"`
	Page      int    `json:"page,omitempty"`
	Relevance string `json:"relevance,omitempty"`
}

// FAQItem is a generated question/answer pair.
type FAQItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Flashcard is generated per study session and never persisted.
type Flashcard struct {
	Front    string `json:"front"`
	Back     string `json:"back"`
	Favorite bool   `json:"favorite"`
}

// QuizQuestion is generated per quiz session and never persisted.
type QuizQuestion struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation"`
}

// Document is the aggregate exchanged with clients: file facts, the
// optional payload and the flattened AppData fields. An empty Base64Data
// means "not hydrated", not "empty file".
type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Type       string    `json:"type"`
	UploadDate time.Time `json:"uploadDate"`
	FilePath   string    `json:"filePath,omitempty"`
	Base64Data string    `json:"base64Data,omitempty"`
	AppData
}

// Hydrated reports whether the payload is loaded.
func (d Document) Hydrated() bool { return d.Base64Data != "" }

// Dehydrated returns a copy without the payload.
func (d Document) Dehydrated() Document {
	d.Base64Data = ""
	return d
}

// EncodeAppData serializes a for the app_data column. An empty bag is
// stored as "{}".
func EncodeAppData(a AppData) (datatypes.JSON, error) {
	if a.IsZero() {
		return datatypes.JSON(`{}`), nil
	}
	a.SchemaVersion = AppDataVersion
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode app data: %w", err)
	}
	return datatypes.JSON(b), nil
}

// DecodeAppData parses an app_data value. NULL and empty values decode to
// the zero bag.
func DecodeAppData(raw datatypes.JSON) (AppData, error) {
	var a AppData
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return a, nil
	}
	if err := json.Unmarshal(trimmed, &a); err != nil {
		return AppData{}, fmt.Errorf("decode app data: %w", err)
	}
	return a, nil
}

// DocumentFromRecord rebuilds a dehydrated Document from its metadata row.
func DocumentFromRecord(rec DocumentRecord) (Document, error) {
	app, err := DecodeAppData(rec.AppData)
	if err != nil {
		return Document{}, fmt.Errorf("document %s: %w", rec.ID, err)
	}
	app.SchemaVersion = 0
	doc := Document{
		ID:         rec.ID,
		Name:       rec.Name,
		Size:       rec.Size,
		Type:       rec.Type,
		UploadDate: rec.UploadDate,
		AppData:    app,
	}
	if rec.FilePath != nil {
		doc.FilePath = *rec.FilePath
	}
	return doc, nil
}

// Record builds the metadata row for d. The payload is dropped; path is the
// confirmed object path or nil.
func (d Document) Record(ownerID string, path *string) (DocumentRecord, error) {
	app, err := EncodeAppData(d.AppData)
	if err != nil {
		return DocumentRecord{}, err
	}
	return DocumentRecord{
		ID:         d.ID,
		OwnerID:    ownerID,
		Name:       d.Name,
		Size:       d.Size,
		Type:       d.Type,
		UploadDate: d.UploadDate,
		FilePath:   path,
		AppData:    app,
	}, nil
}
