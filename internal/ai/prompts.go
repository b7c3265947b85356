package ai

import (
	"fmt"
	"sort"
	"strings"

	"github.com/frandy73/Lumina/internal/domain"
)

const systemPrompt = "You are Lumina, a patient study assistant. Base every answer strictly on the attached document. " +
	"When the document does not contain the answer, say so instead of guessing."

// Doc is the document a prompt is about.
type Doc struct {
	DataURI  string
	Filename string
}

func (d Doc) request(instruction string) Request {
	return Request{DataURI: d.DataURI, Filename: d.Filename, System: systemPrompt, Instruction: instruction}
}

func object(props map[string]any) map[string]any {
	required := make([]string, 0, len(props))
	for k := range props {
		required = append(required, k)
	}
	sort.Strings(required)
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func str() map[string]any { return map[string]any{"type": "string"} }

func arrayOf(items map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": items}
}

var summaryStyleHints = map[string]string{
	domain.SummarySimple:   "Write a short, plain-language summary a newcomer can follow, in a few paragraphs.",
	domain.SummaryDetailed: "Write a thorough summary covering every section, key arguments and supporting evidence.",
	domain.SummaryBullets:  "Write the summary as a concise bullet list of the key points, grouped by theme.",
	domain.SummaryAcademic: "Write a formal academic abstract followed by the main findings and their limitations.",
}

// SummaryPrompt asks for a summary in the given style and language.
func SummaryPrompt(d Doc, style, languageName string) Request {
	hint, ok := summaryStyleHints[style]
	if !ok {
		hint = summaryStyleHints[domain.SummarySimple]
	}
	return d.request(fmt.Sprintf("%s Write it in %s. Use Markdown.", hint, languageName))
}

// ChatReply is the structured answer of a chat turn.
type ChatReply struct {
	Answer             string   `json:"answer"`
	SuggestedQuestions []string `json:"suggestedQuestions"`
}

var chatSchema = Schema{Name: "chat_reply", Definition: object(map[string]any{
	"answer":             str(),
	"suggestedQuestions": arrayOf(str()),
})}

// ChatPrompt asks the next assistant turn given the transcript so far.
func ChatPrompt(d Doc, history []domain.ChatMessage, question string) (Request, Schema) {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, m := range history {
			b.WriteString(m.Role)
			b.WriteString(": ")
			b.WriteString(m.Text)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer the question in the language it was asked, then suggest up to three short follow-up questions.")
	return d.request(b.String()), chatSchema
}

// MindMapResult wraps the generated tree.
type MindMapResult struct {
	Root domain.MindMapNode `json:"root"`
}

var mindMapSchema = Schema{Name: "mind_map", Definition: map[string]any{
	"type": "object",
	"$defs": map[string]any{
		"node": object(map[string]any{
			"label":    str(),
			"children": arrayOf(map[string]any{"$ref": "#/$defs/node"}),
		}),
	},
	"properties":           map[string]any{"root": map[string]any{"$ref": "#/$defs/node"}},
	"required":             []string{"root"},
	"additionalProperties": false,
}}

// MindMapPrompt asks for a hierarchical mind map of the document.
func MindMapPrompt(d Doc) (Request, Schema) {
	return d.request("Build a mind map of the document: one root node named after its main subject, " +
		"3 to 7 main branches, and at most 3 levels below the root. Labels are short noun phrases."), mindMapSchema
}

// AnalysisPrompt asks for a strategic analysis in Markdown.
func AnalysisPrompt(d Doc) Request {
	return d.request("Write a strategic analysis of the document in Markdown: its purpose, core thesis, " +
		"strengths, weaknesses, implications and open questions.")
}

// CitationsResult wraps the extracted quotes.
type CitationsResult struct {
	Citations []domain.Citation `json:"citations"`
}

var citationsSchema = Schema{Name: "key_citations", Definition: object(map[string]any{
	"citations": arrayOf(object(map[string]any{
		"quote":     str(),
		"page":      map[string]any{"type": "integer"},
		"relevance": str(),
	})),
})}

// CitationsPrompt asks for the most important verbatim quotes.
func CitationsPrompt(d Doc) (Request, Schema) {
	return d.request("Extract the 5 to 10 most important verbatim quotes of the document with their page " +
		"number (0 when unknown) and one sentence explaining why each matters."), citationsSchema
}

// StudyGuidePrompt asks for a Markdown study guide.
func StudyGuidePrompt(d Doc) Request {
	return d.request("Write a study guide in Markdown: learning objectives, key concepts with definitions, " +
		"a section-by-section outline, and review questions.")
}

// FAQResult wraps generated question/answer pairs.
type FAQResult struct {
	Items []domain.FAQItem `json:"items"`
}

var faqSchema = Schema{Name: "faq", Definition: object(map[string]any{
	"items": arrayOf(object(map[string]any{"question": str(), "answer": str()})),
})}

// FAQPrompt asks for the questions a reader is most likely to have.
func FAQPrompt(d Doc) (Request, Schema) {
	return d.request("Write 8 to 12 frequently asked questions a student would have about the document, " +
		"each with a concise answer."), faqSchema
}

// FlashcardsResult wraps generated cards.
type FlashcardsResult struct {
	Cards []domain.Flashcard `json:"cards"`
}

var flashcardsSchema = Schema{Name: "flashcards", Definition: object(map[string]any{
	"cards": arrayOf(object(map[string]any{"front": str(), "back": str()})),
})}

// FlashcardsPrompt asks for count flashcards.
func FlashcardsPrompt(d Doc, count int) (Request, Schema) {
	return d.request(fmt.Sprintf("Create %d flashcards covering the key facts and concepts of the document. "+
		"The front is a question or term, the back a short answer or definition.", count)), flashcardsSchema
}

// QuizResult wraps generated questions.
type QuizResult struct {
	Questions []domain.QuizQuestion `json:"questions"`
}

var quizSchema = Schema{Name: "quiz", Definition: object(map[string]any{
	"questions": arrayOf(object(map[string]any{
		"question": str(),
		"options": map[string]any{
			"type": "array", "items": str(), "minItems": 4, "maxItems": 4,
		},
		"correctIndex": map[string]any{"type": "integer"},
		"explanation":  str(),
	})),
})}

// QuizPrompt asks for count multiple-choice questions with four options.
func QuizPrompt(d Doc, count int) (Request, Schema) {
	return d.request(fmt.Sprintf("Create %d multiple-choice questions testing understanding of the document. "+
		"Each has exactly 4 options, the zero-based index of the correct one, and a short explanation.", count)), quizSchema
}
