// Package store defines the persistent entities the orchestrator shares
// with the reader service: prompts, their linked writings, and produced
// media artifacts.
package store

import (
	"strings"
	"time"
)

// Prompt status values. Transitions are monotone forward except
// failed -> processing, which operator tooling uses for manual retries.
const (
	StatusUnprocessed = "unprocessed"
	StatusProcessing  = "processing"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
)

// Artifact status values. Only meaningful for prompt types that produce
// external media.
const (
	ArtifactPending     = "pending"
	ArtifactProcessing  = "processing"
	ArtifactReady       = "ready"
	ArtifactError       = "error"
	ArtifactUnsupported = "unsupported"
)

// Structured prompt content types. These double as the content_type of the
// Writing rows holding the generated JSON bodies.
const (
	TypeImagePrompt  = "image_prompt"
	TypeLyricsPrompt = "lyrics_prompt"
)

// Kind is the routing variant a prompt_type string resolves to at the
// system boundary.
type Kind int

const (
	// KindText runs a plain text generation session.
	KindText Kind = iota
	// KindImagePrompt runs a session mandated to produce image JSON.
	KindImagePrompt
	// KindLyricsPrompt runs a session mandated to produce lyrics JSON.
	KindLyricsPrompt
	// KindMedia drives a media subprocess; the configured prompt-type map
	// decides which pipeline, or none (unsupported).
	KindMedia
)

// mediaTypes is the prompt_type subset routed to media synthesis.
var mediaTypes = map[string]struct{}{
	"image": {},
	"music": {},
	"audio": {},
	"voice": {},
}

// KindOf normalizes a prompt_type string into its routing variant.
func KindOf(promptType string) Kind {
	switch t := strings.ToLower(strings.TrimSpace(promptType)); {
	case t == TypeImagePrompt:
		return KindImagePrompt
	case t == TypeLyricsPrompt:
		return KindLyricsPrompt
	default:
		if _, ok := mediaTypes[t]; ok {
			return KindMedia
		}
		return KindText
	}
}

// IsStructured reports whether the kind requires a JSON body before media.
func (k Kind) IsStructured() bool {
	return k == KindImagePrompt || k == KindLyricsPrompt
}

// Prompt is a unit of work inserted by authors and drained by the
// orchestrator.
type Prompt struct {
	ID               int64
	PromptText       string
	PromptType       string
	Status           string
	ArtifactStatus   string // empty when the column is NULL
	Priority         int
	Metadata         string // opaque JSON blob of hints
	CreatedAt        time.Time
	ProcessedAt      *time.Time
	CompletedAt      *time.Time
	OutputReference  *int64
	ArtifactMetadata string
	ErrorMessage     string
}

// Kind returns the routing variant for this prompt's type.
func (p Prompt) Kind() Kind {
	return KindOf(p.PromptType)
}

// LinkedWriting is a writing row joined through prompt_writings, in
// writing_order.
type LinkedWriting struct {
	ID          int64
	Order       int
	Title       string
	ContentType string
	Content     string
}

// MediaPrompt is a completed structured prompt awaiting media synthesis,
// carried with its ordered writings.
type MediaPrompt struct {
	Prompt
	Writings []LinkedWriting
}

// Writing is a text artifact row. The writings table is owned by the sibling
// service; the orchestrator only inserts rows and links them.
type Writing struct {
	ID                int64
	Title             string
	ContentType       string
	Content           string
	OriginalFilename  string
	WordCount         int
	CharacterCount    int
	LineCount         int
	Mood              string
	ExplicitContent   bool
	PublicationStatus string
	Notes             string
	Tags              []string // populated on Save, not on reads
	SourcePromptID    *int64
	CreatedDate       time.Time
}

// Artifact is a produced media file row in prompt_artifacts.
type Artifact struct {
	ID           int64
	PromptID     int64
	ArtifactType string // image or audio
	FilePath     string // POSIX, relative to the media output root
	PreviewPath  string // equal to FilePath for images, empty for audio
	Metadata     string // JSON: script, duration, caller-supplied fields
	CreatedAt    time.Time
}

// StatusUpdate carries the optional fields of an update_status call. Nil
// pointers leave the corresponding column untouched, except error_message,
// which is cleared on any transition away from failed unless a new message
// is supplied.
type StatusUpdate struct {
	Status           string
	ErrorMessage     *string
	ArtifactStatus   *string
	ArtifactMetadata *string
}

// String returns a pointer to s, for StatusUpdate literals.
func String(s string) *string { return &s }

// SaveWritingRequest carries the caller-supplied fields of a writing save.
// Empty fields are filled in from content analysis.
type SaveWritingRequest struct {
	Content           string
	Title             string
	ContentType       string
	Tags              []string
	PublicationStatus string
	Notes             string
}

// WritingSummary is one row of a writings search result.
type WritingSummary struct {
	ID                int64
	Title             string
	ContentType       string
	WordCount         int
	PublicationStatus string
	Preview           string
}

// WritingSearch filters a writings search. Zero values mean "no filter".
type WritingSearch struct {
	Query       string
	ContentType string
	Limit       int
}

// TypeCount aggregates writings per content type.
type TypeCount struct {
	ContentType string
	Count       int
	Explicit    int
}

// StatusCount aggregates writings per publication status.
type StatusCount struct {
	Status string
	Count  int
}

// Stats summarizes the writings table for the get_stats agent tool.
type Stats struct {
	TotalWritings int
	TotalWords    int
	AverageWords  float64
	ByContentType []TypeCount
	ByStatus      []StatusCount
}
