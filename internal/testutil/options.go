package testutil

import (
	"time"

	"github.com/dmcsvoices/creative-ai-agents/internal/store"
)

// ArtifactData holds one artifact row to be inserted for a prompt.
type ArtifactData struct {
	Type string
	Path string
}

// Artifact creates an ArtifactData with the given type and relative path.
func Artifact(artifactType, path string) ArtifactData {
	return ArtifactData{Type: artifactType, Path: path}
}

// promptData holds all data for a prompt to be inserted.
type promptData struct {
	key              string
	text             string
	promptType       string
	status           string
	priority         int
	metadata         string
	errorMessage     string
	artifactStatus   string
	artifactMetadata string
	createdAt        *time.Time
	writingKeys      []string
	artifacts        []ArtifactData
}

// defaultPrompt returns a promptData with queue defaults.
func defaultPrompt(key, text string) promptData {
	return promptData{
		key:        key,
		text:       text,
		promptType: "text",
		status:     store.StatusUnprocessed,
		priority:   5,
	}
}

// PromptOption configures a prompt during builder setup.
type PromptOption func(*promptData)

// Type sets the prompt type (text, poetry, image_prompt, lyrics_prompt, ...).
func Type(promptType string) PromptOption {
	return func(p *promptData) { p.promptType = promptType }
}

// Status sets the queue status. Processing rows get processed_at stamped,
// completed and failed rows get completed_at.
func Status(status string) PromptOption {
	return func(p *promptData) { p.status = status }
}

// Priority sets the prompt priority. Lower values drain first.
func Priority(priority int) PromptOption {
	return func(p *promptData) { p.priority = priority }
}

// Metadata sets the metadata JSON blob.
func Metadata(raw string) PromptOption {
	return func(p *promptData) { p.metadata = raw }
}

// ErrorMessage sets the recorded failure message.
func ErrorMessage(msg string) PromptOption {
	return func(p *promptData) { p.errorMessage = msg }
}

// ArtifactStatus sets the media state (pending, processing, ready, error,
// unsupported).
func ArtifactStatus(status string) PromptOption {
	return func(p *promptData) { p.artifactStatus = status }
}

// ArtifactMetadata sets the media run summary JSON.
func ArtifactMetadata(raw string) PromptOption {
	return func(p *promptData) { p.artifactMetadata = raw }
}

// CreatedAt overrides the insertion timestamp, for ordering tests.
func CreatedAt(t time.Time) PromptOption {
	return func(p *promptData) { p.createdAt = &t }
}

// Writings links previously declared writings to the prompt, in order
// (nested option).
func Writings(keys ...string) PromptOption {
	return func(p *promptData) { p.writingKeys = append(p.writingKeys, keys...) }
}

// Artifacts attaches artifact rows to the prompt (nested option).
func Artifacts(artifacts ...ArtifactData) PromptOption {
	return func(p *promptData) { p.artifacts = append(p.artifacts, artifacts...) }
}

// writingData holds all data for a writing to be inserted.
type writingData struct {
	key               string
	content           string
	title             string
	contentType       string
	tags              []string
	notes             string
	publicationStatus string
}

// defaultWriting returns a writingData with sensible defaults.
func defaultWriting(key, content string) writingData {
	return writingData{
		key:         key,
		content:     content,
		title:       key, // Default title is the key
		contentType: "poetry",
	}
}

// WritingOption configures a writing during builder setup.
type WritingOption func(*writingData)

// Title sets the writing title.
func Title(title string) WritingOption {
	return func(w *writingData) { w.title = title }
}

// ContentType sets the writing content type.
func ContentType(contentType string) WritingOption {
	return func(w *writingData) { w.contentType = contentType }
}

// Tags adds tags to the writing (nested option).
func Tags(tags ...string) WritingOption {
	return func(w *writingData) { w.tags = append(w.tags, tags...) }
}

// Notes sets the writing notes.
func Notes(notes string) WritingOption {
	return func(w *writingData) { w.notes = notes }
}

// PublicationStatus sets the publication status.
func PublicationStatus(status string) WritingOption {
	return func(w *writingData) { w.publicationStatus = status }
}
