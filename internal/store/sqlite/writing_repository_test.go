package sqlite

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmcsvoices/creative-ai-agents/internal/store"
)

func TestWritingRepository_Save_UsesProvidedFields(t *testing.T) {
	db := setupTestDB(t)

	writing, err := db.Writings().Save(store.SaveWritingRequest{
		Content:           "The river ran silver under the moon.",
		Title:             "River Song",
		ContentType:       "poetry",
		Tags:              []string{"nature"},
		PublicationStatus: "draft",
		Notes:             "hand picked",
	})
	require.NoError(t, err)
	require.NotZero(t, writing.ID)
	require.Equal(t, "River Song", writing.Title)
	require.Equal(t, "poetry", writing.ContentType)
	require.Equal(t, "draft", writing.PublicationStatus)
	require.True(t, strings.HasPrefix(writing.Notes, "AI Generated on "))
	require.Contains(t, writing.Notes, "hand picked")
	require.True(t, strings.HasPrefix(writing.OriginalFilename, "ai_generated_"))
	require.True(t, strings.HasSuffix(writing.OriginalFilename, ".txt"))

	stored, err := db.Writings().Get(writing.ID)
	require.NoError(t, err)
	require.Equal(t, writing.Title, stored.Title)
	require.Equal(t, writing.Content, stored.Content)
	require.Equal(t, writing.WordCount, stored.WordCount)
}

func TestWritingRepository_Save_FallsBackToAnalysis(t *testing.T) {
	db := setupTestDB(t)

	content := "**Title: Midnight Garden**\n\nShe walked the rows of sleeping flowers alone."
	writing, err := db.Writings().Save(store.SaveWritingRequest{
		Content:           content,
		PublicationStatus: "draft",
	})
	require.NoError(t, err)
	require.Contains(t, writing.Title, "Midnight Garden")
	require.NotEmpty(t, writing.ContentType)

	words, characters, lines := store.CountMetrics(content)
	require.Equal(t, words, writing.WordCount)
	require.Equal(t, characters, writing.CharacterCount)
	require.Equal(t, lines, writing.LineCount)
}

func TestWritingRepository_Save_PromotesStructuredDrafts(t *testing.T) {
	db := setupTestDB(t)

	content := `{
  "prompt": "a watercolor fox in tall grass",
  "negative_prompt": "blurry",
  "style_tags": ["watercolor"],
  "composition": {"subject": "fox", "background": "grass", "lighting": "dawn"}
}`
	writing, err := db.Writings().Save(store.SaveWritingRequest{
		Content:           content,
		Title:             "Image Prompt: a watercolor fox...",
		ContentType:       store.TypeImagePrompt,
		PublicationStatus: "draft",
	})
	require.NoError(t, err)
	require.Equal(t, "ready", writing.PublicationStatus,
		"high quality drafts are promoted to ready")
}

func TestWritingRepository_Save_MarksExplicitContent(t *testing.T) {
	db := setupTestDB(t)

	content := "fuck the fences, fuck the fearful, fuck every closed door."
	writing, err := db.Writings().Save(store.SaveWritingRequest{
		Content:           content,
		Title:             "Door Slam",
		ContentType:       "poetry",
		PublicationStatus: "ready",
	})
	require.NoError(t, err)
	require.True(t, writing.ExplicitContent)
	require.Equal(t, "explicit", writing.PublicationStatus,
		"explicit detection overrides the requested status")
}

func TestWritingRepository_Save_CreatesTags(t *testing.T) {
	db := setupTestDB(t)

	first, err := db.Writings().Save(store.SaveWritingRequest{
		Content:           "wind over the mountain, river in the forest",
		Title:             "Out There",
		ContentType:       "poetry",
		Tags:              []string{"nature", "short"},
		PublicationStatus: "draft",
	})
	require.NoError(t, err)

	// A second writing reusing a tag must not duplicate the tags row.
	_, err = db.Writings().Save(store.SaveWritingRequest{
		Content:           "ocean wind again",
		Title:             "Out There II",
		ContentType:       "poetry",
		Tags:              []string{"nature"},
		PublicationStatus: "draft",
	})
	require.NoError(t, err)

	var tagCount int
	err = db.Connection().QueryRow(`SELECT COUNT(*) FROM tags WHERE name = 'nature'`).Scan(&tagCount)
	require.NoError(t, err)
	require.Equal(t, 1, tagCount)

	var linked int
	err = db.Connection().QueryRow(
		`SELECT COUNT(*) FROM writing_tags WHERE writing_id = ?`, first.ID).Scan(&linked)
	require.NoError(t, err)
	require.Equal(t, 2, linked)
}

func TestWritingRepository_RecentToolWritings(t *testing.T) {
	db := setupTestDB(t)

	w1, err := db.Writings().Save(store.SaveWritingRequest{
		Content:           `{"prompt": "x"}`,
		Title:             "Image Prompt: x",
		ContentType:       store.TypeImagePrompt,
		PublicationStatus: "draft",
		Notes:             "Structured JSON image prompt for offline media generation (Prompt #42). Generated by poet.",
	})
	require.NoError(t, err)
	w2, err := db.Writings().Save(store.SaveWritingRequest{
		Content:           `{"prompt": "y"}`,
		Title:             "Image Prompt: y",
		ContentType:       store.TypeImagePrompt,
		PublicationStatus: "draft",
		Notes:             "Structured JSON image prompt for offline media generation (Prompt #42). Generated by poet.",
	})
	require.NoError(t, err)

	// Same window, different prompt.
	_, err = db.Writings().Save(store.SaveWritingRequest{
		Content:           `{"prompt": "z"}`,
		Title:             "Image Prompt: z",
		ContentType:       store.TypeImagePrompt,
		PublicationStatus: "draft",
		Notes:             "Structured JSON image prompt for offline media generation (Prompt #7). Generated by poet.",
	})
	require.NoError(t, err)

	// Same prompt, wrong content type.
	_, err = db.Writings().Save(store.SaveWritingRequest{
		Content:           "plain text for the same prompt",
		Title:             "aside",
		ContentType:       "fragment",
		PublicationStatus: "draft",
		Notes:             "Generated from prompt #42.",
	})
	require.NoError(t, err)

	ids, err := db.Writings().RecentToolWritings(42, store.TypeImagePrompt, 20)
	require.NoError(t, err)
	require.Equal(t, []int64{w1.ID, w2.ID}, ids, "oldest first, only matching prompt and type")

	// Age the first writing out of the window.
	_, err = db.Connection().Exec(
		`UPDATE writings SET created_date = datetime('now', '-45 minutes') WHERE id = ?`, w1.ID)
	require.NoError(t, err)

	ids, err = db.Writings().RecentToolWritings(42, store.TypeImagePrompt, 20)
	require.NoError(t, err)
	require.Equal(t, []int64{w2.ID}, ids, "writings older than the window are excluded")
}

func TestWritingRepository_Search(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.Writings().Save(store.SaveWritingRequest{
		Content:           "The lighthouse keeper counted waves until dawn.",
		Title:             "Lighthouse",
		ContentType:       "prose",
		PublicationStatus: "draft",
	})
	require.NoError(t, err)
	_, err = db.Writings().Save(store.SaveWritingRequest{
		Content:           "Static hums in the radio room.",
		Title:             "Radio Room",
		ContentType:       "poetry",
		PublicationStatus: "draft",
	})
	require.NoError(t, err)

	results, err := db.Writings().Search(store.WritingSearch{Query: "lighthouse"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "Lighthouse", results[0].Title)
	require.NotEmpty(t, results[0].Preview)

	results, err = db.Writings().Search(store.WritingSearch{ContentType: "poetry"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "Radio Room", results[0].Title)

	results, err = db.Writings().Search(store.WritingSearch{})
	require.NoError(t, err)
	require.Len(t, results, 2, "empty search browses the catalog")

	results, err = db.Writings().Search(store.WritingSearch{Query: "nothing matches this"})
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestWritingRepository_Stats(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.Writings().Save(store.SaveWritingRequest{
		Content:           "one two three four",
		Title:             "Four Words",
		ContentType:       "poetry",
		PublicationStatus: "draft",
	})
	require.NoError(t, err)
	_, err = db.Writings().Save(store.SaveWritingRequest{
		Content:           "five six seven eight nine ten",
		Title:             "Six Words",
		ContentType:       "poetry",
		PublicationStatus: "ready",
	})
	require.NoError(t, err)
	_, err = db.Writings().Save(store.SaveWritingRequest{
		Content:           "a single prose line",
		Title:             "Prose Bit",
		ContentType:       "prose",
		PublicationStatus: "draft",
	})
	require.NoError(t, err)

	stats, err := db.Writings().Stats()
	require.NoError(t, err)
	require.Equal(t, 3, stats.TotalWritings)
	require.Equal(t, 14, stats.TotalWords)
	require.InDelta(t, 14.0/3.0, stats.AverageWords, 0.01)

	require.Len(t, stats.ByContentType, 2)
	require.Equal(t, "poetry", stats.ByContentType[0].ContentType, "most common type first")
	require.Equal(t, 2, stats.ByContentType[0].Count)

	statuses := make(map[string]int64)
	for _, sc := range stats.ByStatus {
		statuses[sc.Status] = int64(sc.Count)
	}
	require.Equal(t, int64(2), statuses["draft"])
	require.Equal(t, int64(1), statuses["ready"])
}

func TestWritingRepository_Stats_EmptyCatalog(t *testing.T) {
	db := setupTestDB(t)

	stats, err := db.Writings().Stats()
	require.NoError(t, err)
	require.Zero(t, stats.TotalWritings)
	require.Zero(t, stats.TotalWords)
	require.Empty(t, stats.ByContentType)
}
