package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnalyzeContent_TitleExtraction(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "bold title marker",
			content: "**Title: The Last Ferry**\n\nIt left at midnight.",
			want:    "The Last Ferry",
		},
		{
			name:    "plain title marker",
			content: "Title: Quiet Hours\n\nNothing moved in the house.",
			want:    "Quiet Hours",
		},
		{
			name:    "bold heading",
			content: "**Morning Fog**\n\nThe harbor vanished by six.",
			want:    "Morning Fog",
		},
		{
			name:    "chapter heading",
			content: "Chapter 3: The Long Walk Home\n\nHe counted streetlights.",
			want:    "The Long Walk Home",
		},
		{
			name:    "vocative opening",
			content: "O Captain, the shore is gone.",
			want:    "Captain",
		},
		{
			name:    "first line fallback",
			content: "a short untitled scrap\nwith a second line",
			want:    "a short untitled scrap",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := AnalyzeContent(tt.content)
			require.Contains(t, analysis.Title, tt.want)
		})
	}
}

func TestAnalyzeContent_GeneratedTitleForLongFirstLine(t *testing.T) {
	content := strings.Repeat("word ", 40) // first line over 100 chars, no markers
	analysis := AnalyzeContent(content)
	require.True(t, strings.HasPrefix(analysis.Title, "AI Generated "))
}

func TestAnalyzeContent_ExplicitThreshold(t *testing.T) {
	require.False(t, AnalyzeContent("fuck this, fuck that").Explicit,
		"two hits stay below the threshold")
	require.True(t, AnalyzeContent("fuck this, fuck that, fuck everything").Explicit)
}

func TestAnalyzeContent_DetectsStructuredPrompts(t *testing.T) {
	image := `{"prompt": "a foggy pier", "style_tags": ["noir"], "technical_params": {}}`
	analysis := AnalyzeContent(image)
	require.Equal(t, TypeImagePrompt, analysis.ContentType)
	require.Equal(t, 8, analysis.QualityScore)

	lyrics := `{"title": "Down the Wire", "structure": "verse-chorus-verse", "mood": "wistful"}`
	analysis = AnalyzeContent(lyrics)
	require.Equal(t, TypeLyricsPrompt, analysis.ContentType)
	require.Equal(t, 8, analysis.QualityScore)
}

func TestAnalyzeContent_ContentTypes(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "dialogue from quote density",
			content: `"Where?" "Here." "When?" "Now." "Why?" "Because."`,
			want:    "dialogue",
		},
		{
			name:    "prose from chapter plus length",
			content: "Chapter 1: Arrival\n" + strings.Repeat("the road went on and on past farms ", 20),
			want:    "prose",
		},
		{
			name:    "poetry from vocative opening",
			content: "O rivers, carry what we could not.",
			want:    "poetry",
		},
		{
			name:    "song from section markers",
			content: "[Verse]\nwheels on gravel\n[Chorus]\ncome home, come home",
			want:    "song",
		},
		{
			name:    "code from keywords",
			content: "def main():\n    return 0",
			want:    "code",
		},
		{
			name:    "poetry from short line shape",
			content: "salt wind\nbent grass\ngull cry\nempty pier\nlow tide",
			want:    "poetry",
		},
		{
			name:    "fragment fallback",
			content: "just one stray thought",
			want:    "fragment",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, AnalyzeContent(tt.content).ContentType)
		})
	}
}

func TestAnalyzeContent_PlatformTags(t *testing.T) {
	short := AnalyzeContent("a tiny note")
	require.Contains(t, short.Tags, "twitter_ready")
	require.NotContains(t, short.Tags, "instagram_ready", "length buckets are exclusive")

	medium := AnalyzeContent(strings.Repeat("letters and more letters ", 20))
	require.Contains(t, medium.Tags, "instagram_ready")
	require.NotContains(t, medium.Tags, "twitter_ready")

	long := AnalyzeContent(strings.Repeat("carry on regardless ", 60))
	require.Contains(t, long.Tags, "blog_ready")
}

func TestAnalyzeContent_ExplicitTags(t *testing.T) {
	analysis := AnalyzeContent("fuck the dark, fuck the cold, fuck the silence")
	require.Contains(t, analysis.Tags, "explicit_content")
	require.Contains(t, analysis.Tags, "nsfw")
	require.Equal(t, "content_warning", analysis.TagTypes["nsfw"])
	require.Equal(t, "erotica", analysis.ContentType)
}

func TestAnalyzeContent_QualityBumps(t *testing.T) {
	// 60 words in the 50-500 band adds one on top of the fragment base.
	content := strings.Repeat("steady words keep arriving here ", 12)
	analysis := AnalyzeContent(content)
	require.Equal(t, 6, analysis.QualityScore)

	// Over 1000 words adds two, plus blog_ready pushes the tag count up.
	analysis = AnalyzeContent(strings.Repeat("many more words flow past the margin ", 150))
	require.GreaterOrEqual(t, analysis.QualityScore, 7)
}

func TestAnalyzeContent_MoodDetection(t *testing.T) {
	analysis := AnalyzeContent("her heart, a kiss, an embrace, love written twice: love")
	require.Equal(t, "romantic", analysis.Mood)

	require.Empty(t, AnalyzeContent("inventory list: bolts, washers").Mood,
		"no keywords means no mood")
}

func TestAnalyzeContent_TagLimit(t *testing.T) {
	content := "said asked replied chapter story verse chorus bridge " +
		"interface code computer forest river mountain ocean wind " +
		"society social commentary critique " +
		"fuck fuck fuck " + strings.Repeat("filler ", 120)
	analysis := AnalyzeContent(content)
	require.LessOrEqual(t, len(analysis.Tags), 10)

	seen := make(map[string]bool)
	for _, tag := range analysis.Tags {
		require.False(t, seen[tag], "tag %q duplicated", tag)
		seen[tag] = true
	}
}

func TestCountMetrics(t *testing.T) {
	words, characters, lines := CountMetrics("one two\n\n three\n")
	require.Equal(t, 3, words)
	require.Equal(t, 16, characters)
	require.Equal(t, 2, lines, "blank lines do not count")

	words, characters, lines = CountMetrics("")
	require.Zero(t, words)
	require.Zero(t, characters)
	require.Zero(t, lines)
}

func TestExcerptTitle(t *testing.T) {
	got := ExcerptTitle("Image Prompt: ", "a very long prompt about a lighthouse on a cliff at dusk with gulls", 50)
	require.True(t, strings.HasPrefix(got, "Image Prompt: "))
	require.True(t, strings.HasSuffix(got, "..."))
	require.Equal(t, "Image Prompt: a very long prompt about a lighthouse on a cliff a...", got)

	require.Equal(t, "Lyrics: short...", ExcerptTitle("Lyrics: ", "short", 50))
}
