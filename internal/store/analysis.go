package store

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// Analysis holds the properties detected from a piece of content. Callers use
// it to fill writing fields the agents did not supply explicitly.
type Analysis struct {
	Title        string
	ContentType  string
	Tags         []string
	TagTypes     map[string]string
	Mood         string
	Explicit     bool
	QualityScore int
	Confidence   float64
}

var titlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\*\*Title:\s*["']?([^"'\n]+)["']?`),
	regexp.MustCompile(`(?i)Title:\s*["']?([^"'\n]+)["']?`),
	regexp.MustCompile(`\*\*([^*\n]{1,80})\*\*`),
	regexp.MustCompile(`(?i)Chapter\s+\d+:\s*([^\n]{1,80})`),
	regexp.MustCompile(`O\s+([^,\n]{1,40}),`),
}

var explicitIndicators = []string{
	"cock", "pussy", "cum", "fuck", "squirt", "dick", "tits", "orgasm",
}

// moodIndicators score a mood by keyword frequency. Ties resolve
// alphabetically so the result is stable.
var moodIndicators = map[string][]string{
	"angry":         {"rage", "fury", "hate", "anger", "furious"},
	"contemplative": {"wonder", "ponder", "think", "reflect", "consider"},
	"erotic":        {"arousal", "desire", "lust", "passionate"},
	"melancholy":    {"sad", "lonely", "tears", "sorrow", "empty", "lost"},
	"passionate":    {"fire", "burn", "wild", "intense", "fierce"},
	"playful":       {"laugh", "giggle", "tease", "banter"},
	"romantic":      {"love", "heart", "kiss", "embrace", "tender"},
	"satirical":     {"ridiculous", "absurd", "farce", "mockery"},
}

// tagIndicators map a tag to its type and trigger keywords.
var tagIndicators = map[string]struct {
	tagType  string
	keywords []string
}{
	"dialogue":          {"style", []string{"said", "asked", "replied"}},
	"narrative":         {"style", []string{"chapter", "story", "once upon", "meanwhile"}},
	"song_lyrics":       {"style", []string{"verse", "chorus", "bridge", "refrain"}},
	"technology":        {"subject", []string{"interface", "code", "programming", "computer"}},
	"nature":            {"subject", []string{"forest", "river", "mountain", "ocean", "wind"}},
	"social_commentary": {"theme", []string{"society", "social", "commentary", "critique"}},
}

// AnalyzeContent categorizes content for automatic titling, typing, mood
// detection, and tagging. It is deterministic for a given input.
func AnalyzeContent(content string) Analysis {
	lower := strings.ToLower(content)
	lines := nonBlankLines(content)

	analysis := Analysis{
		ContentType:  "fragment",
		TagTypes:     map[string]string{},
		QualityScore: 5,
		Confidence:   0.8,
	}

	for _, pattern := range titlePatterns {
		if m := pattern.FindStringSubmatch(content); m != nil {
			analysis.Title = strings.TrimSpace(m[1])
			break
		}
	}
	if analysis.Title == "" && len(lines) > 0 {
		first := lines[0]
		if utf8.RuneCountInString(first) < 100 && !strings.HasPrefix(first, "---") {
			analysis.Title = first
		} else {
			analysis.Title = "AI Generated " + time.Now().UTC().Format("2006-01-02 15:04")
		}
	}

	explicitCount := 0
	for _, word := range explicitIndicators {
		explicitCount += strings.Count(lower, word)
	}
	analysis.Explicit = explicitCount > 2

	analysis.ContentType, analysis.QualityScore = detectContentType(content, lower, lines, analysis.Explicit)

	analysis.Mood = detectMood(lower, analysis.Explicit)

	for _, tag := range sortedTagNames() {
		spec := tagIndicators[tag]
		for _, keyword := range spec.keywords {
			if strings.Contains(lower, keyword) {
				analysis.Tags = append(analysis.Tags, tag)
				analysis.TagTypes[tag] = spec.tagType
				break
			}
		}
	}
	if analysis.Explicit {
		for _, tag := range []string{"explicit_content", "nsfw"} {
			analysis.Tags = append(analysis.Tags, tag)
			analysis.TagTypes[tag] = "content_warning"
		}
	}

	charCount := utf8.RuneCountInString(content)
	switch {
	case charCount <= 280:
		analysis.Tags = append(analysis.Tags, "twitter_ready")
		analysis.TagTypes["twitter_ready"] = "platform"
	case charCount <= 2200:
		analysis.Tags = append(analysis.Tags, "instagram_ready")
		analysis.TagTypes["instagram_ready"] = "platform"
	}
	wordCount := len(strings.Fields(content))
	if wordCount > 100 {
		analysis.Tags = append(analysis.Tags, "blog_ready")
		analysis.TagTypes["blog_ready"] = "platform"
	}

	if len(analysis.Tags) > 3 {
		analysis.QualityScore++
	}
	switch {
	case wordCount >= 50 && wordCount <= 500:
		analysis.QualityScore++
	case wordCount > 1000:
		analysis.QualityScore += 2
	}

	analysis.Tags = dedupeTags(analysis.Tags, 10)
	return analysis
}

func detectContentType(content, lower string, lines []string, explicit bool) (string, int) {
	// Structured JSON bodies get recognized before prose heuristics so a
	// generate_* tool result round-trips with its own type.
	if strings.Contains(content, "{") && strings.Contains(content, "}") {
		switch {
		case (strings.Contains(content, `"prompt"`) && strings.Contains(lower, `"style`)) ||
			(strings.Contains(lower, `"composition"`) && strings.Contains(lower, `"lighting"`)):
			return TypeImagePrompt, 8
		case (strings.Contains(lower, `"structure"`) && strings.Contains(lower, "verse")) ||
			(strings.Contains(lower, `"lyrics"`) && strings.Contains(lower, `"chorus"`)):
			return TypeLyricsPrompt, 8
		}
	}

	switch {
	case explicit:
		return "erotica", 3
	case strings.Count(content, `"`) > 4:
		return "dialogue", 7
	case strings.Contains(lower, "chapter") && len(strings.Fields(content)) > 100:
		return "prose", 7
	case strings.HasPrefix(content, "O ") && strings.Contains(firstRunes(content, 50), ","):
		return "poetry", 8
	case strings.Contains(lower, "[verse]") || strings.Contains(lower, "[chorus]") || strings.Contains(lower, "verse 1"):
		return "song", 7
	case strings.Contains(content, "def ") || strings.Contains(content, "function ") || strings.Contains(content, "import "):
		return "code", 6
	}

	if len(lines) > 3 {
		short := 0
		for _, line := range lines {
			if utf8.RuneCountInString(line) < 60 {
				short++
			}
		}
		if float64(short)/float64(len(lines)) > 0.6 {
			return "poetry", 6
		}
	}
	return "fragment", 5
}

func detectMood(lower string, explicit bool) string {
	best := ""
	bestScore := 0
	for _, mood := range sortedMoodNames() {
		score := 0
		for _, keyword := range moodIndicators[mood] {
			score += strings.Count(lower, keyword)
		}
		if mood == "erotic" && explicit {
			score += 3
		}
		if score > bestScore {
			best = mood
			bestScore = score
		}
	}
	return best
}

func nonBlankLines(content string) []string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		runes = runes[:n]
	}
	return string(runes)
}

func dedupeTags(tags []string, limit int) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, tag := range tags {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
		if len(out) == limit {
			break
		}
	}
	return out
}

func sortedMoodNames() []string {
	names := make([]string, 0, len(moodIndicators))
	for name := range moodIndicators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedTagNames() []string {
	names := make([]string, 0, len(tagIndicators))
	for name := range tagIndicators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CountMetrics returns the word, character, and non-blank line counts the
// writings table tracks.
func CountMetrics(content string) (words, characters, lines int) {
	return len(strings.Fields(content)),
		utf8.RuneCountInString(content),
		len(nonBlankLines(content))
}

// ExcerptTitle derives a display title from prompt text, truncated to at
// most max runes with an ellipsis.
func ExcerptTitle(prefix, promptText string, max int) string {
	excerpt := firstRunes(strings.TrimSpace(promptText), max)
	return fmt.Sprintf("%s%s...", prefix, excerpt)
}
