package filter

import (
	"context"
	"regexp"
	"strings"

	"github.com/osa030/tubebox/internal/domain/track"
)

// DuplicateTrackFilter drops repeated entries from a candidate set.
// Detects:
// - Exact track ID matches
// - Re-uploads and alternate cuts (normalized title + same channel)
// Excludes:
// - Covers (same title but different channel)
type DuplicateTrackFilter struct{}

// NewDuplicateTrackFilter creates a new duplicate track filter.
func NewDuplicateTrackFilter() *DuplicateTrackFilter {
	return &DuplicateTrackFilter{}
}

// Name returns the filter name.
func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

// Description returns the filter description.
func (f *DuplicateTrackFilter) Description() string {
	return "Drops tracks already in the set, including remasters and video variants of the same upload. Covers are kept"
}

// ReturnCodes returns possible return codes.
func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{"duplicate_track"}
}

// AppliesTo returns which sources this filter applies to.
func (f *DuplicateTrackFilter) AppliesTo(source Source) bool {
	// Curated sets (liked, playlists) are kept exactly as the user built them
	return source == SourceSearch || source == SourceImport
}

// ValidateConfig validates the filter configuration.
func (f *DuplicateTrackFilter) ValidateConfig(config map[string]any) error {
	// No configuration needed
	return nil
}

// Check checks if the candidate duplicates an accepted track.
func (f *DuplicateTrackFilter) Check(ctx context.Context, candidate track.Track, accepted []track.Track) Result {
	for _, t := range accepted {
		// 1. Exact track ID match
		if t.ID == candidate.ID {
			return Reject("duplicate_track")
		}

		// 2. Same song: normalized title + same channel
		if f.isSameSong(t, candidate) {
			return Reject("duplicate_track")
		}
	}

	return Accept()
}

// isSameSong checks if two tracks are the same song (remaster/different cut).
func (f *DuplicateTrackFilter) isSameSong(track1, track2 track.Track) bool {
	if normalizeTitle(track1.Title) != normalizeTitle(track2.Title) {
		return false
	}

	// Same normalized title - different channel means a cover (allowed)
	return isSameChannel(track1, track2)
}

var (
	remasterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
		regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
		regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
		regexp.MustCompile(`\s*\(.*?remaster.*?\)`),              // "(Any Remaster text)"
		regexp.MustCompile(`\s*\[.*?remaster.*?\]`),              // "[Any Remaster text]"
	}

	versionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*[\(\[]official\s+(music\s+)?(video|audio|mv)[\)\]]`), // "(Official Music Video)"
		regexp.MustCompile(`\s*[\(\[](lyrics?|lyric\s+video|audio|hd|4k|mv)[\)\]]`), // "[Lyrics]", "(HD)"
		regexp.MustCompile(`\s*\(.*?version\)`),                                     // "(Single Version)"
		regexp.MustCompile(`\s*\(.*?edit\)`),                                        // "(Radio Edit)"
		regexp.MustCompile(`\s*-?\s*radio\s+edit`),                                  // "- Radio Edit"
		regexp.MustCompile(`\s*-?\s*single\s+version`),                              // "- Single Version"
	}

	whitespacePattern = regexp.MustCompile(`\s+`)
)

// normalizeTitle removes remaster information and upload decorations.
func normalizeTitle(title string) string {
	normalized := strings.ToLower(title)

	for _, pattern := range remasterPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	for _, pattern := range versionPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	// Remove extra whitespace
	normalized = strings.TrimSpace(normalized)
	normalized = whitespacePattern.ReplaceAllString(normalized, " ")

	// Remove trailing dashes
	normalized = strings.TrimRight(normalized, " -")

	return normalized
}

// isSameChannel compares channel names, ignoring case and the " - Topic" suffix
// of auto-generated artist channels.
func isSameChannel(track1, track2 track.Track) bool {
	c1 := strings.TrimSuffix(strings.TrimSpace(track1.ChannelTitle), " - Topic")
	c2 := strings.TrimSuffix(strings.TrimSpace(track2.ChannelTitle), " - Topic")
	if c1 == "" || c2 == "" {
		return false
	}
	return strings.EqualFold(c1, c2)
}

func init() {
	Register("duplicate_track_filter", func() Filter {
		return NewDuplicateTrackFilter()
	})
}
