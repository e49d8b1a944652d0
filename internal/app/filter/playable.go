package filter

import (
	"context"

	"github.com/osa030/tubebox/internal/domain/track"
)

// PlayableFilter rejects entries that cannot be queued as finite tracks:
// missing IDs and unknown durations (live streams, premieres).
type PlayableFilter struct{}

func (f *PlayableFilter) Name() string {
	return "playable_filter"
}

func (f *PlayableFilter) Description() string {
	return "Rejects live streams and entries without a known duration"
}

func (f *PlayableFilter) ReturnCodes() []string {
	return []string{"not_playable"}
}

func (f *PlayableFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *PlayableFilter) AppliesTo(source Source) bool {
	// Imported playlist entries carry no duration metadata
	return source != SourceImport
}

func (f *PlayableFilter) Check(ctx context.Context, t track.Track, accepted []track.Track) Result {
	if t.ID == "" || t.Length() == 0 {
		return Reject("not_playable")
	}
	return Accept()
}

func init() {
	Register("playable_filter", func() Filter {
		return &PlayableFilter{}
	})
}
