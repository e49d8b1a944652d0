package connect

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/tubebox/internal/app/playback"
	"github.com/osa030/tubebox/internal/app/session"
	"github.com/osa030/tubebox/internal/domain/playlist"
	"github.com/osa030/tubebox/internal/domain/track"
)

var validate = validator.New()

// Request messages. Field names follow the JSON keys of the wire Struct.

type trackMessage struct {
	ID           string            `mapstructure:"id" validate:"required"`
	Title        string            `mapstructure:"title"`
	ChannelTitle string            `mapstructure:"channel_title"`
	Duration     string            `mapstructure:"duration"`
	PublishedAt  string            `mapstructure:"published_at"`
	Thumbnails   thumbnailsMessage `mapstructure:"thumbnails"`
}

type thumbnailsMessage struct {
	Default thumbnailMessage `mapstructure:"default"`
	Medium  thumbnailMessage `mapstructure:"medium"`
	High    thumbnailMessage `mapstructure:"high"`
}

type thumbnailMessage struct {
	URL    string `mapstructure:"url"`
	Width  int    `mapstructure:"width"`
	Height int    `mapstructure:"height"`
}

type emptyRequest struct{}

type userRequest struct {
	UserID string `mapstructure:"user_id"`
}

type searchRequest struct {
	Query string `mapstructure:"query" validate:"required"`
}

type setQueueRequest struct {
	Tracks []trackMessage `mapstructure:"tracks" validate:"dive"`
	Start  int            `mapstructure:"start" validate:"gte=0"`
}

type playTrackRequest struct {
	Index int `mapstructure:"index" validate:"gte=0"`
}

type seekRequest struct {
	Seconds float64 `mapstructure:"seconds" validate:"gte=0"`
}

type volumeRequest struct {
	Volume int `mapstructure:"volume"`
}

type sleepTimerRequest struct {
	Seconds  float64 `mapstructure:"seconds" validate:"gte=0"`
	Duration string  `mapstructure:"duration"` // Go duration string, overrides Seconds
}

type likeRequest struct {
	UserID string        `mapstructure:"user_id"`
	Track  *trackMessage `mapstructure:"track" validate:"omitempty"`
}

type unlikeRequest struct {
	UserID  string `mapstructure:"user_id"`
	TrackID string `mapstructure:"track_id"`
}

type createPlaylistRequest struct {
	UserID      string         `mapstructure:"user_id"`
	Name        string         `mapstructure:"name" validate:"required"`
	Description string         `mapstructure:"description"`
	IsPublic    bool           `mapstructure:"is_public"`
	Tracks      []trackMessage `mapstructure:"tracks" validate:"dive"`
}

type playlistRequest struct {
	UserID     string `mapstructure:"user_id"`
	PlaylistID string `mapstructure:"playlist_id" validate:"required"`
}

type updatePlaylistRequest struct {
	UserID      string `mapstructure:"user_id"`
	PlaylistID  string `mapstructure:"playlist_id" validate:"required"`
	Name        string `mapstructure:"name" validate:"required"`
	Description string `mapstructure:"description"`
}

type addToPlaylistRequest struct {
	UserID     string        `mapstructure:"user_id"`
	PlaylistID string        `mapstructure:"playlist_id" validate:"required"`
	Track      *trackMessage `mapstructure:"track" validate:"omitempty"`
}

type removeFromPlaylistRequest struct {
	UserID     string `mapstructure:"user_id"`
	PlaylistID string `mapstructure:"playlist_id" validate:"required"`
	TrackID    string `mapstructure:"track_id" validate:"required"`
}

type importRequest struct {
	URL string `mapstructure:"url" validate:"required"`
}

type watchRequest struct {
	OmitQueue bool `mapstructure:"omit_queue"`
}

// decodeMessage decodes msg into out, applies defaults and validates.
func decodeMessage(msg *structpb.Struct, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(msg.AsMap()); err != nil {
		return errors.Wrap(err, "failed to decode request")
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validate.Struct(out); err != nil {
		return errors.Wrap(err, "invalid request")
	}
	return nil
}

func (m trackMessage) toTrack() track.Track {
	return track.Track{
		ID:           m.ID,
		Title:        m.Title,
		ChannelTitle: m.ChannelTitle,
		Duration:     m.Duration,
		PublishedAt:  m.PublishedAt,
		Thumbnails: track.Thumbnails{
			Default: track.Thumbnail(m.Thumbnails.Default),
			Medium:  track.Thumbnail(m.Thumbnails.Medium),
			High:    track.Thumbnail(m.Thumbnails.High),
		},
	}
}

func toTracks(msgs []trackMessage) []track.Track {
	tracks := make([]track.Track, len(msgs))
	for i, m := range msgs {
		tracks[i] = m.toTrack()
	}
	return tracks
}

// Response values. structpb accepts only map[string]any and []any containers.

func thumbnailValue(t track.Thumbnail) map[string]any {
	return map[string]any{"url": t.URL, "width": t.Width, "height": t.Height}
}

func trackValue(t track.Track) map[string]any {
	return map[string]any{
		"id":            t.ID,
		"title":         t.Title,
		"channel_title": t.ChannelTitle,
		"duration":      t.Duration,
		"published_at":  t.PublishedAt,
		"thumbnails": map[string]any{
			"default": thumbnailValue(t.Thumbnails.Default),
			"medium":  thumbnailValue(t.Thumbnails.Medium),
			"high":    thumbnailValue(t.Thumbnails.High),
		},
	}
}

func tracksValue(tracks []track.Track) []any {
	out := make([]any, len(tracks))
	for i, t := range tracks {
		out[i] = trackValue(t)
	}
	return out
}

func likedValue(liked []track.Liked) []any {
	out := make([]any, len(liked))
	for i, l := range liked {
		v := trackValue(l.Track)
		v["liked_at"] = l.LikedAt.UTC().Format(time.RFC3339Nano)
		out[i] = v
	}
	return out
}

func playlistValue(p *playlist.Playlist) map[string]any {
	return map[string]any{
		"id":             p.ID,
		"user_id":        p.UserID,
		"name":           p.Name,
		"description":    p.Description,
		"is_public":      p.IsPublic,
		"tracks":         tracksValue(p.Tracks),
		"track_count":    len(p.Tracks),
		"total_duration": p.TotalDuration(),
		"created_at":     p.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":     p.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func snapshotValue(s playback.Snapshot, includeQueue bool) map[string]any {
	v := map[string]any{
		"seq":           s.Seq,
		"state":         s.State.String(),
		"is_playing":    s.IsPlaying,
		"current_time":  s.CurrentTime,
		"duration":      s.Duration,
		"volume":        s.Volume,
		"current_index": s.CurrentIndex,
		"queue_length":  len(s.Queue),
		"has_next":      s.HasNext(),
		"has_previous":  s.HasPrevious(),
		"error":         s.Error,
		"current_track": nil,
	}
	if s.CurrentTrack != nil {
		v["current_track"] = trackValue(*s.CurrentTrack)
	}
	if includeQueue {
		v["queue"] = tracksValue(s.Queue)
	}
	return v
}

func statusValue(st session.Status, includeQueue bool) map[string]any {
	timer := map[string]any{"active": st.SleepTimer.Active, "remaining_seconds": nil}
	if st.SleepTimer.Remaining != nil {
		timer["remaining_seconds"] = st.SleepTimer.Remaining.Seconds()
	}
	return map[string]any{
		"phase":       st.Phase.String(),
		"init_error":  st.InitError,
		"snapshot":    snapshotValue(st.Snapshot, includeQueue),
		"sleep_timer": timer,
		"origin": map[string]any{
			"source": string(st.Origin.Source),
			"label":  st.Origin.Label,
			"id":     st.Origin.ID,
		},
	}
}
