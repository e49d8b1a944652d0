// Package ytplaylist imports public YouTube playlists as track lists.
package ytplaylist

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/ytget/ytdlp/v2"

	"github.com/osa030/tubebox/internal/domain/track"
)

// DefaultTimeout bounds a whole import, including duration lookups.
const DefaultTimeout = 60 * time.Second

const thumbnailURLTemplate = "https://i.ytimg.com/vi/%s/%s"

var playlistIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ErrInvalidPlaylistURL is returned when no playlist ID can be extracted.
var ErrInvalidPlaylistURL = errors.New("invalid playlist URL")

// Item is one playlist entry.
type Item struct {
	VideoID string
	Title   string
}

// DurationLookup resolves display durations for video IDs.
type DurationLookup interface {
	Durations(ctx context.Context, ids []string) (map[string]string, error)
}

type fetchFunc func(ctx context.Context, playlistID string) ([]Item, error)

// Importer fetches playlist entries and converts them to tracks.
type Importer struct {
	fetch     fetchFunc
	durations DurationLookup
	timeout   time.Duration
}

// New creates an importer backed by ytdlp. durations may be nil, in which
// case imported tracks have no duration.
func New(durations DurationLookup) *Importer {
	return &Importer{
		fetch:     fetchWithYTDLP,
		durations: durations,
		timeout:   DefaultTimeout,
	}
}

// SetTimeout sets the timeout for import operations.
func (i *Importer) SetTimeout(timeout time.Duration) {
	i.timeout = timeout
}

// Import returns the playlist's videos in playlist order, skipping entries
// without a video ID and repeated IDs.
func (i *Importer) Import(ctx context.Context, playlistURL string) ([]track.Track, error) {
	playlistID, err := ExtractPlaylistID(playlistURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	items, err := i.fetch(ctx, playlistID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get playlist items: %s", playlistID)
	}

	seen := make(map[string]struct{}, len(items))
	tracks := make([]track.Track, 0, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.VideoID == "" {
			continue
		}
		if _, ok := seen[it.VideoID]; ok {
			continue
		}
		seen[it.VideoID] = struct{}{}
		tracks = append(tracks, track.Track{
			ID:         it.VideoID,
			Title:      it.Title,
			Thumbnails: thumbnails(it.VideoID),
		})
		ids = append(ids, it.VideoID)
	}

	if i.durations != nil && len(ids) > 0 {
		durations, err := i.durations.Durations(ctx, ids)
		if err != nil {
			zlog.Warn().Msgf("ytplaylist: duration lookup failed: playlist=%s error=%v", playlistID, err)
		} else {
			for n := range tracks {
				tracks[n].Duration = durations[tracks[n].ID]
			}
		}
	}

	zlog.Info().Msgf("ytplaylist: imported playlist %s: %d tracks", playlistID, len(tracks))
	return tracks, nil
}

// ExtractPlaylistID accepts a URL carrying a list= parameter or a bare playlist ID.
func ExtractPlaylistID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ErrInvalidPlaylistURL
	}

	if strings.Contains(input, "://") || strings.Contains(input, "list=") {
		u, err := url.Parse(input)
		if err != nil {
			return "", errors.Wrap(ErrInvalidPlaylistURL, err.Error())
		}
		id := u.Query().Get("list")
		if id == "" {
			return "", errors.Wrapf(ErrInvalidPlaylistURL, "no list parameter in %q", input)
		}
		return id, nil
	}

	if !playlistIDPattern.MatchString(input) {
		return "", errors.Wrapf(ErrInvalidPlaylistURL, "%q", input)
	}
	return input, nil
}

// CanImport reports whether input names a YouTube playlist.
func (i *Importer) CanImport(input string) bool {
	_, err := ExtractPlaylistID(input)
	return err == nil
}

func thumbnails(videoID string) track.Thumbnails {
	return track.Thumbnails{
		Default: track.Thumbnail{URL: fmt.Sprintf(thumbnailURLTemplate, videoID, "default.jpg"), Width: 120, Height: 90},
		Medium:  track.Thumbnail{URL: fmt.Sprintf(thumbnailURLTemplate, videoID, "mqdefault.jpg"), Width: 320, Height: 180},
		High:    track.Thumbnail{URL: fmt.Sprintf(thumbnailURLTemplate, videoID, "hqdefault.jpg"), Width: 480, Height: 360},
	}
}

func fetchWithYTDLP(ctx context.Context, playlistID string) ([]Item, error) {
	items, err := ytdlp.New().GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return nil, err
	}

	out := make([]Item, 0, len(items))
	for _, it := range items {
		out = append(out, Item{VideoID: it.VideoID, Title: it.Title})
	}
	return out, nil
}
