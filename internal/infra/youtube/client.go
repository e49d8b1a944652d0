// Package youtube provides a client for the YouTube Data API v3.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tubebox/internal/domain/track"
)

const (
	defaultBaseURL = "https://www.googleapis.com/youtube/v3"

	// DefaultLimit is the number of results returned when limit <= 0.
	DefaultLimit = 20
	// MaxLimit is the largest page the search endpoint accepts.
	MaxLimit = 50

	// musicCategoryID is the "Music" video category.
	musicCategoryID = "10"
)

// ErrEmptyQuery is returned when Search is called with a blank query.
var ErrEmptyQuery = errors.New("search query is required")

// Client is a YouTube Data API client.
type Client struct {
	apiKey     string
	baseURL    string
	regionCode string
	safeSearch string
	httpClient *http.Client

	// Cache for video durations, keyed by video ID
	durationCache map[string]string
	cacheMu       sync.RWMutex
}

// Config represents YouTube client configuration.
type Config struct {
	APIKey     string
	RegionCode string // ISO 3166-1 alpha-2, optional
	SafeSearch string // none, moderate, strict
}

// APIError represents an error response from the Data API.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("youtube API error %d: %s", e.Code, e.Message)
}

type errorResponse struct {
	Error *APIError `json:"error"`
}

type thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// searchResponse represents the response from the search.list API.
type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
			PublishedAt  string `json:"publishedAt"`
			Thumbnails   struct {
				Default thumbnail `json:"default"`
				Medium  thumbnail `json:"medium"`
				High    thumbnail `json:"high"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

// videosResponse represents the response from the videos.list API.
type videosResponse struct {
	Items []struct {
		ID             string `json:"id"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// New creates a new YouTube client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("youtube API key is required")
	}

	return &Client{
		apiKey:        cfg.APIKey,
		baseURL:       defaultBaseURL,
		regionCode:    cfg.RegionCode,
		safeSearch:    cfg.SafeSearch,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		durationCache: make(map[string]string),
	}, nil
}

// Search returns music videos matching query, with display durations filled in.
// Reference: https://developers.google.com/youtube/v3/docs/search/list
func (c *Client) Search(ctx context.Context, query string, limit int) ([]track.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("videoCategoryId", musicCategoryID)
	params.Set("maxResults", strconv.Itoa(limit))
	params.Set("q", query)
	params.Set("key", c.apiKey)
	if c.regionCode != "" {
		params.Set("regionCode", c.regionCode)
	}
	if c.safeSearch != "" {
		params.Set("safeSearch", c.safeSearch)
	}

	var response searchResponse
	if err := c.get(ctx, "/search", params, &response); err != nil {
		return nil, errors.Wrap(err, "search failed")
	}

	tracks := make([]track.Track, 0, len(response.Items))
	ids := make([]string, 0, len(response.Items))
	for _, item := range response.Items {
		if item.ID.VideoID == "" {
			continue
		}
		s := item.Snippet
		tracks = append(tracks, track.Track{
			ID:           item.ID.VideoID,
			Title:        html.UnescapeString(s.Title),
			ChannelTitle: html.UnescapeString(s.ChannelTitle),
			PublishedAt:  s.PublishedAt,
			Thumbnails: track.Thumbnails{
				Default: track.Thumbnail(s.Thumbnails.Default),
				Medium:  track.Thumbnail(s.Thumbnails.Medium),
				High:    track.Thumbnail(s.Thumbnails.High),
			},
		})
		ids = append(ids, item.ID.VideoID)
	}

	durations, err := c.Durations(ctx, ids)
	if err != nil {
		// Results are still usable; playable_filter decides what to do with them
		zlog.Warn().Msgf("youtube: failed to fetch durations: %v", err)
		return tracks, nil
	}
	for i := range tracks {
		tracks[i].Duration = durations[tracks[i].ID]
	}

	zlog.Debug().Msgf("youtube: search returned %d tracks for %q", len(tracks), query)
	return tracks, nil
}

// Durations returns display durations ("m:ss" or "h:mm:ss") for the given video IDs.
// Live streams and unknown videos map to "".
// Reference: https://developers.google.com/youtube/v3/docs/videos/list
func (c *Client) Durations(ctx context.Context, ids []string) (map[string]string, error) {
	result := make(map[string]string, len(ids))
	missing := make([]string, 0, len(ids))

	c.cacheMu.RLock()
	for _, id := range ids {
		if d, ok := c.durationCache[id]; ok {
			result[id] = d
			continue
		}
		missing = append(missing, id)
	}
	c.cacheMu.RUnlock()

	for start := 0; start < len(missing); start += MaxLimit {
		end := min(start+MaxLimit, len(missing))
		batch := missing[start:end]

		params := url.Values{}
		params.Set("part", "contentDetails")
		params.Set("id", strings.Join(batch, ","))
		params.Set("key", c.apiKey)

		var response videosResponse
		if err := c.get(ctx, "/videos", params, &response); err != nil {
			return nil, errors.Wrap(err, "videos lookup failed")
		}

		c.cacheMu.Lock()
		for _, item := range response.Items {
			d, err := ParseISODuration(item.ContentDetails.Duration)
			display := ""
			if err == nil && d > 0 {
				display = track.FormatDuration(d)
			}
			result[item.ID] = display
			c.durationCache[item.ID] = display
		}
		c.cacheMu.Unlock()
	}

	return result, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode != http.StatusOK {
		var apiError errorResponse
		if err := json.Unmarshal(body, &apiError); err == nil && apiError.Error != nil {
			return apiError.Error
		}
		return &APIError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

var isoDurationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseISODuration parses the ISO 8601 durations used by contentDetails,
// e.g. "PT3M45S", "PT1H2M3S", "P1DT2H". "P0D" (live) parses to zero.
func ParseISODuration(s string) (time.Duration, error) {
	m := isoDurationPattern.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" {
		return 0, errors.Newf("invalid ISO 8601 duration: %q", s)
	}

	units := []time.Duration{24 * time.Hour, time.Hour, time.Minute, time.Second}
	var d time.Duration
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, errors.Wrapf(err, "invalid ISO 8601 duration: %q", s)
		}
		d += time.Duration(n) * unit
	}
	return d, nil
}
