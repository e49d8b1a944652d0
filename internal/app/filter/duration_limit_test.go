package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tubebox/internal/domain/track"
)

func TestDurationLimitFilter_Check(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
		duration string
		wantCode string // empty means accepted
	}{
		{"within limits", map[string]any{"min_minutes": 2, "max_minutes": 5}, "3:00", ""},
		{"too short", map[string]any{"min_minutes": 3}, "2:00", CodeTooShort},
		{"too long", map[string]any{"max_minutes": 5}, "6:00", CodeTooLong},
		{"exact min", map[string]any{"min_minutes": 3}, "3:00", ""},
		{"exact max", map[string]any{"max_minutes": 5}, "5:00", ""},
		{"hour long mix over max", map[string]any{"max_minutes": 30}, "1:00:00", CodeTooLong},
		{"no upper bound", map[string]any{}, "3:00:00", ""},
		{"default min rejects clips", map[string]any{}, "0:30", CodeTooShort},
		{"fractional min", map[string]any{"min_minutes": 0.25}, "0:30", ""},
		{"unknown duration", map[string]any{"min_minutes": 2, "max_minutes": 5}, "", ""},
		{"unparseable duration", map[string]any{"min_minutes": 2}, "live", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewDurationLimitFilter()
			require.NoError(t, f.ValidateConfig(tt.settings))

			result := f.Check(context.Background(), track.Track{ID: "x", Duration: tt.duration}, nil)

			if tt.wantCode == "" {
				assert.True(t, result.Accepted)
				return
			}
			assert.False(t, result.Accepted)
			assert.Equal(t, tt.wantCode, result.Code)
		})
	}
}

func TestDurationLimitFilter_NoConfig(t *testing.T) {
	f := NewDurationLimitFilter()
	result := f.Check(context.Background(), track.Track{ID: "x", Duration: "0:05"}, nil)
	assert.True(t, result.Accepted)
}

func TestDurationLimitFilter_AppliesToSearchOnly(t *testing.T) {
	f := NewDurationLimitFilter()
	assert.True(t, f.AppliesTo(SourceSearch))
	assert.False(t, f.AppliesTo(SourceLiked))
	assert.False(t, f.AppliesTo(SourcePlaylist))
	assert.False(t, f.AppliesTo(SourceImport))
}

func TestDurationLimitFilter_ValidateConfig(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
		wantErr  bool
	}{
		{"floats", map[string]any{"min_minutes": 2.5, "max_minutes": 5.0}, false},
		{"integers", map[string]any{"min_minutes": 2, "max_minutes": 5}, false},
		{"strings from env", map[string]any{"min_minutes": "2", "max_minutes": "5"}, false},
		{"min greater than max", map[string]any{"min_minutes": 10.0, "max_minutes": 5.0}, true},
		{"negative min", map[string]any{"min_minutes": -1.0}, true},
		{"negative max", map[string]any{"max_minutes": -1.0}, true},
		{"zero max means no limit", map[string]any{"max_minutes": 0}, false},
		{"not a number", map[string]any{"min_minutes": "soon"}, true},
		{"empty uses defaults", map[string]any{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewDurationLimitFilter().ValidateConfig(tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
