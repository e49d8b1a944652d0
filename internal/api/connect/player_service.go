package connect

import (
	"context"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/tubebox/internal/app/playback"
	"github.com/osa030/tubebox/internal/app/session"
	"github.com/osa030/tubebox/internal/domain/playlist"
	"github.com/osa030/tubebox/internal/domain/track"
)

const (
	// ServiceName is the fully-qualified name of the control service.
	ServiceName = "tubebox.v1.PlayerService"
	// ServicePath is the HTTP path prefix the service is mounted on.
	ServicePath = "/" + ServiceName + "/"
)

// Procedure names.
const (
	ProcSearch             = "Search"
	ProcSetQueue           = "SetQueue"
	ProcPlay               = "Play"
	ProcPause              = "Pause"
	ProcStop               = "Stop"
	ProcNext               = "Next"
	ProcPrevious           = "Previous"
	ProcPlayTrack          = "PlayTrack"
	ProcRetry              = "Retry"
	ProcSeek               = "Seek"
	ProcSetVolume          = "SetVolume"
	ProcStartSleepTimer    = "StartSleepTimer"
	ProcCancelSleepTimer   = "CancelSleepTimer"
	ProcGetSnapshot        = "GetSnapshot"
	ProcLike               = "Like"
	ProcUnlike             = "Unlike"
	ProcListLiked          = "ListLiked"
	ProcPlayLiked          = "PlayLiked"
	ProcCreatePlaylist     = "CreatePlaylist"
	ProcGetPlaylist        = "GetPlaylist"
	ProcListPlaylists      = "ListPlaylists"
	ProcUpdatePlaylist     = "UpdatePlaylist"
	ProcDeletePlaylist     = "DeletePlaylist"
	ProcAddToPlaylist      = "AddToPlaylist"
	ProcRemoveFromPlaylist = "RemoveFromPlaylist"
	ProcPlayPlaylist       = "PlayPlaylist"
	ProcImportPlaylist     = "ImportPlaylist"
	ProcWatchSnapshots     = "WatchSnapshots"
)

// Procedure returns the full procedure path for name.
func Procedure(name string) string {
	return ServicePath + name
}

// PlayerService exposes the session manager over Connect. Every message is a
// google.protobuf.Struct.
type PlayerService struct {
	session *session.Manager
}

// NewPlayerService creates a new PlayerService.
func NewPlayerService(s *session.Manager) *PlayerService {
	return &PlayerService{session: s}
}

// Handler returns the service path and its handler.
func (s *PlayerService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	register := func(name string, h http.Handler) {
		mux.Handle(Procedure(name), h)
	}

	register(ProcSearch, unary(ProcSearch, s.search, opts...))
	register(ProcSetQueue, unary(ProcSetQueue, s.setQueue, opts...))
	register(ProcPlay, unary(ProcPlay, s.transport(s.session.Play), opts...))
	register(ProcPause, unary(ProcPause, s.transport(s.session.Pause), opts...))
	register(ProcStop, unary(ProcStop, s.transport(s.session.Stop), opts...))
	register(ProcNext, unary(ProcNext, s.move(s.session.Next), opts...))
	register(ProcPrevious, unary(ProcPrevious, s.move(s.session.Previous), opts...))
	register(ProcRetry, unary(ProcRetry, s.move(s.session.Retry), opts...))
	register(ProcPlayTrack, unary(ProcPlayTrack, s.playTrack, opts...))
	register(ProcSeek, unary(ProcSeek, s.seek, opts...))
	register(ProcSetVolume, unary(ProcSetVolume, s.setVolume, opts...))
	register(ProcStartSleepTimer, unary(ProcStartSleepTimer, s.startSleepTimer, opts...))
	register(ProcCancelSleepTimer, unary(ProcCancelSleepTimer, s.transport(s.session.CancelSleepTimer), opts...))
	register(ProcGetSnapshot, unary(ProcGetSnapshot, s.getSnapshot, opts...))
	register(ProcLike, unary(ProcLike, s.like, opts...))
	register(ProcUnlike, unary(ProcUnlike, s.unlike, opts...))
	register(ProcListLiked, unary(ProcListLiked, s.listLiked, opts...))
	register(ProcPlayLiked, unary(ProcPlayLiked, s.playLiked, opts...))
	register(ProcCreatePlaylist, unary(ProcCreatePlaylist, s.createPlaylist, opts...))
	register(ProcGetPlaylist, unary(ProcGetPlaylist, s.getPlaylist, opts...))
	register(ProcListPlaylists, unary(ProcListPlaylists, s.listPlaylists, opts...))
	register(ProcUpdatePlaylist, unary(ProcUpdatePlaylist, s.updatePlaylist, opts...))
	register(ProcDeletePlaylist, unary(ProcDeletePlaylist, s.deletePlaylist, opts...))
	register(ProcAddToPlaylist, unary(ProcAddToPlaylist, s.addToPlaylist, opts...))
	register(ProcRemoveFromPlaylist, unary(ProcRemoveFromPlaylist, s.removeFromPlaylist, opts...))
	register(ProcPlayPlaylist, unary(ProcPlayPlaylist, s.playPlaylist, opts...))
	register(ProcImportPlaylist, unary(ProcImportPlaylist, s.importPlaylist, opts...))
	register(ProcWatchSnapshots, connect.NewServerStreamHandler(Procedure(ProcWatchSnapshots), s.watchSnapshots, opts...))

	return ServicePath, mux
}

// unary adapts a typed handler to a Struct-in, Struct-out Connect handler.
func unary[Req any](name string, fn func(ctx context.Context, req *Req) (map[string]any, error), opts ...connect.HandlerOption) *connect.Handler {
	return connect.NewUnaryHandler(
		Procedure(name),
		func(ctx context.Context, r *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
			req := new(Req)
			if err := decodeMessage(r.Msg, req); err != nil {
				return nil, connect.NewError(connect.CodeInvalidArgument, err)
			}
			out, err := fn(ctx, req)
			if err != nil {
				zlog.Debug().Msgf("api: %s failed: %v", name, err)
				return nil, toConnectError(err)
			}
			msg, err := structpb.NewStruct(out)
			if err != nil {
				return nil, connect.NewError(connect.CodeInternal, errors.Wrap(err, "encode response"))
			}
			return connect.NewResponse(msg), nil
		},
		opts...,
	)
}

func (s *PlayerService) status() map[string]any {
	return statusValue(s.session.Status(), true)
}

func (s *PlayerService) transport(fn func() error) func(context.Context, *emptyRequest) (map[string]any, error) {
	return func(context.Context, *emptyRequest) (map[string]any, error) {
		if err := fn(); err != nil {
			return nil, err
		}
		return s.status(), nil
	}
}

func (s *PlayerService) move(fn func() (bool, error)) func(context.Context, *emptyRequest) (map[string]any, error) {
	return func(context.Context, *emptyRequest) (map[string]any, error) {
		moved, err := fn()
		if err != nil {
			return nil, err
		}
		return map[string]any{"moved": moved, "status": s.status()}, nil
	}
}

func (s *PlayerService) search(ctx context.Context, req *searchRequest) (map[string]any, error) {
	result, err := s.session.Search(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"provider": result.DisplayName,
		"count":    len(result.Tracks),
		"tracks":   tracksValue(result.Tracks),
	}, nil
}

func (s *PlayerService) setQueue(ctx context.Context, req *setQueueRequest) (map[string]any, error) {
	if err := s.session.SetQueue(toTracks(req.Tracks), req.Start); err != nil {
		return nil, err
	}
	return s.status(), nil
}

func (s *PlayerService) playTrack(ctx context.Context, req *playTrackRequest) (map[string]any, error) {
	moved, err := s.session.PlayTrack(req.Index)
	if err != nil {
		return nil, err
	}
	return map[string]any{"moved": moved, "status": s.status()}, nil
}

func (s *PlayerService) seek(ctx context.Context, req *seekRequest) (map[string]any, error) {
	if err := s.session.SeekTo(req.Seconds); err != nil {
		return nil, err
	}
	return s.status(), nil
}

func (s *PlayerService) setVolume(ctx context.Context, req *volumeRequest) (map[string]any, error) {
	if err := s.session.SetVolume(req.Volume); err != nil {
		return nil, err
	}
	return s.status(), nil
}

func (s *PlayerService) startSleepTimer(ctx context.Context, req *sleepTimerRequest) (map[string]any, error) {
	d := time.Duration(req.Seconds * float64(time.Second))
	if req.Duration != "" {
		parsed, err := time.ParseDuration(strings.TrimSpace(req.Duration))
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "duration %q", req.Duration), session.ErrInvalidArgument)
		}
		d = parsed
	}
	if err := s.session.StartSleepTimer(d); err != nil {
		return nil, err
	}
	return s.status(), nil
}

func (s *PlayerService) getSnapshot(ctx context.Context, req *emptyRequest) (map[string]any, error) {
	return s.status(), nil
}

func (s *PlayerService) like(ctx context.Context, req *likeRequest) (map[string]any, error) {
	var t *track.Track
	if req.Track != nil {
		tt := req.Track.toTrack()
		t = &tt
	}
	liked, err := s.session.Like(ctx, req.UserID, t)
	if err != nil {
		return nil, err
	}
	return map[string]any{"track": trackValue(liked)}, nil
}

func (s *PlayerService) unlike(ctx context.Context, req *unlikeRequest) (map[string]any, error) {
	if err := s.session.Unlike(ctx, req.UserID, req.TrackID); err != nil {
		return nil, err
	}
	return map[string]any{}, nil
}

func (s *PlayerService) listLiked(ctx context.Context, req *userRequest) (map[string]any, error) {
	liked, err := s.session.Liked(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"tracks": likedValue(liked), "count": len(liked)}, nil
}

func (s *PlayerService) playLiked(ctx context.Context, req *userRequest) (map[string]any, error) {
	n, err := s.session.PlayLiked(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"count": n, "status": s.status()}, nil
}

func (s *PlayerService) createPlaylist(ctx context.Context, req *createPlaylistRequest) (map[string]any, error) {
	p, err := s.session.CreatePlaylist(ctx, req.UserID, playlist.Playlist{
		Name:        req.Name,
		Description: req.Description,
		IsPublic:    req.IsPublic,
		Tracks:      toTracks(req.Tracks),
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"playlist": playlistValue(p)}, nil
}

func (s *PlayerService) getPlaylist(ctx context.Context, req *playlistRequest) (map[string]any, error) {
	p, err := s.session.GetPlaylist(ctx, req.UserID, req.PlaylistID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"playlist": playlistValue(p)}, nil
}

func (s *PlayerService) listPlaylists(ctx context.Context, req *userRequest) (map[string]any, error) {
	list, err := s.session.ListPlaylists(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(list))
	for i := range list {
		out[i] = playlistValue(&list[i])
	}
	return map[string]any{"playlists": out, "count": len(list)}, nil
}

func (s *PlayerService) updatePlaylist(ctx context.Context, req *updatePlaylistRequest) (map[string]any, error) {
	p, err := s.session.UpdatePlaylist(ctx, req.UserID, req.PlaylistID, req.Name, req.Description)
	if err != nil {
		return nil, err
	}
	return map[string]any{"playlist": playlistValue(p)}, nil
}

func (s *PlayerService) deletePlaylist(ctx context.Context, req *playlistRequest) (map[string]any, error) {
	if err := s.session.DeletePlaylist(ctx, req.UserID, req.PlaylistID); err != nil {
		return nil, err
	}
	return map[string]any{}, nil
}

func (s *PlayerService) addToPlaylist(ctx context.Context, req *addToPlaylistRequest) (map[string]any, error) {
	var t *track.Track
	if req.Track != nil {
		tt := req.Track.toTrack()
		t = &tt
	}
	p, err := s.session.AddToPlaylist(ctx, req.UserID, req.PlaylistID, t)
	if err != nil {
		return nil, err
	}
	return map[string]any{"playlist": playlistValue(p)}, nil
}

func (s *PlayerService) removeFromPlaylist(ctx context.Context, req *removeFromPlaylistRequest) (map[string]any, error) {
	p, err := s.session.RemoveFromPlaylist(ctx, req.UserID, req.PlaylistID, req.TrackID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"playlist": playlistValue(p)}, nil
}

func (s *PlayerService) playPlaylist(ctx context.Context, req *playlistRequest) (map[string]any, error) {
	n, err := s.session.PlayPlaylist(ctx, req.UserID, req.PlaylistID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"count": n, "status": s.status()}, nil
}

func (s *PlayerService) importPlaylist(ctx context.Context, req *importRequest) (map[string]any, error) {
	n, err := s.session.ImportPlaylist(ctx, req.URL)
	if err != nil {
		return nil, err
	}
	return map[string]any{"count": n, "status": s.status()}, nil
}

// watchSnapshots streams the session status on every snapshot. Slow
// clients skip intermediate snapshots and always receive the latest.
func (s *PlayerService) watchSnapshots(
	ctx context.Context,
	r *connect.Request[structpb.Struct],
	stream *connect.ServerStream[structpb.Struct],
) error {
	req := new(watchRequest)
	if err := decodeMessage(r.Msg, req); err != nil {
		return connect.NewError(connect.CodeInvalidArgument, err)
	}

	updates := make(chan playback.Snapshot, 1)
	unsubscribe := s.session.Subscribe(func(snap playback.Snapshot) {
		for {
			select {
			case updates <- snap:
				return
			default:
			}
			// Replace the undelivered snapshot
			select {
			case <-updates:
			default:
			}
		}
	})
	defer unsubscribe()

	zlog.Debug().Msg("api: snapshot watcher connected")
	defer zlog.Debug().Msg("api: snapshot watcher disconnected")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.session.Done():
			return nil
		case snap := <-updates:
			st := s.session.Status()
			st.Snapshot = snap
			msg, err := structpb.NewStruct(statusValue(st, !req.OmitQueue))
			if err != nil {
				return connect.NewError(connect.CodeInternal, err)
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}
