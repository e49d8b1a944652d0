package connect

import (
	"context"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tubebox/internal/app/search"
	"github.com/osa030/tubebox/internal/app/session"
	"github.com/osa030/tubebox/internal/domain/playlist"
	"github.com/osa030/tubebox/internal/infra/ytplaylist"
	"github.com/osa030/tubebox/internal/store"
)

// errorCodes maps domain sentinels to Connect codes, first match wins.
var errorCodes = []struct {
	target error
	code   connect.Code
}{
	{context.Canceled, connect.CodeCanceled},
	{context.DeadlineExceeded, connect.CodeDeadlineExceeded},
	{session.ErrInvalidArgument, connect.CodeInvalidArgument},
	{session.ErrUnsupportedURL, connect.CodeInvalidArgument},
	{search.ErrBlankQuery, connect.CodeInvalidArgument},
	{ytplaylist.ErrInvalidPlaylistURL, connect.CodeInvalidArgument},
	{store.ErrInvalidTrack, connect.CodeInvalidArgument},
	{playlist.ErrNameRequired, connect.CodeInvalidArgument},
	{playlist.ErrNameTooLong, connect.CodeInvalidArgument},
	{playlist.ErrDescriptionTooLong, connect.CodeInvalidArgument},
	{store.ErrNotFound, connect.CodeNotFound},
	{store.ErrNotLiked, connect.CodeNotFound},
	{playlist.ErrTrackNotFound, connect.CodeNotFound},
	{store.ErrAlreadyLiked, connect.CodeAlreadyExists},
	{playlist.ErrDuplicateTrack, connect.CodeAlreadyExists},
	{store.ErrForbidden, connect.CodePermissionDenied},
	{session.ErrNothingToPlay, connect.CodeFailedPrecondition},
	{session.ErrNoCurrentTrack, connect.CodeFailedPrecondition},
	{session.ErrSessionClosed, connect.CodeUnavailable},
	{search.ErrNoResults, connect.CodeUnavailable},
}

// toConnectError converts a domain error into a Connect error.
func toConnectError(err error) error {
	if err == nil {
		return nil
	}
	var ce *connect.Error
	if errors.As(err, &ce) {
		return ce
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.target) {
			return connect.NewError(ec.code, err)
		}
	}
	zlog.Error().Err(err).Msg("api: internal error")
	return connect.NewError(connect.CodeInternal, err)
}
