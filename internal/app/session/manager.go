// Package session provides the session manager: the host that turns searches,
// liked tracks and playlists into queues for the playback controller.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tubebox/internal/app/filter"
	"github.com/osa030/tubebox/internal/app/playback"
	"github.com/osa030/tubebox/internal/app/search"
	"github.com/osa030/tubebox/internal/app/sleeptimer"
	"github.com/osa030/tubebox/internal/domain/playlist"
	"github.com/osa030/tubebox/internal/domain/track"
	"github.com/osa030/tubebox/internal/infra/config"
	"github.com/osa030/tubebox/internal/store"
)

// Errors
var (
	ErrNothingToPlay   = errors.New("nothing to play")
	ErrNoCurrentTrack  = errors.New("no current track")
	ErrUnsupportedURL  = errors.New("no importer accepts this URL")
	ErrSessionClosed   = errors.New("session is closed")
	ErrInvalidArgument = errors.New("invalid argument")
)

// DefaultHost is the element the widget is attached to.
const DefaultHost = "player"

// Searcher runs a catalog search.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) (search.Result, error)
}

// Config holds session configuration.
type Config struct {
	DefaultUserID   string
	SearchLimit     int
	SleepTimerScope string // config.SleepTimerScopeGlobal or config.SleepTimerScopeSession
	InitTimeout     time.Duration
	Host            string
}

// Options wires the manager's collaborators.
type Options struct {
	Controller *playback.Controller
	Searcher   Searcher
	Importers  []search.Importer
	Filters    *filter.Chain
	Store      store.Store
	Config     Config
}

// Origin describes where the active queue came from.
type Origin struct {
	Source filter.Source // Empty until the first queue is set
	Label  string        // Search query, playlist name or import URL
	ID     string        // Playlist ID for SourcePlaylist
}

// Status is a point-in-time view of the session.
type Status struct {
	Phase      Phase
	InitError  string
	Snapshot   playback.Snapshot
	SleepTimer sleeptimer.State
	Origin     Origin
}

// Manager owns the playback controller and the collaborators that feed it.
type Manager struct {
	mu sync.RWMutex

	cfg        Config
	controller *playback.Controller
	searcher   Searcher
	importers  []search.Importer
	filters    *filter.Chain
	store      store.Store

	phase   Phase
	started bool
	initErr error
	origin  Origin

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a session manager. Start must be called to initialize
// the widget.
func NewManager(opts Options) (*Manager, error) {
	if opts.Controller == nil {
		return nil, errors.New("controller is required")
	}
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if opts.Filters == nil {
		opts.Filters = filter.NewChain()
	}

	cfg := opts.Config
	if cfg.DefaultUserID == "" {
		cfg.DefaultUserID = "local"
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 20
	}
	if cfg.SleepTimerScope == "" {
		cfg.SleepTimerScope = config.SleepTimerScopeGlobal
	}
	if cfg.InitTimeout <= 0 {
		cfg.InitTimeout = 10 * time.Second
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:        cfg,
		controller: opts.Controller,
		searcher:   opts.Searcher,
		importers:  opts.Importers,
		filters:    opts.Filters,
		store:      opts.Store,
		phase:      PhaseInitializing,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}, nil
}

// Start initializes the widget in the background. Commands issued before
// the widget is ready are handled by the controller as usual.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.started || m.phase == PhaseClosed {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	go func() {
		defer close(m.done)

		ctx, cancel := context.WithTimeout(m.ctx, m.cfg.InitTimeout)
		defer cancel()

		err := m.controller.Initialize(ctx, m.cfg.Host)

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.phase == PhaseClosed {
			return
		}
		if err != nil {
			m.phase = PhaseFailed
			m.initErr = err
			zlog.Error().Err(err).Msg("session: widget initialization failed")
			return
		}
		m.phase = PhaseReady
		zlog.Info().Msg("session: widget ready")
	}()
}

// Close stops initialization and closes the controller.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.phase == PhaseClosed {
		m.mu.Unlock()
		return nil
	}
	m.phase = PhaseClosed
	started := m.started
	m.mu.Unlock()

	m.cancel()
	err := m.controller.Close()
	if !started {
		return err
	}
	select {
	case <-m.done:
	case <-time.After(m.cfg.InitTimeout):
		zlog.Warn().Msg("session: initialization did not stop in time")
	}
	return err
}

// Done is closed when the session is closed.
func (m *Manager) Done() <-chan struct{} {
	return m.ctx.Done()
}

// Wait blocks until background initialization finishes or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	select {
	case <-m.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initErr
}

// Status returns the session status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	st := Status{
		Phase:  m.phase,
		Origin: m.origin,
	}
	if m.initErr != nil {
		st.InitError = m.initErr.Error()
	}
	m.mu.RUnlock()

	st.Snapshot = m.controller.Snapshot()
	st.SleepTimer = m.controller.SleepTimer()
	return st
}

// Subscribe registers a snapshot listener. The current snapshot is delivered
// first. The returned function unsubscribes.
func (m *Manager) Subscribe(fn func(playback.Snapshot)) func() {
	return m.controller.Subscribe(fn)
}

// UserID returns userID, or the configured default when blank.
func (m *Manager) UserID(userID string) string {
	if strings.TrimSpace(userID) == "" {
		return m.cfg.DefaultUserID
	}
	return userID
}

// Search runs query through the provider chain and the filter chain, and
// starts playing the results from the first track. When nothing survives
// filtering the queue is left untouched.
func (m *Manager) Search(ctx context.Context, query string) (search.Result, error) {
	if err := m.checkOpen(); err != nil {
		return search.Result{}, err
	}
	if m.searcher == nil {
		return search.Result{}, errors.New("no search provider configured")
	}

	result, err := m.searcher.Search(ctx, query, m.cfg.SearchLimit)
	if err != nil {
		if errors.Is(err, search.ErrBlankQuery) {
			return search.Result{}, errors.Mark(err, ErrInvalidArgument)
		}
		return search.Result{}, errors.Wrapf(err, "search %q", query)
	}

	result.Tracks = m.filters.Apply(ctx, result.Tracks, filter.SourceSearch)
	zlog.Info().Msgf("session: search %q: %d playable results from %s", query, len(result.Tracks), result.DisplayName)
	if len(result.Tracks) > 0 {
		m.replaceQueue(result.Tracks, 0, Origin{Source: filter.SourceSearch, Label: strings.TrimSpace(query)})
	}
	return result, nil
}

// SetQueue replaces the queue with tracks supplied by the caller.
func (m *Manager) SetQueue(tracks []track.Track, start int) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if len(tracks) > 0 && (start < 0 || start >= len(tracks)) {
		return errors.Mark(errors.Newf("start index %d out of range [0, %d)", start, len(tracks)), ErrInvalidArgument)
	}
	m.replaceQueue(tracks, start, Origin{})
	return nil
}

// PlayLiked plays the user's liked tracks, newest first.
func (m *Manager) PlayLiked(ctx context.Context, userID string) (int, error) {
	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	liked, err := m.store.Liked(ctx, m.UserID(userID))
	if err != nil {
		return 0, errors.Wrap(err, "load liked tracks")
	}

	tracks := make([]track.Track, len(liked))
	for i, l := range liked {
		tracks[i] = l.Track
	}
	return m.playSet(ctx, tracks, Origin{Source: filter.SourceLiked, Label: "Liked"})
}

// PlayPlaylist plays a stored playlist from its first track.
func (m *Manager) PlayPlaylist(ctx context.Context, userID, id string) (int, error) {
	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	p, err := m.store.Get(ctx, m.UserID(userID), id)
	if err != nil {
		return 0, err
	}
	return m.playSet(ctx, p.Tracks, Origin{Source: filter.SourcePlaylist, Label: p.Name, ID: p.ID})
}

// ImportPlaylist fetches a public playlist through the first importer that
// accepts url and plays it.
func (m *Manager) ImportPlaylist(ctx context.Context, url string) (int, error) {
	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	url = strings.TrimSpace(url)
	for _, imp := range m.importers {
		if !imp.CanImport(url) {
			continue
		}
		tracks, err := imp.Import(ctx, url)
		if err != nil {
			return 0, errors.Wrapf(err, "import %s", url)
		}
		return m.playSet(ctx, tracks, Origin{Source: filter.SourceImport, Label: url})
	}
	return 0, errors.Wrapf(ErrUnsupportedURL, "%q", url)
}

// Like marks t as liked. A nil t likes the current track.
func (m *Manager) Like(ctx context.Context, userID string, t *track.Track) (track.Track, error) {
	if err := m.checkOpen(); err != nil {
		return track.Track{}, err
	}
	target, err := m.resolveTrack(t)
	if err != nil {
		return track.Track{}, err
	}
	if err := m.store.Like(ctx, m.UserID(userID), target); err != nil {
		return track.Track{}, err
	}
	zlog.Info().Msgf("session: liked %s (%s)", target.ID, target.Title)
	return target, nil
}

// Unlike removes a liked track. A blank trackID unlikes the current track.
func (m *Manager) Unlike(ctx context.Context, userID, trackID string) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if trackID == "" {
		current, err := m.resolveTrack(nil)
		if err != nil {
			return err
		}
		trackID = current.ID
	}
	return m.store.Unlike(ctx, m.UserID(userID), trackID)
}

// IsLiked reports whether the user liked the track.
func (m *Manager) IsLiked(ctx context.Context, userID, trackID string) (bool, error) {
	if err := m.checkOpen(); err != nil {
		return false, err
	}
	return m.store.IsLiked(ctx, m.UserID(userID), trackID)
}

// Liked returns the user's liked tracks, newest first.
func (m *Manager) Liked(ctx context.Context, userID string) ([]track.Liked, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	return m.store.Liked(ctx, m.UserID(userID))
}

// CreatePlaylist creates a playlist owned by userID.
func (m *Manager) CreatePlaylist(ctx context.Context, userID string, p playlist.Playlist) (*playlist.Playlist, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	p.UserID = m.UserID(userID)
	return m.store.Create(ctx, p)
}

// GetPlaylist returns a playlist visible to userID.
func (m *Manager) GetPlaylist(ctx context.Context, userID, id string) (*playlist.Playlist, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	return m.store.Get(ctx, m.UserID(userID), id)
}

// ListPlaylists returns the user's playlists.
func (m *Manager) ListPlaylists(ctx context.Context, userID string) ([]playlist.Playlist, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	return m.store.List(ctx, m.UserID(userID))
}

// UpdatePlaylist changes a playlist's name and description.
func (m *Manager) UpdatePlaylist(ctx context.Context, userID, id, name, description string) (*playlist.Playlist, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	return m.store.Update(ctx, m.UserID(userID), id, name, description)
}

// DeletePlaylist deletes a playlist.
func (m *Manager) DeletePlaylist(ctx context.Context, userID, id string) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	return m.store.Delete(ctx, m.UserID(userID), id)
}

// AddToPlaylist appends t to a playlist. A nil t adds the current track.
func (m *Manager) AddToPlaylist(ctx context.Context, userID, id string, t *track.Track) (*playlist.Playlist, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	target, err := m.resolveTrack(t)
	if err != nil {
		return nil, err
	}
	return m.store.AddTrack(ctx, m.UserID(userID), id, target)
}

// RemoveFromPlaylist removes a track from a playlist.
func (m *Manager) RemoveFromPlaylist(ctx context.Context, userID, id, trackID string) (*playlist.Playlist, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	return m.store.RemoveTrack(ctx, m.UserID(userID), id, trackID)
}

// Play resumes or starts playback.
func (m *Manager) Play() error {
	return m.do(m.controller.Play)
}

// Pause pauses playback.
func (m *Manager) Pause() error {
	return m.do(m.controller.Pause)
}

// Next advances to the next track. Returns false at the end of the queue.
func (m *Manager) Next() (bool, error) {
	return m.move(m.controller.Next)
}

// Previous goes back one track. Returns false at the start of the queue.
func (m *Manager) Previous() (bool, error) {
	return m.move(m.controller.Previous)
}

// PlayTrack jumps to index in the current queue.
func (m *Manager) PlayTrack(index int) (bool, error) {
	return m.move(func() bool { return m.controller.PlayTrack(index) })
}

// SeekTo moves the playback position.
func (m *Manager) SeekTo(seconds float64) error {
	return m.do(func() { m.controller.SeekTo(seconds) })
}

// SetVolume sets the volume.
func (m *Manager) SetVolume(percent int) error {
	return m.do(func() { m.controller.SetVolume(percent) })
}

// Stop stops playback and returns to idle, keeping the queue.
func (m *Manager) Stop() error {
	return m.do(m.controller.Stop)
}

// Retry reloads the current track after a load error.
func (m *Manager) Retry() (bool, error) {
	return m.move(m.controller.Retry)
}

// StartSleepTimer pauses playback after d.
func (m *Manager) StartSleepTimer(d time.Duration) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if d <= 0 {
		return errors.Mark(errors.Newf("sleep timer duration must be positive, got %v", d), ErrInvalidArgument)
	}
	if !m.controller.StartSleepTimer(d) {
		return ErrSessionClosed
	}
	return nil
}

// CancelSleepTimer cancels a pending sleep timer.
func (m *Manager) CancelSleepTimer() error {
	return m.do(m.controller.CancelSleepTimer)
}

func (m *Manager) do(fn func()) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	fn()
	return nil
}

func (m *Manager) move(fn func() bool) (bool, error) {
	if err := m.checkOpen(); err != nil {
		return false, err
	}
	return fn(), nil
}

func (m *Manager) playSet(ctx context.Context, tracks []track.Track, origin Origin) (int, error) {
	tracks = m.filters.Apply(ctx, tracks, origin.Source)
	if len(tracks) == 0 {
		return 0, errors.Wrapf(ErrNothingToPlay, "%s %s", strings.ToLower(string(origin.Source)), origin.Label)
	}
	m.replaceQueue(tracks, 0, origin)
	return len(tracks), nil
}

// replaceQueue swaps the active track set. With session scope the sleep
// timer belongs to the track set it was started on.
func (m *Manager) replaceQueue(tracks []track.Track, start int, origin Origin) {
	m.mu.Lock()
	m.origin = origin
	m.mu.Unlock()

	if m.cfg.SleepTimerScope == config.SleepTimerScopeSession {
		m.controller.CancelSleepTimer()
	}
	m.controller.SetQueue(tracks, start)
}

func (m *Manager) resolveTrack(t *track.Track) (track.Track, error) {
	if t != nil {
		if err := store.ValidateTrack(*t); err != nil {
			return track.Track{}, errors.Mark(err, ErrInvalidArgument)
		}
		return *t, nil
	}
	snap := m.controller.Snapshot()
	if snap.CurrentTrack == nil {
		return track.Track{}, ErrNoCurrentTrack
	}
	return *snap.CurrentTrack, nil
}

func (m *Manager) checkOpen() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.phase == PhaseClosed {
		return ErrSessionClosed
	}
	return nil
}
