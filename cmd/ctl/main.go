// Package main provides the control CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/tubebox/internal/api/connect"
)

var (
	app     = kingpin.New("tubebox-ctl", "tubebox control client")
	server  = app.Flag("server", "Server address").Default("http://localhost:8080").Envar("TUBEBOX_SERVER").String()
	token   = app.Flag("token", "Control token").Envar("TUBEBOX_CONTROL_TOKEN").String()
	user    = app.Flag("user", "User ID for likes and playlists").Envar("TUBEBOX_USER").String()
	timeout = app.Flag("timeout", "Request timeout").Default("90s").Duration()

	statusCmd    = app.Command("status", "Show the session status")
	watchCmd     = app.Command("watch", "Stream status updates")
	watchVerbose = watchCmd.Flag("queue", "Include the queue in every update").Bool()

	searchCmd   = app.Command("search", "Search the catalog and play the results")
	searchQuery = searchCmd.Arg("query", "Search query").Required().Strings()

	playCmd     = app.Command("play", "Resume playback")
	pauseCmd    = app.Command("pause", "Pause playback")
	stopCmd     = app.Command("stop", "Stop playback")
	nextCmd     = app.Command("next", "Skip to the next track")
	prevCmd     = app.Command("prev", "Go back to the previous track")
	retryCmd    = app.Command("retry", "Reload the current track")
	jumpCmd     = app.Command("jump", "Play the track at a queue index")
	jumpIndex   = jumpCmd.Arg("index", "Zero-based queue index").Required().Int()
	seekCmd     = app.Command("seek", "Seek within the current track")
	seekSeconds = seekCmd.Arg("seconds", "Position in seconds").Required().Float64()
	volumeCmd   = app.Command("volume", "Set the volume")
	volumeLevel = volumeCmd.Arg("percent", "Volume 0-100").Required().Int()

	sleepCmd       = app.Command("sleep", "Pause playback after a delay")
	sleepDuration  = sleepCmd.Arg("duration", "Delay such as 30m or 1h15m").Required().String()
	sleepCancelCmd = app.Command("sleep-cancel", "Cancel the sleep timer")

	likeCmd      = app.Command("like", "Like the current track")
	unlikeCmd    = app.Command("unlike", "Unlike a track (default: current track)")
	unlikeTrack  = unlikeCmd.Arg("track-id", "Track ID").String()
	likedCmd     = app.Command("liked", "List liked tracks")
	playLikedCmd = app.Command("play-liked", "Play liked tracks")

	playlistsCmd = app.Command("playlists", "List playlists")

	playlistCmd    = app.Command("playlist", "Manage playlists")
	plCreateCmd    = playlistCmd.Command("create", "Create a playlist")
	plCreateName   = plCreateCmd.Arg("name", "Playlist name").Required().String()
	plCreateDesc   = plCreateCmd.Flag("description", "Playlist description").String()
	plCreatePublic = plCreateCmd.Flag("public", "Make the playlist public").Bool()
	plShowCmd      = playlistCmd.Command("show", "Show a playlist")
	plShowID       = plShowCmd.Arg("id", "Playlist ID").Required().String()
	plRenameCmd    = playlistCmd.Command("rename", "Rename a playlist")
	plRenameID     = plRenameCmd.Arg("id", "Playlist ID").Required().String()
	plRenameName   = plRenameCmd.Arg("name", "New name").Required().String()
	plRenameDesc   = plRenameCmd.Flag("description", "New description").String()
	plDeleteCmd    = playlistCmd.Command("delete", "Delete a playlist")
	plDeleteID     = plDeleteCmd.Arg("id", "Playlist ID").Required().String()
	plAddCmd       = playlistCmd.Command("add", "Add the current track to a playlist")
	plAddID        = plAddCmd.Arg("id", "Playlist ID").Required().String()
	plRemoveCmd    = playlistCmd.Command("remove", "Remove a track from a playlist")
	plRemoveID     = plRemoveCmd.Arg("id", "Playlist ID").Required().String()
	plRemoveTrack  = plRemoveCmd.Arg("track-id", "Track ID").Required().String()
	plPlayCmd      = playlistCmd.Command("play", "Play a playlist")
	plPlayID       = plPlayCmd.Arg("id", "Playlist ID").Required().String()
	importCmd      = app.Command("import", "Import and play a public playlist")
	importURL      = importCmd.Arg("url", "YouTube or Spotify playlist URL").Required().String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := apiconnect.NewClient(http.DefaultClient, *server, *token)

	if command == watchCmd.FullCommand() {
		watch(client)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	name, req, show := resolve(command)
	if name == "" {
		app.FatalUsage("unknown command %q", command)
	}
	resp, err := client.Call(ctx, name, req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	show(resp)
}

// resolve maps a CLI command to a procedure, its request and a printer.
func resolve(command string) (string, map[string]any, func(map[string]any)) {
	withUser := func(m map[string]any) map[string]any {
		if m == nil {
			m = map[string]any{}
		}
		if *user != "" {
			m["user_id"] = *user
		}
		return m
	}

	switch command {
	case statusCmd.FullCommand():
		return apiconnect.ProcGetSnapshot, nil, printStatus
	case searchCmd.FullCommand():
		return apiconnect.ProcSearch, map[string]any{"query": strings.Join(*searchQuery, " ")}, printSearch
	case playCmd.FullCommand():
		return apiconnect.ProcPlay, nil, printStatus
	case pauseCmd.FullCommand():
		return apiconnect.ProcPause, nil, printStatus
	case stopCmd.FullCommand():
		return apiconnect.ProcStop, nil, printStatus
	case retryCmd.FullCommand():
		return apiconnect.ProcRetry, nil, printStatus
	case nextCmd.FullCommand():
		return apiconnect.ProcNext, nil, printMove
	case prevCmd.FullCommand():
		return apiconnect.ProcPrevious, nil, printMove
	case jumpCmd.FullCommand():
		return apiconnect.ProcPlayTrack, map[string]any{"index": *jumpIndex}, printMove
	case seekCmd.FullCommand():
		return apiconnect.ProcSeek, map[string]any{"seconds": *seekSeconds}, printStatus
	case volumeCmd.FullCommand():
		return apiconnect.ProcSetVolume, map[string]any{"volume": *volumeLevel}, printStatus
	case sleepCmd.FullCommand():
		return apiconnect.ProcStartSleepTimer, map[string]any{"duration": *sleepDuration}, printStatus
	case sleepCancelCmd.FullCommand():
		return apiconnect.ProcCancelSleepTimer, nil, printStatus
	case likeCmd.FullCommand():
		return apiconnect.ProcLike, withUser(nil), func(m map[string]any) {
			fmt.Printf("Liked: %s\n", trackLine(asMap(m["track"])))
		}
	case unlikeCmd.FullCommand():
		return apiconnect.ProcUnlike, withUser(map[string]any{"track_id": *unlikeTrack}), func(map[string]any) {
			fmt.Println("Unliked")
		}
	case likedCmd.FullCommand():
		return apiconnect.ProcListLiked, withUser(nil), printLiked
	case playLikedCmd.FullCommand():
		return apiconnect.ProcPlayLiked, withUser(nil), printCount
	case playlistsCmd.FullCommand():
		return apiconnect.ProcListPlaylists, withUser(nil), printPlaylists
	case plCreateCmd.FullCommand():
		return apiconnect.ProcCreatePlaylist, withUser(map[string]any{
			"name":        *plCreateName,
			"description": *plCreateDesc,
			"is_public":   *plCreatePublic,
		}), printPlaylist
	case plShowCmd.FullCommand():
		return apiconnect.ProcGetPlaylist, withUser(map[string]any{"playlist_id": *plShowID}), printPlaylist
	case plRenameCmd.FullCommand():
		return apiconnect.ProcUpdatePlaylist, withUser(map[string]any{
			"playlist_id": *plRenameID,
			"name":        *plRenameName,
			"description": *plRenameDesc,
		}), printPlaylist
	case plDeleteCmd.FullCommand():
		return apiconnect.ProcDeletePlaylist, withUser(map[string]any{"playlist_id": *plDeleteID}), func(map[string]any) {
			fmt.Println("Deleted")
		}
	case plAddCmd.FullCommand():
		return apiconnect.ProcAddToPlaylist, withUser(map[string]any{"playlist_id": *plAddID}), printPlaylist
	case plRemoveCmd.FullCommand():
		return apiconnect.ProcRemoveFromPlaylist, withUser(map[string]any{
			"playlist_id": *plRemoveID,
			"track_id":    *plRemoveTrack,
		}), printPlaylist
	case plPlayCmd.FullCommand():
		return apiconnect.ProcPlayPlaylist, withUser(map[string]any{"playlist_id": *plPlayID}), printCount
	case importCmd.FullCommand():
		return apiconnect.ProcImportPlaylist, map[string]any{"url": *importURL}, printCount
	}
	return "", nil, nil
}

func watch(client *apiconnect.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("Watching status. Press Ctrl+C to exit.")
	err := client.Watch(ctx, map[string]any{"omit_queue": !*watchVerbose}, func(m map[string]any) {
		fmt.Println()
		printStatus(m)
	})
	if err != nil {
		fmt.Printf("Stream error: %v\n", err)
		os.Exit(1)
	}
}

func printStatus(m map[string]any) {
	snap := asMap(m["snapshot"])
	fmt.Printf("Session: %v", m["phase"])
	if e, _ := m["init_error"].(string); e != "" {
		fmt.Printf(" (%s)", e)
	}
	fmt.Println()

	fmt.Printf("State:   %v  volume=%v%%\n", snap["state"], snap["volume"])
	if cur := asMap(snap["current_track"]); cur != nil {
		fmt.Printf("Track:   %s\n", trackLine(cur))
		fmt.Printf("Time:    %s / %s\n", clock(snap["current_time"]), clock(snap["duration"]))
	}
	if n, _ := snap["queue_length"].(float64); n > 0 {
		idx, _ := snap["current_index"].(float64)
		fmt.Printf("Queue:   %s of %s\n", humanize.Ordinal(int(idx)+1), humanize.Comma(int64(n)))
	}
	for i, t := range asSlice(snap["queue"]) {
		fmt.Printf("  %3d. %s\n", i, trackLine(asMap(t)))
	}
	if e, _ := snap["error"].(string); e != "" {
		fmt.Printf("Error:   %s\n", e)
	}

	if origin := asMap(m["origin"]); origin != nil && origin["source"] != "" {
		fmt.Printf("Origin:  %v %v\n", origin["source"], origin["label"])
	}
	if timer := asMap(m["sleep_timer"]); timer != nil && timer["active"] == true {
		remaining, _ := timer["remaining_seconds"].(float64)
		at := time.Now().Add(time.Duration(remaining * float64(time.Second)))
		fmt.Printf("Sleep:   pauses %s\n", humanize.Time(at))
	}
}

func printSearch(m map[string]any) {
	tracks := asSlice(m["tracks"])
	fmt.Printf("%v results from %v\n", m["count"], m["provider"])
	for i, t := range tracks {
		fmt.Printf("  %3d. %s\n", i, trackLine(asMap(t)))
	}
}

func printMove(m map[string]any) {
	if m["moved"] != true {
		fmt.Println("No track to move to")
	}
	printStatus(asMap(m["status"]))
}

func printCount(m map[string]any) {
	n, _ := m["count"].(float64)
	fmt.Printf("Queued %s tracks\n", humanize.Comma(int64(n)))
	printStatus(asMap(m["status"]))
}

func printLiked(m map[string]any) {
	for _, v := range asSlice(m["tracks"]) {
		t := asMap(v)
		fmt.Printf("  %s  (%s)\n", trackLine(t), ago(t["liked_at"]))
	}
	fmt.Printf("%v liked tracks\n", m["count"])
}

func printPlaylists(m map[string]any) {
	for _, v := range asSlice(m["playlists"]) {
		p := asMap(v)
		visibility := "private"
		if p["is_public"] == true {
			visibility = "public"
		}
		fmt.Printf("  %v  %v  [%v tracks, %s, %s] updated %s\n",
			p["id"], p["name"], p["track_count"], clock(p["total_duration"]), visibility, ago(p["updated_at"]))
	}
	fmt.Printf("%v playlists\n", m["count"])
}

func printPlaylist(m map[string]any) {
	p := asMap(m["playlist"])
	if p == nil {
		fmt.Println("Unexpected response")
		return
	}
	fmt.Printf("Playlist: %v (%v)\n", p["name"], p["id"])
	if d, _ := p["description"].(string); d != "" {
		fmt.Printf("  %s\n", d)
	}
	fmt.Printf("Owner: %v  Public: %v  Length: %s  Updated: %s\n",
		p["user_id"], p["is_public"], clock(p["total_duration"]), ago(p["updated_at"]))
	for i, t := range asSlice(p["tracks"]) {
		fmt.Printf("  %3d. %s\n", i+1, trackLine(asMap(t)))
	}
}

func trackLine(t map[string]any) string {
	if t == nil {
		return "-"
	}
	line := fmt.Sprintf("%v - %v", t["title"], t["channel_title"])
	if d, _ := t["duration"].(string); d != "" {
		line += " [" + d + "]"
	}
	return line + fmt.Sprintf(" (%v)", t["id"])
}

// clock formats seconds as m:ss or h:mm:ss.
func clock(v any) string {
	secs, _ := v.(float64)
	d := time.Duration(secs) * time.Second
	h := int(d / time.Hour)
	mm := int(d/time.Minute) % 60
	ss := int(d/time.Second) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, mm, ss)
	}
	return fmt.Sprintf("%d:%02d", mm, ss)
}

func ago(v any) string {
	s, _ := v.(string)
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return "?"
	}
	return humanize.Time(t)
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}
