// Package main provides the command line client for the voice memo daemon.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/voicememo/internal/api/connect"
	"github.com/osa030/voicememo/internal/app/notification"
	"github.com/osa030/voicememo/internal/app/session/state"
	"github.com/osa030/voicememo/internal/domain/timecode"
)

var (
	app    = kingpin.New("memoctl", "Voice memo daemon client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Control token").Envar("MEMO_CONTROL_TOKEN").String()

	statusCmd = app.Command("status", "Show the session status")

	recordCmd = app.Command("record", "Start recording, or stop and load the recording")

	playCmd = app.Command("play", "Toggle play/pause")
	stopCmd = app.Command("stop", "Stop playback and rewind")

	seekCmd      = app.Command("seek", "Seek to a fraction of the recording")
	seekFraction = seekCmd.Arg("fraction", "Position in [0,1]").Required().Float64()

	volumeCmd   = app.Command("volume", "Set playback volume")
	volumeValue = volumeCmd.Arg("volume", "Volume in [0,1]").Required().Float64()

	muteCmd   = app.Command("mute", "Mute playback")
	unmuteCmd = app.Command("unmute", "Unmute playback")

	rateCmd     = app.Command("rate", "Set playback rate")
	rateValue   = rateCmd.Arg("rate", "Rate in (0,32]").Required().Float64()
	ratePitchOn = rateCmd.Flag("correct-pitch", "Keep pitch when changing rate").Default("true").Bool()

	watchCmd = app.Command("watch", "Stream session changes")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := apiconnect.NewClient(http.DefaultClient, *server, *token)
	ctx := context.Background()

	switch command {
	case statusCmd.FullCommand():
		status, err := client.GetStatus(ctx)
		exitOnError(err)
		printStatus(status)
	case recordCmd.FullCommand():
		printResponse(client.ToggleRecord(ctx))
	case playCmd.FullCommand():
		printResponse(client.TogglePlayPause(ctx))
	case stopCmd.FullCommand():
		printResponse(client.StopPlayback(ctx))
	case seekCmd.FullCommand():
		seek(ctx, client, *seekFraction)
	case volumeCmd.FullCommand():
		printResponse(client.SetVolume(ctx, *volumeValue))
	case muteCmd.FullCommand():
		printResponse(client.SetMuted(ctx, true))
	case unmuteCmd.FullCommand():
		printResponse(client.SetMuted(ctx, false))
	case rateCmd.FullCommand():
		printResponse(client.SetRate(ctx, *rateValue, *ratePitchOn))
	case watchCmd.FullCommand():
		watch(ctx, client)
	}
}

// seek performs a complete slider drag ending at fraction.
func seek(ctx context.Context, client *apiconnect.Client, fraction float64) {
	resp, err := client.SeekBegin(ctx)
	exitOnError(err)
	if !resp.Accepted {
		printResponse(resp, nil)
		return
	}
	printResponse(client.SeekComplete(ctx, fraction))
}

func watch(ctx context.Context, client *apiconnect.Client) {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Println("Watching session. Press Ctrl+C to exit.")
	err := client.Subscribe(ctx, func(n *notification.Notification) error {
		fmt.Printf("[Sequence: %d] %s\n", n.SequenceNo, n.Type)
		printSnapshot(n.Snapshot)
		return nil
	})
	if ctx.Err() != nil {
		fmt.Println("\nUnsubscribed.")
		return
	}
	exitOnError(err)
}

func printResponse(resp *apiconnect.CommandResponse, err error) {
	exitOnError(err)
	switch {
	case !resp.Accepted:
		fmt.Printf("Rejected [%s]\n", resp.Code)
	case resp.Code != "":
		fmt.Printf("Accepted with warning [%s]\n", resp.Code)
	default:
		fmt.Println("Accepted")
	}
	printStatus(&resp.Status)
}

func printStatus(s *apiconnect.Status) {
	fmt.Printf("Session ID: %s\n", s.SessionID)
	if !s.PermissionGranted {
		fmt.Println("  Recording permission: denied")
	}
	printSnapshot(s.Snapshot)
	fmt.Printf("  Controls: record=%v playback=%v\n", s.CanRecord, s.PlaybackAllowed)
}

func printSnapshot(snap state.Snapshot) {
	fmt.Printf("  Mode: %s (version %d)\n", snap.Mode, snap.Version)
	if snap.IsLoading {
		fmt.Println("  Loading...")
	}
	if snap.Recording != nil {
		marker := ""
		if snap.Recording.IsRecording {
			marker = " (recording)"
		}
		fmt.Printf("  Recording: %s%s\n", snap.RecordingTimestamp(), marker)
	}
	if snap.Playback != nil {
		fmt.Printf("  Playback: %s %s\n", snap.PlaybackState(), snap.PlaybackTimestamp())
		fmt.Printf("  Volume: %.2f muted=%v rate=%.2f correct_pitch=%v looping=%v\n",
			snap.Playback.Volume, snap.Playback.Muted, snap.Playback.Rate,
			snap.Playback.ShouldCorrectPitch, snap.Playback.IsLooping)
	}
	if snap.IsSeeking {
		dur := int64(0)
		if snap.Playback != nil {
			dur = snap.Playback.DurationMillis
		}
		fmt.Printf("  Seeking: %.0f%% (%s)\n", snap.SeekPreview*100,
			timecode.FormatMillis(int64(snap.SeekPreview*float64(dur))))
	}
	if snap.LastError != nil {
		level := "Error"
		if snap.LastError.Warning {
			level = "Warning"
		}
		fmt.Printf("  %s [%s]: %s\n", level, snap.LastError.Kind, snap.LastError.Message)
	}
}

func exitOnError(err error) {
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
