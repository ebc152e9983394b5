package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/danieledinun/aitreon-sub001/pkg/backend"
	"github.com/danieledinun/aitreon-sub001/pkg/calllog"
	"github.com/danieledinun/aitreon-sub001/pkg/rtc"
	"github.com/danieledinun/aitreon-sub001/pkg/voicecall"
)

var (
	callRoom   string
	callMic    string
	callRecord bool
	callMax    time.Duration
)

var callCmd = &cobra.Command{
	Use:   "call <creator-id>",
	Short: "Start a voice call with a creator",
	Long: `Start a real-time voice call with a creator's voice agent.

The microphone source is a FIFO (or file) of length-prefixed Opus
frames, configured as call.mic_device or passed with --mic. Remote
audio is recorded next to the call journal unless --record=false.

Press Ctrl+C to hang up.`,
	Args: cobra.ExactArgs(1),
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringVar(&callRoom, "room", "", "room name (default: derived from user and creator)")
	callCmd.Flags().StringVar(&callMic, "mic", "", "mic source path (overrides call.mic_device)")
	callCmd.Flags().BoolVar(&callRecord, "record", true, "record remote audio to the data directory")
	callCmd.Flags().DurationVar(&callMax, "max", 0, "call duration limit (overrides call.max_minutes)")
	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	creatorID := args[0]

	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateForCall(); err != nil {
		return err
	}

	micPath := callMic
	if micPath == "" {
		micPath = cfg.Call.MicDevice
	}

	level := slog.LevelWarn
	if IsVerbose() {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	journal, err := calllog.Open(calllog.Options{Dir: filepath.Join(cfg.DataDir(), "calllog")})
	if err != nil {
		return err
	}
	defer journal.Close()

	api := backend.NewClient(cfg.Backend.BaseURL, backend.WithAPIKey(cfg.Backend.APIKey))
	capture := newFrameCapture(micPath)

	transportOpts := []rtc.TransportOption{
		rtc.WithLogger(log),
		rtc.WithCaptureDevice(capture),
	}
	if len(cfg.Call.ICEServers) > 0 {
		transportOpts = append(transportOpts, rtc.WithICEServers(cfg.Call.ICEServers))
	}
	transport := rtc.NewTransport(transportOpts...)

	room := callRoom
	if room == "" {
		room = fmt.Sprintf("call_%s_%s_%d", cfg.UserID, creatorID, time.Now().UnixMilli())
	}

	expiry := voicecall.ExpiryPolicy{
		MaxDuration:   cfg.MaxDuration(),
		WarningAt:     cfg.WarningAt(),
		AutoTerminate: true,
	}
	if callMax > 0 {
		expiry.MaxDuration = callMax
	}
	if expiry.MaxDuration > 0 && expiry.WarningAt <= 0 {
		expiry.WarningAt = time.Minute
	}

	var sinks voicecall.SinkFactory
	if callRecord {
		sinks = newRecorderFactory(filepath.Join(cfg.DataDir(), "recordings"), log)
	}

	ui := newCallUI(cfg.UserID, creatorID)

	var session *voicecall.CallSession
	session, err = voicecall.NewCallSession(voicecall.SessionConfig{
		UserID:     cfg.UserID,
		CreatorID:  creatorID,
		RoomName:   room,
		Transport:  transport,
		Backend:    api,
		Microphone: capture,
		Sinks:      sinks,
		Expiry:     expiry,
		Logger:     log,
		Handlers: voicecall.Handlers{
			OnConnected: ui.connected,
			OnDisconnected: func(reason voicecall.EndReason) {
				ui.disconnected(reason, session.Elapsed())
			},
			OnPhaseChanged:      ui.phase,
			OnTranscription:     ui.transcription,
			OnCurrentTranscript: ui.currentTranscript,
			OnTimeWarning:       ui.timeWarning,
			OnVideoDisplay:      ui.videoDisplay,
		},
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.connecting(room)
	if err := session.Connect(ctx); err != nil {
		var cerr *voicecall.ConnectError
		if errors.As(err, &cerr) {
			ui.connectFailed(cerr)
		}
		return err
	}

	rec := calllog.CallRecord{
		SessionID: session.ID(),
		RoomName:  room,
		UserID:    cfg.UserID,
		CreatorID: creatorID,
		StartedAt: time.Now(),
	}
	if err := journal.RecordCall(ctx, rec); err != nil {
		log.Warn("call journal write failed", "error", err)
	}

	select {
	case <-ctx.Done():
		session.EndCall()
		<-session.Done()
	case <-session.Done():
	}

	rec.EndedAt = time.Now()
	rec.EndReason = string(ui.endReason())
	if err := journal.RecordCall(context.Background(), rec); err != nil {
		log.Warn("call journal write failed", "error", err)
	}
	for _, entry := range session.Transcript() {
		err := journal.AppendTranscript(context.Background(), session.ID(), calllog.TranscriptEntry{
			Speaker:   entry.Speaker,
			Text:      entry.Text,
			TrackID:   entry.TrackID,
			Timestamp: entry.Timestamp,
		})
		if err != nil {
			log.Warn("transcript journal write failed", "error", err)
			break
		}
	}

	ui.journaled(session.ID())
	return nil
}
