package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lucasviana/agentroom/internal/recording"
)

// record captures microphone audio in timed segments and uploads each one to
// a room's ingestion endpoint, printing transcripts as they come back.
func main() {
	var (
		roomID   = flag.String("room", "", "room ID to stream segments to (required)")
		server   = flag.String("server", "http://localhost:8080", "base URL of the ingestion server")
		interval = flag.Duration("interval", recording.DefaultInterval, "segment length")
		input    = flag.String("input", "", "read audio from this file instead of the microphone (\"-\" for stdin)")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags)

	if *roomID == "" {
		fmt.Fprintln(os.Stderr, "usage: record -room <roomId> [-server url] [-interval 5s] [-input file]")
		os.Exit(2)
	}

	source, err := openSource(*input)
	if err != nil {
		logger.Fatalf("open capture source: %v", err)
	}

	uploader := recording.NewHTTPUploader(*server, &http.Client{Timeout: 2 * time.Minute})

	session, err := recording.NewSession(recording.Config{
		RoomID:   *roomID,
		Interval: *interval,
		Source:   source,
		Uploader: uploader,
		Logger:   logger,
		OnResult: func(res recording.TranscriptionResult) {
			fmt.Printf("[%d] %s\n", res.Sequence, res.Text)
		},
		OnUploadError: func(sequence int, err error) {
			logger.Printf("segment %d lost: %v", sequence, err)
		},
	})
	if err != nil {
		logger.Fatalf("create session: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := session.Start(ctx); err != nil {
		logger.Fatalf("start recording: %v", err)
	}
	logger.Printf("recording to room %s (session %s), Ctrl-C to stop", *roomID, session.ID())

	select {
	case <-ctx.Done():
		session.Stop()
	case <-session.Done():
		// The source ended on its own (end of file, ffmpeg exit).
	}

	session.WaitUploads()
}

func openSource(input string) (recording.CaptureSource, error) {
	switch input {
	case "":
		return recording.NewFFmpegSource(), nil
	case "-":
		return recording.NewReaderSource(os.Stdin), nil
	default:
		f, err := os.Open(input)
		if err != nil {
			return nil, err
		}
		return recording.NewReaderSource(f), nil
	}
}
