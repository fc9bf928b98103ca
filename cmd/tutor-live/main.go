// Command tutor-live runs a spoken Marathi tutoring session from the
// terminal: microphone audio goes up to the realtime speech model, synthesized
// replies play back through the speakers, and the live transcript prints as
// turns complete.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/vyakaran/tutorlive/pkg/core/live"
	"github.com/vyakaran/tutorlive/pkg/core/providers/geminilive"
	"github.com/vyakaran/tutorlive/pkg/history"
)

type options struct {
	name          string
	quiz          bool
	model         string
	archiveDSN    string
	micDevice     int
	micCmd        string
	ffplayPath    string
	noSpeaker     bool
	speakerVolume int
	debug         bool
}

func main() {
	os.Exit(runMain())
}

func runMain() int {
	_ = godotenv.Load()

	var opt options
	flag.StringVar(&opt.name, "name", "", "Student's name; the tutor addresses them with it (required)")
	flag.BoolVar(&opt.quiz, "quiz", false, "Run a quiz session instead of open conversation")
	flag.StringVar(&opt.model, "model", live.DefaultModel, "Realtime speech model")
	flag.StringVar(&opt.archiveDSN, "archive-dsn", strings.TrimSpace(os.Getenv("DATABASE_URL")), "Postgres DSN for transcript archiving (optional; also reads DATABASE_URL)")
	flag.IntVar(&opt.micDevice, "mic-device", 0, "macOS avfoundation mic device index (default: 0)")
	flag.StringVar(&opt.micCmd, "mic-cmd", "", "Override mic capture command (runs via /bin/sh -lc). If set, --mic-device is ignored.")
	flag.StringVar(&opt.ffplayPath, "ffplay-path", "ffplay", "Path to ffplay executable (default: ffplay)")
	flag.BoolVar(&opt.noSpeaker, "no-speaker", false, "Do not spawn ffplay; simulate playback timing only")
	flag.IntVar(&opt.speakerVolume, "speaker-volume", 80, "ffplay startup volume 0=min 100=max (default: 80)")
	flag.BoolVar(&opt.debug, "debug", false, "Enable debug logging (mic stats, wire frames)")
	flag.Parse()

	level := slog.LevelInfo
	if opt.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)

	if strings.TrimSpace(opt.name) == "" {
		fmt.Fprintln(os.Stderr, "--name is required")
		return 2
	}
	if opt.speakerVolume < 0 || opt.speakerVolume > 100 {
		fmt.Fprintln(os.Stderr, "--speaker-volume must be between 0 and 100")
		return 2
	}
	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "GEMINI_API_KEY is not set (.env is loaded if present)")
		return 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ui := newConsoleUI(os.Stdout)
	consumers := live.Consumers{ui}

	if opt.archiveDSN != "" {
		store, err := history.Open(ctx, opt.archiveDSN, logger)
		if err != nil {
			logger.Error("transcript archive unavailable", "error", err)
			return 1
		}
		defer store.Close()
		consumers = append(consumers, store)
	}

	var sink live.Sink
	if opt.noSpeaker {
		sink = nullSink{}
	} else {
		speaker := newFFPlaySink(opt.ffplayPath, opt.speakerVolume, logger)
		defer speaker.Close()
		sink = speaker
	}

	session := live.NewSession(live.Config{
		Connect: geminilive.Connector(geminilive.Config{
			APIKey: apiKey,
			Logger: logger,
		}),
		Mic: func(ctx context.Context) (live.Source, error) {
			return openMic(ctx, micConfig{
				Device:  opt.micDevice,
				Command: opt.micCmd,
				Logger:  logger,
			})
		},
		Sink:     sink,
		Consumer: consumers,
		Model:    opt.model,
		Logger:   logger,
	})

	if err := session.Start(ctx, opt.name, opt.quiz); err != nil {
		var serr *live.SessionError
		if errors.As(err, &serr) {
			fmt.Fprintln(os.Stderr, serr.Message)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return 1
	}
	fmt.Println("Speak when ready. Ctrl+C ends the session.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
		logger.Info("shutting down")
		session.Close()
		<-ui.Done()
	case <-ui.Done():
	}

	if msg := ui.ErrMessage(); msg != "" {
		return 1
	}
	return 0
}
