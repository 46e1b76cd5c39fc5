// voicecal assistant process: one OS process per voice session, spawned
// by the session server with a room URL and a scoped token.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ashureev/voicecal/internal/bot"
	"github.com/ashureev/voicecal/internal/calendar"
	"github.com/ashureev/voicecal/internal/config"
	"github.com/joho/godotenv"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	roomURL := flag.String("u", "", "URL of the Daily room to join")
	token := flag.String("t", "", "meeting token for the room")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}
	if err := cfg.ValidateBot(); err != nil {
		slog.Error("Invalid bot configuration", "error", err)
		return 1
	}

	if *roomURL == "" {
		*roomURL = cfg.DailySampleRoomURL
	}
	if *roomURL == "" {
		slog.Error("No room specified, use -u or set DAILY_SAMPLE_ROOM_URL")
		return 1
	}
	if *token == "" {
		slog.Error("No room token specified, use -t")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runSession(ctx, cfg, *roomURL, *token); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Session ended with error", "error", err)
		return 1
	}

	slog.Info("Session ended")
	return 0
}

func runSession(ctx context.Context, cfg *config.Config, roomURL, token string) error {
	secrets, err := calendar.LoadClientSecrets(cfg.GoogleOAuthFile)
	if err != nil {
		return err
	}
	tokens := calendar.NewTokenSource(secrets, cfg.GoogleTokenFile)
	backend := calendar.NewGoogleBackend(cfg.CalendarID, tokens)
	bridge := calendar.NewBridge(backend)

	dispatcher, err := bot.NewDispatcher(bridge)
	if err != nil {
		return err
	}

	engine, err := bot.NewEngine(bot.EngineConfig{
		APIKey: cfg.OpenAIAPIKey,
		Model:  cfg.OpenAIModel,
	}, dispatcher)
	if err != nil {
		return err
	}

	transport, err := bot.DialRoom(ctx, roomURL, token, cfg.BotName)
	if err != nil {
		return err
	}
	defer transport.Close()

	slog.Info("Joined room", "room_url", roomURL, "bot_name", cfg.BotName)

	// Events arrive serialized on one channel, so utterances are
	// handled one at a time in arrival order.
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-transport.Events():
			if !ok {
				return nil
			}
			switch ev.Type {
			case bot.EventTranscript:
				if !ev.Final || ev.Text == "" {
					continue
				}
				reply, err := engine.HandleUtterance(ctx, ev.Text)
				if err != nil {
					slog.Error("Dialogue turn failed", "error", err)
					continue
				}
				if err := transport.Speak(ctx, reply); err != nil {
					slog.Error("Failed to send reply", "error", err)
				}
			case bot.EventParticipantJoined:
				slog.Info("Participant joined", "participant_id", ev.ParticipantID)
			case bot.EventParticipantLeft:
				slog.Info("Participant left, ending session", "participant_id", ev.ParticipantID)
				return nil
			case bot.EventError:
				slog.Warn("Room reported error", "message", ev.Message)
			}
		}
	}
}
