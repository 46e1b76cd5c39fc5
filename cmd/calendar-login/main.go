// voicecal-calendar-login seeds the Google Calendar token cache through
// the interactive OAuth flow. Run it once before starting assistant
// processes on a new host.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ashureev/voicecal/internal/calendar"
	"github.com/ashureev/voicecal/internal/config"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	secrets, err := calendar.LoadClientSecrets(cfg.GoogleOAuthFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load client secrets:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := calendar.Login(ctx, secrets, cfg.GoogleTokenFile); err != nil {
		fmt.Fprintln(os.Stderr, "login failed:", err)
		os.Exit(1)
	}

	fmt.Println("Token cache written to", cfg.GoogleTokenFile)
}
