package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/jwebster45206/novel-engine/internal/config"
	"github.com/jwebster45206/novel-engine/internal/handlers"
	"github.com/jwebster45206/novel-engine/internal/logger"
)

func main() {
	cfg, err := config.LoadConsole()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Logs go to a file so they do not draw over the UI.
	logPath := filepath.Join(os.TempDir(), "novel-console.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logFile.Close()
	}()
	log := logger.SetupWriter(logFile, cfg.Environment, config.ParseLogLevel(cfg.LogLevel))

	api := newAPIClient(cfg.APIBaseURL, &http.Client{Timeout: 30 * time.Second})
	if !api.testConnection() {
		fmt.Fprintf(os.Stderr, "Could not connect to API at %s. Please ensure the API is running.\nTry: docker-compose up -d\n", cfg.APIBaseURL)
		os.Exit(1)
	}

	// An optional session id argument resumes an existing playthrough.
	var session *handlers.SessionResponse
	if len(os.Args) > 1 {
		id, err := uuid.Parse(os.Args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid session id %q: %v\n", os.Args[1], err)
			os.Exit(1)
		}
		session, err = api.getSession(id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	} else {
		session, err = api.createSession()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}
	log.Info("Console session started", "session_id", session.SessionID, "scene_id", session.View.SceneID)

	p := tea.NewProgram(NewConsoleUI(cfg, api, session, log),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Session %s saved. Resume with: console %s\n", session.SessionID, session.SessionID)
}
