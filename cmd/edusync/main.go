// Command edusync is the realtime institute dashboard.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/edusuite/edusync/internal/api"
	"github.com/edusuite/edusync/internal/app"
	"github.com/edusuite/edusync/internal/credential"
	"github.com/edusuite/edusync/internal/logger"
	"github.com/edusuite/edusync/internal/model"
	"github.com/edusuite/edusync/internal/prefs"
	"github.com/edusuite/edusync/internal/realtime"
	"github.com/edusuite/edusync/internal/sound"
	"github.com/edusuite/edusync/internal/store"
	appsync "github.com/edusuite/edusync/internal/sync"
)

func main() {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to the config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "edusync: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer log.Sync()

	prefStore, err := prefs.NewStore(model.DefaultDataPath())
	if err != nil {
		return fmt.Errorf("opening preference store: %w", err)
	}
	defer prefStore.Close()

	token, err := credential.Get(credential.TokenKey)
	if err != nil {
		log.Debugw("no stored session", "error", err)
		token = ""
	}

	client := api.NewClient(cfg.Server.BaseURL,
		time.Duration(cfg.Server.TimeoutSec)*time.Second, log)

	conn := realtime.NewManager(socketURL(cfg.Server), token, log)

	soundCtl := sound.New(prefStore, sound.BellPlayer{}, log)

	notifications := store.NewNotificationStore(client, soundCtl, log)
	messages := store.NewMessageStore(client, conn, log)
	board := store.NewBoardStore(client, conn, log)

	reconciler := appsync.New(
		time.Duration(cfg.Sync.RefreshIntervalSec)*time.Second,
		cfg.Sync.MaxRetries, log)

	root := app.New(app.Deps{
		Client:        client,
		Conn:          conn,
		Notifications: notifications,
		Messages:      messages,
		Board:         board,
		Reconciler:    reconciler,
		Prefs:         prefStore,
		Log:           log,
		Token:         token,
	})

	program := tea.NewProgram(root, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// socketURL returns the configured websocket endpoint, deriving one from
// the REST base URL when unset.
func socketURL(server model.ServerConfig) string {
	if server.SocketURL != "" {
		return server.SocketURL
	}
	url := server.BaseURL
	url = strings.Replace(url, "https://", "wss://", 1)
	url = strings.Replace(url, "http://", "ws://", 1)
	return strings.TrimRight(url, "/") + "/ws"
}
