// Package main starts the memebox terminal client.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/nhle/memebox/internal/app"
	"github.com/nhle/memebox/internal/credential"
	"github.com/nhle/memebox/internal/directus"
	"github.com/nhle/memebox/internal/gallery"
	"github.com/nhle/memebox/internal/model"
	"github.com/nhle/memebox/internal/notify"
	"github.com/nhle/memebox/internal/session"
	"github.com/nhle/memebox/internal/store"
	appsync "github.com/nhle/memebox/internal/sync"
)

func main() {
	var (
		configPath string
		headless   bool
		debug      bool
	)
	flag.StringVar(&configPath, "config", model.DefaultConfigPath(), "path to the YAML config file")
	flag.BoolVar(&headless, "headless", false, "print notifications to stdout instead of starting the UI")
	flag.BoolVar(&debug, "debug", false, "log at debug level")
	flag.Parse()

	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		headless = true
	}

	if err := run(configPath, headless, debug); err != nil {
		log.Fatalf("memebox: %v", err)
	}
}

func run(configPath string, headless, debug bool) error {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger, closeLog, err := openLogger(cfg.Storage.LogFile, debug)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	kv, err := store.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer kv.Close()

	tokens, err := credential.Open()
	if err != nil {
		logger.Warn("system keyring unavailable, tokens kept in memory", "error", err)
		tokens = credential.NewMemory()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := directus.NewClient(cfg.Directus.URL,
		directus.WithAssetsURL(cfg.Directus.AssetsURL),
		directus.WithLogger(logger),
	)
	sess := session.New(client, tokens, kv, session.Config{
		AdminRole: cfg.Directus.AdminRole,
		Logger:    logger,
	})
	if err := sess.Restore(ctx); err != nil {
		logger.Warn("restoring session", "error", err)
	}

	events := app.NewEvents()
	defer events.Close()

	notes := notify.New(kv, notify.Config{
		DefaultDuration: time.Duration(cfg.Notifications.DefaultDurationMS) * time.Millisecond,
		SocialDuration:  time.Duration(cfg.Notifications.SocialDurationMS) * time.Millisecond,
		Retention:       time.Duration(cfg.Notifications.RetentionHours) * time.Hour,
		Navigate:        events.Navigate,
		Logger:          logger,
	})
	defer notes.Close()
	notes.Load(ctx)

	memes := gallery.NewMemes(client)
	tags := gallery.NewTags(client)
	likes := gallery.NewLikes(client, kv, sess, logger)
	likes.Load(ctx)

	rec := appsync.New(appsync.NewDirectusSource(client, logger), notes, appsync.Config{
		Interval: cfg.Notifications.PollInterval(),
		PageSize: cfg.Notifications.PageSize,
		Logger:   logger,
	})
	defer rec.Close()
	rec.SetSession(sess.CurrentUser())
	unwatch := sess.OnChange(func(user *model.User) {
		rec.SetSession(user)
		events.SessionChanged(user)
	})
	defer unwatch()
	if cfg.Notifications.Polling || headless {
		rec.EnablePolling()
	}

	if headless {
		return watch(ctx, notes, sess, logger)
	}

	m := app.New(app.Deps{
		Client:        client,
		Session:       sess,
		Memes:         memes,
		Tags:          tags,
		Likes:         likes,
		Notifications: notes,
		Reconciler:    rec,
		Events:        events,
		Config:        cfg,
		ConfigPath:    configPath,
		Logger:        logger,
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}

// watch prints each new notification until ctx is cancelled.
func watch(ctx context.Context, notes *notify.Store, sess *session.Manager, logger *slog.Logger) error {
	if !sess.IsAuthenticated() {
		fmt.Fprintln(os.Stderr, "memebox: not signed in; start the UI once to sign in")
	}
	snapshots, unsubscribe := notes.Subscribe()
	defer unsubscribe()

	printed := make(map[string]struct{})
	for _, n := range notes.All() {
		printed[n.ID] = struct{}{}
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-snapshots:
			if !ok {
				return nil
			}
			// Newest first; print oldest unseen first.
			for i := len(snap.Notifications) - 1; i >= 0; i-- {
				n := snap.Notifications[i]
				if _, ok := printed[n.ID]; ok {
					continue
				}
				printed[n.ID] = struct{}{}
				fmt.Printf("%s  %-8s %s: %s\n", n.Timestamp.Format(time.Kitchen), n.Type, n.Title, n.Message)
				logger.Debug("printed notification", "id", n.ID)
			}
		}
	}
}

// openLogger writes structured logs to path; the terminal belongs to the UI.
func openLogger(path string, debug bool) (*slog.Logger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	return logger, func() { f.Close() }, nil
}
