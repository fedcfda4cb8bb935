// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// hearth is a modal terminal chat client for Matrix homeservers.
//
// Spaces appear as guilds and their child rooms as channels. The
// client signs in with the credentials named in its config file,
// restores the last open channel from its state file, and runs until
// the user quits (":quit" or ctrl+c) or the homeserver rejects the
// session's credentials.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/hearth-chat/hearth/lib/chat"
	"github.com/hearth-chat/hearth/lib/chatui"
	"github.com/hearth-chat/hearth/lib/codec"
	"github.com/hearth-chat/hearth/lib/command"
	"github.com/hearth-chat/hearth/lib/config"
	"github.com/hearth-chat/hearth/lib/engine"
	"github.com/hearth-chat/hearth/lib/mode"
	"github.com/hearth-chat/hearth/lib/session"
	"github.com/hearth-chat/hearth/lib/statefile"
	"github.com/hearth-chat/hearth/lib/version"
	"github.com/hearth-chat/hearth/messaging"
)

// keyBuffer lets typing run ahead of the event loop.
const keyBuffer = 64

// shutdownTimeout bounds the offline presence update on exit.
const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var authErr *chat.AuthError
		if errors.As(err, &authErr) {
			fmt.Fprintln(os.Stderr, "The homeserver rejected the session. Check the credentials in your config and sign in again.")
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var logOutput string
	var dumpState bool

	flagSet := pflag.NewFlagSet("hearth", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the config file (default: $HEARTH_CONFIG)")
	flagSet.StringVar(&logOutput, "log-file", "", "write JSON log records to this file (overrides log_file)")
	flagSet.BoolVar(&dumpState, "dump-state", false, "print the saved state file in CBOR diagnostic notation and exit")
	flagSet.Bool("version", false, "print version information and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if showVersion, _ := flagSet.GetBool("version"); showVersion {
		version.Print(os.Stdout, "hearth")
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if dumpState {
		return printStateFile(cfg.StateFile)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config:\n%w", err)
	}
	if logOutput == "" {
		logOutput = cfg.LogFile
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return runSession(ctx, cfg, logOutput)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `hearth - modal terminal chat for Matrix homeservers.

Configuration comes from the file named by --config or, without it,
by the HEARTH_CONFIG environment variable. There is no default
location.

Usage:
  hearth [flags]

Keys:
  i write   : command   k scroll   g guilds   c channels   Esc back
  In scroll mode: e edit, d delete (asks first), D delete now, r retry

Commands:
  :join <guild>   :channel <name>   :set <key> <value>   :refresh   :quit

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}

// newStartupLogger logs to stderr before the TUI takes the terminal:
// text on a terminal, JSON when stderr is piped.
func newStartupLogger() *slog.Logger {
	var handler slog.Handler
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}

// runSession signs in and runs the UI, the event loop, and the
// presence keepalive until one of them ends the session.
func runSession(ctx context.Context, cfg *config.Config, logOutput string) error {
	startupLogger := newStartupLogger()

	credentials, err := credentialsFromConfig(cfg)
	if err != nil {
		return err
	}

	// Once the TUI owns the terminal, warnings go to the status line
	// and everything goes to the log file when there is one.
	tuiHandler := chatui.NewLogHandler(slog.LevelWarn)
	var backgroundLogger *slog.Logger
	if logOutput != "" {
		fileHandler, fileCloser, fileErr := openFileLogHandler(logOutput)
		if fileErr != nil {
			return fmt.Errorf("cannot open log file %s: %w", logOutput, fileErr)
		}
		defer fileCloser()
		backgroundLogger = slog.New(fanoutHandler{tuiHandler, fileHandler})
	} else {
		backgroundLogger = slog.New(tuiHandler)
	}

	matrixClient, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: cfg.Homeserver,
		Logger:        backgroundLogger,
	})
	if err != nil {
		return err
	}
	client := session.New(session.NewMatrix(matrixClient, backgroundLogger), sessionConfig(cfg), nil, backgroundLogger)

	startupLogger.Info("signing in", "homeserver", cfg.Homeserver)
	identity, err := client.Authenticate(ctx, credentials)
	if err != nil {
		return err
	}
	startupLogger.Info("signed in", "user_id", identity.UserID, "device_id", identity.DeviceID)

	if err := client.SetPresence(ctx, chat.PresenceOnline); err != nil {
		if chat.IsFatal(err) {
			return err
		}
		startupLogger.Warn("setting presence failed", "error", err)
	}

	saved := loadState(cfg.StateFile, startupLogger)
	chatEngine := engine.New(client, engine.Config{
		Identity: identity,
		Settings: command.Settings{
			PageSize:   cfg.Session.PageSize,
			Retention:  cfg.Session.Retention,
			Timestamps: cfg.UI.Timestamps,
			Presence:   chat.PresenceOnline,
		},
		LastGuild:      saved.Guild,
		LastChannel:    saved.Channel,
		Scroll:         saved.Scroll,
		DefaultGuild:   cfg.UI.DefaultGuild,
		DefaultChannel: cfg.UI.DefaultChannel,
	}, nil, backgroundLogger)

	keys := make(chan mode.Action, keyBuffer)
	frames := chatui.NewFrames()
	loopDone := make(chan struct{})

	output := termenv.NewOutput(os.Stdout)
	renderer := lipgloss.NewRenderer(os.Stdout, termenv.WithProfile(output.EnvColorProfile()))
	model := chatui.NewModel(frames, keys,
		chatui.WithRenderer(renderer),
		chatui.WithLogHandler(tuiHandler),
		chatui.WithDone(loopDone),
	)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	group, groupContext := errgroup.WithContext(ctx)
	sessionContext, stopSession := context.WithCancel(groupContext)
	defer stopSession()

	group.Go(func() error {
		defer program.Quit()
		defer close(loopDone)
		defer frames.Close()

		push := client.Subscribe(sessionContext)
		err := engine.NewLoop(chatEngine, frames, backgroundLogger).Run(sessionContext, keys, push)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	group.Go(func() error {
		return client.KeepPresence(sessionContext, cfg.Session.PresenceInterval.Std())
	})

	group.Go(func() error {
		defer stopSession()
		defer close(keys)
		_, err := program.Run()
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	})

	sessionErr := group.Wait()

	// The loop has exited; the engine is no longer shared.
	saveState(cfg.StateFile, chatEngine, startupLogger)

	var authErr *chat.AuthError
	if !errors.As(sessionErr, &authErr) {
		offlineContext, cancelOffline := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelOffline()
		if err := client.SetPresence(offlineContext, chat.PresenceOffline); err != nil {
			startupLogger.Warn("setting presence offline failed", "error", err)
		}
	}
	return sessionErr
}

func credentialsFromConfig(cfg *config.Config) (chat.Credentials, error) {
	token, err := cfg.AccessToken()
	if err != nil {
		return chat.Credentials{}, fmt.Errorf("access token: %w", err)
	}
	credentials := chat.Credentials{
		UserID:      cfg.UserID,
		AccessToken: token,
		Username:    cfg.Username,
	}
	if token == "" {
		credentials.Password, err = cfg.Password()
		if err != nil {
			return chat.Credentials{}, fmt.Errorf("password: %w", err)
		}
	}
	return credentials, nil
}

func sessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		PageSize:       cfg.Session.PageSize,
		RequestTimeout: cfg.Session.RequestTimeout.Std(),
		MaxAttempts:    cfg.Session.MaxAttempts,
		InitialBackoff: cfg.Session.InitialBackoff.Std(),
		MaxBackoff:     cfg.Session.MaxBackoff.Std(),
		WriteRate:      cfg.Session.WriteRate,
		WriteBurst:     cfg.Session.WriteBurst,
	}
}

// loadState reads the saved position. A missing or unreadable file
// starts from the configured default position.
func loadState(path string, logger *slog.Logger) statefile.State {
	if path == "" {
		return statefile.State{}
	}
	state, ok, err := statefile.Load(path)
	if err != nil {
		logger.Warn("ignoring unreadable state file", "path", path, "error", err)
		return statefile.State{}
	}
	if ok {
		logger.Debug("restored state", "path", path, "saved_at", state.SavedAt)
	}
	return state
}

func saveState(path string, chatEngine *engine.Engine, logger *slog.Logger) {
	if path == "" {
		return
	}
	current := chatEngine.State()
	state := statefile.State{
		Guild:   current.CurrentGuild,
		Channel: current.CurrentChannel,
		Scroll:  chatEngine.ScrollStates(),
		SavedAt: time.Now(),
	}
	if err := statefile.Write(path, state); err != nil {
		logger.Warn("saving state failed", "path", path, "error", err)
	}
}

// printStateFile writes the state file in CBOR diagnostic notation.
func printStateFile(path string) error {
	if path == "" {
		return fmt.Errorf("no state_file configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	notation, err := codec.Diagnose(data)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	fmt.Println(notation)
	return nil
}

// openFileLogHandler creates a slog.JSONHandler that writes to the
// given file path. Returns the handler, a cleanup function to close
// the file, and any error. The file is created or truncated.
func openFileLogHandler(path string) (slog.Handler, func(), error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, err
	}
	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})
	return handler, func() { file.Close() }, nil
}

// fanoutHandler is a slog.Handler that sends each record to multiple
// underlying handlers. A record is enabled if any sub-handler is
// enabled for that level.
type fanoutHandler []slog.Handler

func (handlers fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (handlers fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var first error
	for _, handler := range handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (handlers fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := make(fanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithAttrs(attrs)
	}
	return derived
}

func (handlers fanoutHandler) WithGroup(name string) slog.Handler {
	derived := make(fanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithGroup(name)
	}
	return derived
}
