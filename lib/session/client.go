// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/hearth-chat/hearth/lib/chat"
	"github.com/hearth-chat/hearth/lib/clock"
)

// Protocol is a single-attempt wire implementation. Each method makes
// one request under the context it is given; Client owns deadlines and
// retries.
//
// Implementations return *chat.AuthError when credentials or the
// session token are rejected and *chat.ProtocolViolation for malformed
// responses.
type Protocol interface {
	Authenticate(ctx context.Context, credentials chat.Credentials) (chat.Identity, error)
	Guilds(ctx context.Context) ([]chat.Guild, error)
	Channels(ctx context.Context, guildID chat.GuildID) ([]chat.Channel, error)
	History(ctx context.Context, channelID chat.ChannelID, before string, limit int) (chat.Page, error)
	Send(ctx context.Context, channelID chat.ChannelID, localTag, content string) (chat.MessageID, error)
	Edit(ctx context.Context, target chat.MessageRef, content, txnID string) error
	Delete(ctx context.Context, target chat.MessageRef, txnID string) error
	SetPresence(ctx context.Context, presence chat.Presence) error

	// Poll blocks until push events are available or the long-poll
	// window ends, returning possibly zero events.
	Poll(ctx context.Context) ([]chat.PushEvent, error)

	// ResetConnections drops pooled connections after a failure.
	ResetConnections()
}

// Config is the Client's failure policy. Zero fields take defaults.
type Config struct {
	// PageSize is the number of messages requested per history page.
	PageSize int

	// RequestTimeout bounds each network attempt. Poll attempts get
	// PollTimeout on top of it.
	RequestTimeout time.Duration

	// MaxAttempts bounds read attempts, the first included.
	MaxAttempts int

	// InitialBackoff is the wait before the first retry; it doubles per
	// retry up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// WriteRate is the sustained writes per second; zero is unlimited.
	WriteRate  float64
	WriteBurst int

	// PollTimeout is the server-side long-poll window.
	PollTimeout time.Duration
}

// Defaults for Config.
const (
	DefaultPageSize       = 50
	DefaultRequestTimeout = 15 * time.Second
	DefaultMaxAttempts    = 4
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = 30 * time.Second
	DefaultPollTimeout    = 30 * time.Second
)

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = max(DefaultMaxBackoff, c.InitialBackoff)
	}
	if c.WriteBurst <= 0 {
		c.WriteBurst = 1
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = DefaultPollTimeout
	}
	return c
}

// Client is the session client. Its methods block and are safe to call
// from concurrent task goroutines.
type Client struct {
	protocol Protocol
	config   Config
	clock    clock.Clock
	logger   *slog.Logger
	limiter  *rate.Limiter

	pageSize atomic.Int64

	presenceMu sync.Mutex
	presence   chat.Presence
}

// New creates a Client. A nil clock uses the real clock; a nil logger
// uses slog.Default().
func New(protocol Protocol, config Config, clk clock.Clock, logger *slog.Logger) *Client {
	config = config.withDefaults()
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if config.WriteRate > 0 {
		limit = rate.Limit(config.WriteRate)
	}
	client := &Client{
		protocol: protocol,
		config:   config,
		clock:    clk,
		logger:   logger,
		limiter:  rate.NewLimiter(limit, config.WriteBurst),
	}
	client.pageSize.Store(int64(config.PageSize))
	return client
}

// SetPageSize changes the history page size for later fetches.
func (c *Client) SetPageSize(size int) {
	if size > 0 {
		c.pageSize.Store(int64(size))
	}
}

// PageSize returns the current history page size.
func (c *Client) PageSize() int { return int(c.pageSize.Load()) }

// Authenticate establishes the session. It is not retried.
func (c *Client) Authenticate(ctx context.Context, credentials chat.Credentials) (chat.Identity, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()
	identity, err := c.protocol.Authenticate(attemptCtx, credentials)
	if err != nil {
		var authErr *chat.AuthError
		if errors.As(err, &authErr) {
			return chat.Identity{}, authErr
		}
		return chat.Identity{}, &chat.AuthError{Err: err}
	}
	c.logger.Info("authenticated", "user_id", identity.UserID, "device_id", identity.DeviceID)
	return identity, nil
}

// FetchGuilds returns the joined guilds.
func (c *Client) FetchGuilds(ctx context.Context) ([]chat.Guild, error) {
	return retryRead(ctx, c, "fetch guilds", c.protocol.Guilds)
}

// FetchChannels returns a guild's channels.
func (c *Client) FetchChannels(ctx context.Context, guildID chat.GuildID) ([]chat.Channel, error) {
	return retryRead(ctx, c, "fetch channels", func(ctx context.Context) ([]chat.Channel, error) {
		return c.protocol.Channels(ctx, guildID)
	})
}

// FetchHistory returns one page of a channel's history, newest first,
// starting from the newest message when before is empty.
func (c *Client) FetchHistory(ctx context.Context, channelID chat.ChannelID, before string) (chat.Page, error) {
	limit := c.PageSize()
	page, err := retryRead(ctx, c, "fetch history", func(ctx context.Context) (chat.Page, error) {
		return c.protocol.History(ctx, channelID, before, limit)
	})
	if err != nil {
		return chat.Page{}, err
	}
	page.ChannelID = channelID
	page.Before = before
	return page, nil
}

// Send posts a message. localTag is the idempotency token; a retry
// reuses it, so the server stores the message once.
func (c *Client) Send(ctx context.Context, channelID chat.ChannelID, localTag, content string) (chat.MessageID, error) {
	var id chat.MessageID
	err := c.write(ctx, chat.WriteSend, func(ctx context.Context) error {
		var err error
		id, err = c.protocol.Send(ctx, channelID, localTag, content)
		return err
	})
	return id, err
}

// Edit replaces a message's content. txnID is the idempotency token.
func (c *Client) Edit(ctx context.Context, target chat.MessageRef, content, txnID string) error {
	return c.write(ctx, chat.WriteEdit, func(ctx context.Context) error {
		return c.protocol.Edit(ctx, target, content, txnID)
	})
}

// Delete removes a message. txnID is the idempotency token.
func (c *Client) Delete(ctx context.Context, target chat.MessageRef, txnID string) error {
	return c.write(ctx, chat.WriteDelete, func(ctx context.Context) error {
		return c.protocol.Delete(ctx, target, txnID)
	})
}

// isTransientError returns true for errors that are likely transient
// and worth retrying: connection failures, timeouts, rate limiting
// (429), and server errors (5xx). Auth failures, protocol violations,
// and other 4xx responses are permanent.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	var authErr *chat.AuthError
	var violation *chat.ProtocolViolation
	if errors.As(err, &authErr) || errors.As(err, &violation) {
		return false
	}
	if status, ok := statusCode(err); ok {
		return status == 429 || status >= 500
	}
	// Transport errors (connection refused, timeout, EOF) are transient.
	return true
}

// backoffAfter returns the wait before attempt (2-based), doubling
// from InitialBackoff and capped at MaxBackoff.
func (c *Client) backoffAfter(attempt int) time.Duration {
	backoff := c.config.InitialBackoff
	for i := 2; i < attempt; i++ {
		backoff *= 2
		if backoff >= c.config.MaxBackoff {
			return c.config.MaxBackoff
		}
	}
	return min(backoff, c.config.MaxBackoff)
}

// sleep waits d on the client's clock, returning early with the
// context's error.
func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock.After(d):
		return nil
	}
}

// attempt runs call under a per-attempt deadline. A deadline expiry
// that is not the parent's own becomes a transient timeout error.
func (c *Client) attempt(ctx context.Context, timeout time.Duration, call func(context.Context) error) error {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := call(attemptCtx)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("request timed out after %s: %w", timeout, err)
	}
	return err
}

func retryRead[T any](ctx context.Context, c *Client, op string, call func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastError error
	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, c.backoffAfter(attempt)); err != nil {
				return zero, err
			}
		}

		var value T
		err := c.attempt(ctx, c.config.RequestTimeout, func(ctx context.Context) error {
			var err error
			value, err = call(ctx)
			return err
		})
		if err == nil {
			return value, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !isTransientError(err) {
			return zero, fmt.Errorf("session: %s: %w", op, err)
		}
		lastError = err

		c.logger.Warn("transient read failure, retrying",
			"op", op,
			"attempt", attempt,
			"max_attempts", c.config.MaxAttempts,
			"error", err,
		)
		c.protocol.ResetConnections()
	}
	return zero, &chat.NetworkError{Op: op, Attempts: c.config.MaxAttempts, Err: lastError}
}

// writeAttempts is one try plus the single automatic retry.
const writeAttempts = 2

func (c *Client) write(ctx context.Context, op chat.WriteOp, call func(context.Context) error) error {
	var lastError error
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, c.config.InitialBackoff); err != nil {
				return &chat.WriteError{Op: op, Err: err}
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return &chat.WriteError{Op: op, Err: err}
		}

		err := c.attempt(ctx, c.config.RequestTimeout, call)
		if err == nil {
			return nil
		}
		lastError = err
		if chat.IsFatal(err) {
			return err
		}
		if ctx.Err() != nil || !isTransientError(err) {
			break
		}

		c.logger.Warn("transient write failure",
			"op", string(op),
			"attempt", attempt,
			"error", err,
		)
		c.protocol.ResetConnections()
	}
	return &chat.WriteError{Op: op, Err: lastError}
}
