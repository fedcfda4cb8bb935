// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"time"

	"github.com/hearth-chat/hearth/lib/chat"
)

// subscriptionBuffer absorbs a burst of push events while the event
// loop is busy with a keystroke.
const subscriptionBuffer = 64

// Subscribe starts the push stream. Events arrive in server order on
// the returned channel, which is closed when ctx is cancelled or when
// the stream ends on an auth failure (reported first as a
// ConnectionLost carrying the *chat.AuthError).
//
// Failures are retried forever with exponential backoff capped at
// MaxBackoff. The first failure after a healthy period emits one
// ConnectionLost; the first success after that emits one
// ConnectionRestored.
func (c *Client) Subscribe(ctx context.Context) <-chan chat.PushEvent {
	events := make(chan chat.PushEvent, subscriptionBuffer)
	go c.subscribe(ctx, events)
	return events
}

func (c *Client) subscribe(ctx context.Context, events chan<- chat.PushEvent) {
	defer close(events)

	emit := func(event chat.PushEvent) bool {
		select {
		case events <- event:
			return true
		case <-ctx.Done():
			return false
		}
	}

	backoff := c.config.InitialBackoff
	disconnected := false
	pollTimeout := c.config.PollTimeout + c.config.RequestTimeout
	for {
		if ctx.Err() != nil {
			return
		}

		var batch []chat.PushEvent
		err := c.attempt(ctx, pollTimeout, func(ctx context.Context) error {
			var err error
			batch, err = c.protocol.Poll(ctx)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if chat.IsFatal(err) {
				c.logger.Error("push stream rejected credentials", "error", err)
				emit(chat.ConnectionLost{Err: err})
				return
			}
			if !disconnected {
				disconnected = true
				if !emit(chat.ConnectionLost{Err: &chat.NetworkError{Op: "subscribe", Attempts: 1, Err: err}}) {
					return
				}
			}
			c.logger.Warn("push stream failed, reconnecting", "error", err, "backoff", backoff)
			c.protocol.ResetConnections()
			if c.sleep(ctx, backoff) != nil {
				return
			}
			backoff = min(backoff*2, c.config.MaxBackoff)
			continue
		}

		backoff = c.config.InitialBackoff
		if disconnected {
			disconnected = false
			c.logger.Info("push stream restored")
			if !emit(chat.ConnectionRestored{}) {
				return
			}
		}
		for _, event := range batch {
			if !emit(event) {
				return
			}
		}
	}
}

// SetPresence advertises the user's presence and remembers it for
// KeepPresence. It follows the read retry policy.
func (c *Client) SetPresence(ctx context.Context, presence chat.Presence) error {
	c.presenceMu.Lock()
	c.presence = presence
	c.presenceMu.Unlock()

	_, err := retryRead(ctx, c, "set presence", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.protocol.SetPresence(ctx, presence)
	})
	return err
}

// Presence returns the last presence passed to SetPresence.
func (c *Client) Presence() chat.Presence {
	c.presenceMu.Lock()
	defer c.presenceMu.Unlock()
	return c.presence
}

// KeepPresence re-advertises the current presence every interval until
// ctx is cancelled. Homeservers decay presence that is not refreshed.
// Failures are logged and retried at the next tick, except an auth
// failure, which is returned.
func (c *Client) KeepPresence(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		presence := c.Presence()
		if presence == "" {
			continue
		}
		err := c.attempt(ctx, c.config.RequestTimeout, func(ctx context.Context) error {
			return c.protocol.SetPresence(ctx, presence)
		})
		switch {
		case err == nil:
			c.logger.Debug("presence refreshed", "presence", string(presence))
		case ctx.Err() != nil:
			return nil
		case chat.IsFatal(err):
			return err
		default:
			c.logger.Warn("presence refresh failed", "presence", string(presence), "error", err)
		}
	}
}
