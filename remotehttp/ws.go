// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

package remotehttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Perth00/WanderPlan-sub001/tripsync"
)

// Watch opens a websocket subscription on one collection and converts the
// server's feed events to engine change events. The channel closes when stop
// is called, ctx is cancelled or the connection drops.
func (c *Client) Watch(ctx context.Context, path string) (<-chan tripsync.ChangeEvent, func(), error) {
	token, ok := c.session.Token()
	if !ok {
		return nil, nil, fmt.Errorf("not signed in")
	}

	q := url.Values{"path": {path}, "token": {token}}
	wsURL := toWebsocketURL(c.baseURL) + "/v1/feed?" + q.Encode()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open feed for %s: %w", path, err)
	}

	events := make(chan tripsync.ChangeEvent, 16)
	closed := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			_ = conn.Close()
			close(closed)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-closed:
		}
	}()
	go func() {
		defer close(events)
		defer stop()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					c.logger.Warn("feed connection closed", "path", path, "error", err)
				}
				return
			}
			var ev wireEvent
			if err := json.Unmarshal(msg, &ev); err != nil {
				c.logger.Warn("dropping malformed feed event", "path", path, "error", err)
				continue
			}
			events <- tripsync.ChangeEvent{
				Type: tripsync.ChangeType(ev.Type),
				Path: ev.Path,
				Doc:  tripsync.Document{ID: ev.Doc.ID, Data: ev.Doc.Data},
			}
		}
	}()
	return events, stop, nil
}

func toWebsocketURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}
