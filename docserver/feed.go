// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

package docserver

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Hub fans change-feed events out to websocket subscribers, keyed by
// user+collection. With a redis client attached, events also cross server
// instances through pub/sub.
type Hub struct {
	redis   *redis.Client
	logger  *slog.Logger
	clients map[string]map[*FeedClient]struct{}
	mu      sync.RWMutex
}

// FeedClient is one websocket subscriber.
type FeedClient struct {
	Key  string
	Send chan []byte
}

func NewHub(redisClient *redis.Client, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		redis:   redisClient,
		logger:  logger,
		clients: map[string]map[*FeedClient]struct{}{},
	}
	if redisClient != nil {
		go h.subscribeRedis()
	}
	return h
}

func (h *Hub) Register(key string) *FeedClient {
	client := &FeedClient{
		Key:  key,
		Send: make(chan []byte, 64),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[key] == nil {
		h.clients[key] = map[*FeedClient]struct{}{}
	}
	h.clients[key][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *FeedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if keyClients, ok := h.clients[client.Key]; ok {
		delete(keyClients, client)
		if len(keyClients) == 0 {
			delete(h.clients, client.Key)
		}
	}
	close(client.Send)
}

// Broadcast delivers payload to every subscriber of key. With redis attached
// the event goes through pub/sub so all instances (this one included, via its
// own subscription) deliver it; without redis it is delivered directly. Slow
// subscribers drop events rather than blocking the writer.
func (h *Hub) Broadcast(key string, payload []byte) {
	if h.redis != nil {
		if err := h.redis.Publish(context.Background(), redisChannel(key), payload).Err(); err != nil {
			h.logger.Warn("redis publish failed, delivering locally", "key", key, "error", err)
			h.deliverLocal(key, payload)
		}
		return
	}
	h.deliverLocal(key, payload)
}

func (h *Hub) deliverLocal(key string, payload []byte) {
	h.mu.RLock()
	clients := h.clients[key]
	h.mu.RUnlock()
	for client := range clients {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) subscribeRedis() {
	ctx := context.Background()
	pubsub := h.redis.PSubscribe(ctx, "docfeed:*")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		h.deliverLocal(keyFromChannel(msg.Channel), []byte(msg.Payload))
	}
}

// feedKey scopes a collection path to its owning user.
func feedKey(userID, path string) string {
	return userID + "|" + path
}

func redisChannel(key string) string {
	return "docfeed:" + key
}

func keyFromChannel(ch string) string {
	return strings.TrimPrefix(ch, "docfeed:")
}
