// Copyright 2024 The Nakama Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

const appearancePubSubSuffix = "appearance"

// ClusterAppearanceEvent is the pub/sub message for a published appearance.
type ClusterAppearanceEvent struct {
	Node       string      `json:"node"`
	UserID     string      `json:"user_id"`
	SessionID  string      `json:"session_id"`
	Appearance *Appearance `json:"appearance"`
}

// ClusterAppearanceNotifier fans published appearances out to the other
// nodes, and applies theirs to the presences on this node.
type ClusterAppearanceNotifier struct {
	logger      *zap.Logger
	nodeName    string
	channel     string
	redisClient *redis.Client
	presences   *LocalPresenceRegistry

	ctx         context.Context
	ctxCancelFn context.CancelFunc
}

func NewRedisClient(config *ClusterConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddress,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})
	if err := client.Ping().Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", config.RedisAddress, err)
	}
	return client, nil
}

func NewClusterAppearanceNotifier(ctx context.Context, logger *zap.Logger, config *ClusterConfig, nodeName string, redisClient *redis.Client, presences *LocalPresenceRegistry) *ClusterAppearanceNotifier {
	ctx, ctxCancelFn := context.WithCancel(ctx)
	return &ClusterAppearanceNotifier{
		logger:      logger,
		nodeName:    nodeName,
		channel:     appearanceChannel(config.ChannelPrefix),
		redisClient: redisClient,
		presences:   presences,

		ctx:         ctx,
		ctxCancelFn: ctxCancelFn,
	}
}

func appearanceChannel(prefix string) string {
	return fmt.Sprintf("%s:%s", prefix, appearancePubSubSuffix)
}

// Start listens for other nodes' appearance events until Stop.
func (n *ClusterAppearanceNotifier) Start() {
	go n.subscribeToEvents()

	n.logger.Info("Cluster appearance notifier initialized",
		zap.String("node", n.nodeName),
		zap.String("channel", n.channel))
}

func (n *ClusterAppearanceNotifier) Stop() {
	n.ctxCancelFn()
}

func (n *ClusterAppearanceNotifier) AppearancePublished(presence *Presence, appearance *Appearance) {
	data, err := json.Marshal(&ClusterAppearanceEvent{
		Node:       n.nodeName,
		UserID:     presence.UserID.String(),
		SessionID:  presence.SessionID.String(),
		Appearance: appearance,
	})
	if err != nil {
		n.logger.Warn("Failed to marshal appearance event", zap.Error(err))
		return
	}
	if err := n.redisClient.Publish(n.channel, data).Err(); err != nil {
		n.logger.Warn("Failed to publish appearance event", zap.String("uid", presence.UserID.String()), zap.Error(err))
	}
}

func (n *ClusterAppearanceNotifier) subscribeToEvents() {
	pubsub := n.redisClient.Subscribe(n.channel)
	defer pubsub.Close()

	n.logger.Debug("Subscribed to appearance events channel", zap.String("channel", n.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-n.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event ClusterAppearanceEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				n.logger.Warn("Failed to unmarshal appearance event", zap.Error(err))
				continue
			}

			n.handleEvent(&event)
		}
	}
}

// handleEvent replaces the appearance of this node's presences of the user.
// It returns the number of presences updated.
func (n *ClusterAppearanceNotifier) handleEvent(event *ClusterAppearanceEvent) int {
	if event.Node == n.nodeName {
		return 0
	}
	userID, err := uuid.FromString(event.UserID)
	if err != nil {
		n.logger.Warn("Invalid user ID in appearance event", zap.String("user_id", event.UserID))
		return 0
	}
	if event.Appearance == nil {
		return 0
	}

	presences := n.presences.ListByUser(userID)
	for _, p := range presences {
		p.SetCurrentAppearance(event.Appearance)
	}
	if len(presences) > 0 {
		n.logger.Debug("Applied remote appearance",
			zap.String("uid", event.UserID),
			zap.String("node", event.Node),
			zap.Int("presences", len(presences)))
	}
	return len(presences)
}
