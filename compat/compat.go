// Package compat keeps the old free-function API. Each call builds a Client
// from the environment, overrides token and timeout, and forwards to it.
// Only SendMsg sends into a topic; TELEBOY_TOPIC_ID is ignored here.
//
// Deprecated: use teleboy.Client.
package compat

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/jehaby/teleboy"
)

func newClient(name, token string, timeout time.Duration) (*teleboy.Client, error) {
	slog.Warn("deprecated call, use teleboy.Client", "func", name)
	cfg, err := teleboy.LoadConfig()
	if err != nil {
		return nil, err
	}
	cfg.Token = token
	cfg.Timeout = timeout
	cfg.TopicID = ""
	return teleboy.New(cfg)
}

// Deprecated: use teleboy.Client.FetchUpdates.
func GetUpdates(token string, timeout time.Duration) (json.RawMessage, error) {
	c, err := newClient("GetUpdates", token, timeout)
	if err != nil {
		return nil, err
	}
	return c.FetchUpdates(context.Background())
}

// Deprecated: use teleboy.Client.ListChats.
func GetChats(token string, timeout time.Duration) (teleboy.ChatDirectory, error) {
	c, err := newClient("GetChats", token, timeout)
	if err != nil {
		return nil, err
	}
	return c.ListChats(context.Background()), nil
}

// Deprecated: use teleboy.Client.SendMessage.
func SendMsg(token, chatID, text string, timeout time.Duration, topicID string, parseMode models.ParseMode) error {
	c, err := newClient("SendMsg", token, timeout)
	if err != nil {
		return err
	}
	return c.SendMessage(context.Background(), chatID, text,
		teleboy.WithTopic(topicID), teleboy.WithParseMode(parseMode))
}

// Deprecated: use teleboy.Client.SendToChats.
func SendMsgs(token string, chatIDs []string, text string, timeout time.Duration) error {
	c, err := newClient("SendMsgs", token, timeout)
	if err != nil {
		return err
	}
	return c.SendToChats(context.Background(), text, chatIDs)
}
