package transport

import (
	"context"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// ChatTarget identifies where a message goes. Username ("@channel") is used
// when ChatID is zero.
type ChatTarget struct {
	ChatID   int64
	Username string
	ThreadID int // telegram forum topic thread id (0 if none)
}

func (t ChatTarget) IsZero() bool { return t.ChatID == 0 && t.Username == "" }

func (t ChatTarget) String() string {
	if t.ChatID != 0 {
		return strconv.FormatInt(t.ChatID, 10)
	}
	return t.Username
}

// ParseChatTarget accepts a numeric chat id (negative for groups) or an
// @username for public channels.
func ParseChatTarget(raw string) (ChatTarget, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ChatTarget{}, errors.New("chat id is empty")
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		if id == 0 {
			return ChatTarget{}, errors.New("chat id must not be 0")
		}
		return ChatTarget{ChatID: id}, nil
	}
	if strings.HasPrefix(s, "@") && len(s) > 1 && !strings.ContainsAny(s, " \t") {
		return ChatTarget{Username: s}, nil
	}
	return ChatTarget{}, errors.Newf("invalid chat id %q (want an integer or @channel)", raw)
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Sender delivers text to a chat. The telegram adapter implements it; tests
// use fakes.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}
