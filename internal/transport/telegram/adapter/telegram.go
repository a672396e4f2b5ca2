package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	tele "gopkg.in/telebot.v4"

	kit "reviewbot/internal/transport"
	logx "reviewbot/pkg/logx"
)

type Config struct {
	Token string
	// APIURL overrides the Bot API base URL (empty means telebot's default).
	APIURL string
	Timeout time.Duration
}

// Adapter is a send-only Telegram client. The bot never reads updates, so
// there is no poller and nothing to start or stop.
type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	// Offline skips getMe; CheckToken does it on demand.
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		URL:     strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/"),
		Offline: true,
		Client:  &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, errors.Wrap(err, "telegram bot init")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{cfg: cfg, log: log, bot: b}, nil
}

// CheckToken calls getMe and returns the bot's username.
func (a *Adapter) CheckToken() (string, error) {
	data, err := a.bot.Raw("getMe", nil)
	if err != nil {
		return "", errors.Wrap(err, "telegram getMe")
	}
	var resp struct {
		Result tele.User `json:"result"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", errors.Wrap(err, "telegram getMe: decode")
	}
	return resp.Result.Username, nil
}

const telegramTextLimit = 4000

// splitTelegramText splits long messages into chunks that are safe to send to Telegram.
// It prefers newline boundaries and (best-effort) avoids splitting inside HTML tags when ParseMode is HTML.
func splitTelegramText(s string, limit int, parseMode string) []string {
	if limit <= 0 {
		limit = telegramTextLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := start + limit
		if end > len(rs) {
			end = len(rs)
		}

		// Prefer splitting on a newline near the end of the window.
		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}

		// Don't split inside a tag for HTML parse mode.
		if strings.EqualFold(parseMode, "HTML") && end < len(rs) {
			lastOpen, lastClose := -1, -1
			for i := start; i < end; i++ {
				switch rs[i] {
				case '<':
					lastOpen = i
				case '>':
					lastClose = i
				}
			}
			if lastOpen > lastClose && lastOpen > start+1 {
				end = lastOpen
			}
		}

		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))

		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}

// username implements tele.Recipient for public channels addressed as @name.
type username string

func (u username) Recipient() string { return string(u) }

func recipient(to kit.ChatTarget) tele.Recipient {
	if to.ChatID == 0 && to.Username != "" {
		return username(to.Username)
	}
	return &tele.Chat{ID: to.ChatID}
}

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	if to.IsZero() {
		return kit.MessageRef{}, errors.New("telegram: empty chat target")
	}

	chunks := splitTelegramText(text, telegramTextLimit, opt.ParseMode)
	rcpt := recipient(to)

	var first kit.MessageRef
	for i, chunk := range chunks {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return first, err
			}
		}

		msg, err := a.bot.Send(rcpt, chunk, &tele.SendOptions{
			ParseMode:             opt.ParseMode,
			DisableWebPagePreview: opt.DisablePreview,
			ThreadID:              to.ThreadID,
		})
		if err != nil {
			return first, errors.Wrapf(err, "telegram send to %s", to)
		}

		if i == 0 {
			first = kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
			if msg.Chat != nil {
				first.ChatID = msg.Chat.ID
			}
		}
	}
	if len(chunks) > 1 {
		a.log.Debug("long message split", logx.Int("chunks", len(chunks)))
	}
	return first, nil
}
