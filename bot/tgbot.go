package bot

import (
	"TextDesk/internal/lib/sl"
	"fmt"
	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// maxMessageLen keeps alerts under Telegram's 4096 character limit after escaping.
const maxMessageLen = 3500

// TgBot delivers operator alerts to a single admin chat.
type TgBot struct {
	log         *slog.Logger
	api         *tgbotapi.Bot
	botUsername string
	adminId     int64
}

func NewTgBot(botName, apiKey string, adminId int64, log *slog.Logger) (*TgBot, error) {
	tgBot := &TgBot{
		log:         log.With(sl.Module("tgbot")),
		adminId:     adminId,
		botUsername: botName,
	}

	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	tgBot.api = api

	return tgBot, nil
}

// SendMessage sends msg asynchronously so a slow Telegram API never stalls the
// code path that produced the alert.
func (t *TgBot) SendMessage(msg string) {
	go t.plainResponse(t.adminId, truncate(msg, maxMessageLen))
}

// truncate cuts msg to at most limit bytes on a rune boundary.
func truncate(msg string, limit int) string {
	if len(msg) <= limit {
		return msg
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut] + "…"
}

func (t *TgBot) plainResponse(chatId int64, text string) {
	sanitized := sanitize(text)
	if sanitized == "" {
		return
	}

	_, err := t.api.SendMessage(chatId, sanitized, &tgbotapi.SendMessageOpts{
		ParseMode: "MarkdownV2",
	})
	if err != nil {
		// not through t.log: an error here would be forwarded back to Telegram
		fmt.Printf("tgbot: sending alert to %d: %v\n", chatId, err)
	}
}

func sanitize(input string) string {
	reservedChars := "\\`_{}#+-.!|()[]*~>="

	var b strings.Builder
	for _, char := range input {
		if strings.ContainsRune(reservedChars, char) {
			b.WriteRune('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
