package bot

import (
	"errors"
	"strconv"

	tele "gopkg.in/telebot.v3"

	"lights-watch/internal/notify"
)

// Messenger adapts the telebot instance to the dispatcher's transport
// contract. All outbound text is HTML-formatted.
type Messenger struct {
	bot *tele.Bot
}

func NewMessenger(b *tele.Bot) *Messenger {
	return &Messenger{bot: b}
}

func (m *Messenger) Send(chatID int64, text string) (int, error) {
	msg, err := m.bot.Send(&tele.Chat{ID: chatID}, text, htmlOpts)
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

func (m *Messenger) Edit(chatID int64, messageID int, text string) error {
	stored := tele.StoredMessage{
		MessageID: strconv.Itoa(messageID),
		ChatID:    chatID,
	}
	_, err := m.bot.Edit(stored, text, htmlOpts)
	if errors.Is(err, tele.ErrSameMessageContent) {
		return notify.ErrUnchanged
	}
	return err
}

func (m *Messenger) Pin(chatID int64, messageID int) error {
	return m.bot.Pin(tele.StoredMessage{
		MessageID: strconv.Itoa(messageID),
		ChatID:    chatID,
	}, tele.Silent)
}
