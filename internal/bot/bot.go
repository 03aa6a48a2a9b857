package bot

import (
	"fmt"
	"log"
	"time"

	tele "gopkg.in/telebot.v3"

	"lights-watch/internal/gazetteer"
	"lights-watch/internal/outage"
	"lights-watch/internal/store"
	"lights-watch/internal/ttlmap"
)

// sessionTTL evicts abandoned address wizards.
const sessionTTL = 10 * time.Minute

// sessionState tracks where a user is in the address wizard.
type sessionState int

const (
	stateAwaitingCity sessionState = iota
	stateAwaitingStreet
	stateAwaitingHouse
)

type session struct {
	State  sessionState
	City   string
	Street string
}

// Bot wraps the Telegram bot, the address wizard and subscriber commands.
type Bot struct {
	bot      *tele.Bot
	store    *store.Cached
	outages  *outage.Cache
	client   *outage.Client
	searcher gazetteer.Searcher
	sessions *ttlmap.Map[int64, *session]
	baseURL  string
}

var htmlOpts = &tele.SendOptions{ParseMode: tele.ModeHTML}

var removeMenu = &tele.ReplyMarkup{RemoveKeyboard: true}

var mainMenu = &tele.ReplyMarkup{
	ResizeKeyboard: true,
	ReplyKeyboard: [][]tele.ReplyButton{
		{{Text: menuBtnStatus}, {Text: menuBtnCheck}},
		{{Text: menuBtnAddress}},
		{{Text: menuBtnMute}, {Text: menuBtnUnmute}},
	},
}

// New creates and configures the Telegram bot.
func New(token string, st *store.Cached, outages *outage.Cache, client *outage.Client, baseURL string) (*Bot, error) {
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	bot := &Bot{
		bot:      b,
		store:    st,
		outages:  outages,
		client:   client,
		searcher: gazetteer.NewSearcher(),
		sessions: ttlmap.New[int64, *session](sessionTTL),
		baseURL:  baseURL,
	}

	bot.registerHandlers()

	if err := b.SetCommands([]tele.Command{
		{Text: "status", Description: "Поточний стан світла"},
		{Text: "address", Description: "Вказати адресу для перевірки відключень"},
		{Text: "check", Description: "Перевірити відключення зараз"},
		{Text: "probe", Description: "Пінгувати ваш роутер замість пристрою"},
		{Text: "mute", Description: "Вимкнути сповіщення"},
		{Text: "unmute", Description: "Увімкнути сповіщення"},
		{Text: "help", Description: "Довідка"},
	}); err != nil {
		log.Printf("[bot] failed to set commands: %v", err)
	}

	return bot, nil
}

// Start begins polling for Telegram updates. Call as a goroutine.
func (b *Bot) Start() {
	log.Println("[bot] starting Telegram bot polling...")
	b.bot.Start()
}

// Stop gracefully stops the bot.
func (b *Bot) Stop() {
	b.bot.Stop()
}

// TeleBot returns the underlying telebot instance (used by the messenger).
func (b *Bot) TeleBot() *tele.Bot {
	return b.bot
}

func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.handleStart)
	b.bot.Handle("/help", b.handleHelp)
	b.bot.Handle("/status", b.handleStatus)
	b.bot.Handle("/address", b.handleAddress)
	b.bot.Handle("/check", b.handleCheck)
	b.bot.Handle("/probe", b.handleProbe)
	b.bot.Handle("/mute", b.handleMute)
	b.bot.Handle("/unmute", b.handleUnmute)
	b.bot.Handle("/cancel", b.handleCancel)

	// All text messages route through the wizard, then the menu.
	b.bot.Handle(tele.OnText, b.handleText)
}

func (b *Bot) handleText(c tele.Context) error {
	if s, ok := b.sessions.Get(c.Sender().ID); ok {
		switch s.State {
		case stateAwaitingCity:
			return b.onCity(c, s)
		case stateAwaitingStreet:
			return b.onStreet(c, s)
		case stateAwaitingHouse:
			return b.onHouse(c, s)
		}
	}
	return b.handleMenuButton(c)
}

func (b *Bot) handleMenuButton(c tele.Context) error {
	switch c.Text() {
	case menuBtnStatus:
		return b.handleStatus(c)
	case menuBtnAddress:
		return b.handleAddress(c)
	case menuBtnCheck:
		return b.handleCheck(c)
	case menuBtnMute:
		return b.handleMute(c)
	case menuBtnUnmute:
		return b.handleUnmute(c)
	}
	return nil
}
