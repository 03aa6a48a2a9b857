package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"lights-watch/internal/store"
)

func (b *Bot) handleStart(c tele.Context) error {
	sender := c.Sender()
	sub, err := b.store.Upsert(context.Background(), sender.ID, sender.Username, sender.FirstName)
	if err != nil {
		log.Printf("[bot] upsert subscriber %d: %v", sender.ID, err)
		return c.Send(msgError)
	}
	return c.Send(fmt.Sprintf(msgStart, b.baseURL, sub.Token), tele.ModeHTML, mainMenu)
}

func (b *Bot) handleHelp(c tele.Context) error {
	return c.Send(msgHelp, htmlOpts)
}

func (b *Bot) handleStatus(c tele.Context) error {
	sub, err := b.store.Get(context.Background(), c.Sender().ID)
	if errors.Is(err, store.ErrNotFound) {
		return c.Send(msgStatusNoSignal, htmlOpts)
	}
	if err != nil {
		log.Printf("[bot] get subscriber %d: %v", c.Sender().ID, err)
		return c.Send(msgError)
	}

	if !sub.HasLiveness() && !sub.HasAddress() {
		return c.Send(msgStatusNoSignal, htmlOpts)
	}

	kyiv, _ := time.LoadLocation("Europe/Kyiv")
	since := sub.StateStartAt.In(kyiv).Format("15:04 02.01")

	var msg string
	if sub.LightOn {
		msg = fmt.Sprintf(msgStatusOn, since)
	} else {
		msg = fmt.Sprintf(msgStatusOff, since)
	}
	if sub.PrevDuration != "" {
		msg += fmt.Sprintf(msgStatusPrev, sub.PrevDuration)
	}
	if sub.HasAddress() {
		addr := sub.City + ", " + sub.Street
		if sub.House != "" {
			addr += ", " + sub.House
		}
		msg += fmt.Sprintf(msgStatusAddress, html.EscapeString(addr))
	}
	if sub.Suppressed {
		msg += msgStatusMuted
	}
	return c.Send(msg, htmlOpts)
}

// ── Address wizard ───────────────────────────────────────────────────

func (b *Bot) handleAddress(c tele.Context) error {
	b.sessions.Set(c.Sender().ID, &session{State: stateAwaitingCity})
	return c.Send(msgAskCity, removeMenu)
}

func (b *Bot) onCity(c tele.Context, s *session) error {
	query := strings.TrimSpace(c.Text())

	candidates, err := b.client.Cities(context.Background(), query)
	if err != nil {
		log.Printf("[bot] fetch cities: %v", err)
		return c.Send(msgGazetteerError)
	}

	name, suggestions := b.resolve(query, candidates)
	if name == "" {
		if len(suggestions) == 0 {
			return c.Send(msgCityNotFound)
		}
		return c.Send(msgPickSuggestion, suggestionMenu(suggestions))
	}

	s.City = name
	s.State = stateAwaitingStreet
	b.sessions.Set(c.Sender().ID, s)
	return c.Send(fmt.Sprintf(msgAskStreet, html.EscapeString(name)), tele.ModeHTML, removeMenu)
}

func (b *Bot) onStreet(c tele.Context, s *session) error {
	query := strings.TrimSpace(c.Text())

	candidates, err := b.client.Streets(context.Background(), s.City, query)
	if err != nil {
		log.Printf("[bot] fetch streets for %s: %v", s.City, err)
		return c.Send(msgGazetteerError)
	}

	name, suggestions := b.resolve(query, candidates)
	if name == "" {
		if len(suggestions) == 0 {
			return c.Send(msgStreetNotFound)
		}
		return c.Send(msgPickSuggestion, suggestionMenu(suggestions))
	}

	s.Street = name
	s.State = stateAwaitingHouse
	b.sessions.Set(c.Sender().ID, s)
	return c.Send(fmt.Sprintf(msgAskHouse, html.EscapeString(name), btnWholeStreet),
		tele.ModeHTML, suggestionMenu([]string{btnWholeStreet}))
}

func (b *Bot) onHouse(c tele.Context, s *session) error {
	house := strings.TrimSpace(c.Text())
	if house == btnWholeStreet || house == "-" {
		house = "" // whole street
	}

	ctx := context.Background()
	chatID := c.Sender().ID
	if err := b.store.SaveAddress(ctx, chatID, s.City, s.Street, house); err != nil {
		log.Printf("[bot] save address for %d: %v", chatID, err)
		return c.Send(msgError)
	}
	b.sessions.Delete(chatID)

	addr := s.City + ", " + s.Street
	if house != "" {
		addr += ", " + house
	}
	if err := c.Send(fmt.Sprintf(msgAddressSaved, html.EscapeString(addr)), tele.ModeHTML, mainMenu); err != nil {
		return err
	}

	// Immediate first verdict for the new address.
	sum := b.outages.GetOrFetch(ctx, s.City, s.Street, house)
	return c.Send(sum.Message, htmlOpts)
}

// resolve picks the gazetteer entry for a query: a confident single answer,
// or a suggestion list when the input is ambiguous.
func (b *Bot) resolve(query string, candidates []string) (string, []string) {
	matches := b.searcher.Search(query, candidates)
	if len(matches) == 0 {
		return "", nil
	}
	if matches[0].Score == 1 || len(matches) == 1 {
		return matches[0].Name, nil
	}

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m.Name)
	}
	return "", names
}

func suggestionMenu(names []string) *tele.ReplyMarkup {
	rows := make([][]tele.ReplyButton, 0, len(names))
	for _, n := range names {
		rows = append(rows, []tele.ReplyButton{{Text: n}})
	}
	return &tele.ReplyMarkup{
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
		ReplyKeyboard:   rows,
	}
}

// ── /check, /mute, /unmute, /cancel ──────────────────────────────────

func (b *Bot) handleCheck(c tele.Context) error {
	ctx := context.Background()
	sub, err := b.store.Get(ctx, c.Sender().ID)
	if errors.Is(err, store.ErrNotFound) {
		return c.Send(msgNoAddress)
	}
	if err != nil {
		log.Printf("[bot] get subscriber %d: %v", c.Sender().ID, err)
		return c.Send(msgError)
	}
	if !sub.HasAddress() {
		return c.Send(msgNoAddress)
	}

	sum := b.outages.GetOrFetch(ctx, sub.City, sub.Street, sub.House)
	return c.Send(sum.Message, htmlOpts)
}

func (b *Bot) handleProbe(c tele.Context) error {
	target := strings.TrimSpace(c.Message().Payload)
	if target == "" {
		return c.Send(msgProbeUsage, htmlOpts)
	}

	chatID := c.Sender().ID
	if _, err := b.store.Get(context.Background(), chatID); errors.Is(err, store.ErrNotFound) {
		return c.Send(msgStatusNoSignal, htmlOpts)
	}

	if target == "off" {
		target = ""
	}
	if err := b.store.SetProbeTarget(context.Background(), chatID, target); err != nil {
		log.Printf("[bot] set probe target for %d: %v", chatID, err)
		return c.Send(msgError)
	}
	if target == "" {
		return c.Send(msgProbeCleared, mainMenu)
	}
	return c.Send(fmt.Sprintf(msgProbeSet, html.EscapeString(target)), tele.ModeHTML, mainMenu)
}

func (b *Bot) handleMute(c tele.Context) error {
	return b.setSuppressed(c, true, msgMuted)
}

func (b *Bot) handleUnmute(c tele.Context) error {
	return b.setSuppressed(c, false, msgUnmuted)
}

func (b *Bot) setSuppressed(c tele.Context, suppressed bool, reply string) error {
	chatID := c.Sender().ID
	if _, err := b.store.Get(context.Background(), chatID); errors.Is(err, store.ErrNotFound) {
		return c.Send(msgStatusNoSignal, htmlOpts)
	}
	if err := b.store.SetSuppressed(context.Background(), chatID, suppressed); err != nil {
		log.Printf("[bot] set suppressed=%v for %d: %v", suppressed, chatID, err)
		return c.Send(msgError)
	}
	return c.Send(reply, mainMenu)
}

func (b *Bot) handleCancel(c tele.Context) error {
	b.sessions.Delete(c.Sender().ID)
	return c.Send(msgCancelled, mainMenu)
}
