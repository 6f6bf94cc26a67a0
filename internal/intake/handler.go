package intake

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"dental-intake-bot/internal/platform/telegram"
)

// TelegramClient is the slice of the Bot API the handler needs.
type TelegramClient interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendMessageWithKeyboard(ctx context.Context, chatID int64, text string, kb telegram.InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, id string) error
}

var commands = map[string]Command{
	"start":      CommandStart,
	"newpatient": CommandNewEntry,
	"exit":       CommandCancel,
}

// Handler turns raw Telegram updates into controller events, queued per
// identity on the dispatcher.
type Handler struct {
	svc           Service
	dispatcher    *Dispatcher
	tg            TelegramClient
	webhookSecret string
	log           zerolog.Logger
}

func NewHandler(svc Service, dispatcher *Dispatcher, tg TelegramClient, webhookSecret string, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:           svc,
		dispatcher:    dispatcher,
		tg:            tg,
		webhookSecret: webhookSecret,
		log:           logger.With().Str("component", "telegram-handler").Logger(),
	}
}

// HandleUpdate demultiplexes one update. It returns immediately; the event
// runs on the identity's queue.
func (h *Handler) HandleUpdate(_ context.Context, u telegram.Update) {
	switch {
	case u.Message != nil:
		h.handleMessage(u.Message)
	case u.CallbackQuery != nil:
		h.handleCallback(u.CallbackQuery)
	}
}

func (h *Handler) handleMessage(m *telegram.Message) {
	if m.From == nil || m.From.IsBot || m.Text == "" {
		return
	}
	id := Identity(telegram.IdentityKey(m.Chat.ID, m.From.ID))
	text := m.Text

	if name, ok := telegram.ParseCommand(text); ok {
		cmd, known := commands[name]
		if !known {
			return
		}
		h.dispatcher.Submit(id, func(ctx context.Context) {
			h.svc.HandleCommand(ctx, id, cmd)
		})
		return
	}
	h.dispatcher.Submit(id, func(ctx context.Context) {
		h.svc.HandleText(ctx, id, text)
	})
}

func (h *Handler) handleCallback(q *telegram.CallbackQuery) {
	if q.Message == nil {
		return
	}
	id := Identity(telegram.IdentityKey(q.Message.Chat.ID, q.From.ID))
	queryID, data := q.ID, q.Data
	h.dispatcher.Submit(id, func(ctx context.Context) {
		h.svc.HandleChoice(ctx, id, data)
		// always clear the button spinner, whatever the outcome
		if err := h.tg.AnswerCallbackQuery(ctx, queryID); err != nil {
			h.log.Warn().Err(err).Str("identity", string(id)).Msg("answerCallbackQuery failed")
		}
	})
}

// Webhook receives updates pushed by Telegram.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.webhookSecret != "" {
		got := r.Header.Get("X-Telegram-Bot-Api-Secret-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.webhookSecret)) != 1 {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	var u telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		http.Error(w, "Invalid update", http.StatusBadRequest)
		return
	}
	h.HandleUpdate(r.Context(), u)
	w.WriteHeader(http.StatusOK)
}

func Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/healthz", Health)
	if h != nil {
		r.Post("/telegram/webhook", h.Webhook)
	}
}

// telegramMessenger sends controller replies through the Bot API.
type telegramMessenger struct {
	tg  TelegramClient
	log zerolog.Logger
}

func NewTelegramMessenger(tg TelegramClient, logger zerolog.Logger) Messenger {
	return &telegramMessenger{tg: tg, log: logger.With().Str("component", "telegram-messenger").Logger()}
}

func (m *telegramMessenger) SendPrompt(ctx context.Context, id Identity, text string) {
	chatID, err := telegram.ChatOf(string(id))
	if err != nil {
		m.log.Error().Err(err).Msg("cannot route reply")
		return
	}
	if err := m.tg.SendMessage(ctx, chatID, text); err != nil {
		m.log.Error().Err(err).Str("identity", string(id)).Msg("sendMessage failed")
	}
}

func (m *telegramMessenger) PresentChoices(ctx context.Context, id Identity, text string, choices []Button) {
	chatID, err := telegram.ChatOf(string(id))
	if err != nil {
		m.log.Error().Err(err).Msg("cannot route reply")
		return
	}
	if err := m.tg.SendMessageWithKeyboard(ctx, chatID, text, keyboard(choices)); err != nil {
		m.log.Error().Err(err).Str("identity", string(id)).Msg("sendMessage with keyboard failed")
	}
}

// keyboard puts up to three buttons on one row, longer lists one per row.
func keyboard(choices []Button) telegram.InlineKeyboardMarkup {
	var rows [][]telegram.InlineKeyboardButton
	if len(choices) <= 3 {
		row := make([]telegram.InlineKeyboardButton, 0, len(choices))
		for _, c := range choices {
			row = append(row, telegram.InlineKeyboardButton{Text: c.Label, CallbackData: c.Token})
		}
		rows = append(rows, row)
	} else {
		for _, c := range choices {
			rows = append(rows, []telegram.InlineKeyboardButton{{Text: c.Label, CallbackData: c.Token}})
		}
	}
	return telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}
