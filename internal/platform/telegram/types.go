package telegram

import (
	"fmt"
	"strconv"
	"strings"
)

// Only the parts of the Bot API objects this bot reads.

type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Date      int64  `json:"date"`
	Text      string `json:"text,omitempty"`
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// IdentityKey scopes a user to the chat they talk in.
func IdentityKey(chatID, userID int64) string {
	return strconv.FormatInt(chatID, 10) + ":" + strconv.FormatInt(userID, 10)
}

// ChatOf recovers the chat id from an IdentityKey.
func ChatOf(key string) (int64, error) {
	chat, _, ok := strings.Cut(key, ":")
	if !ok {
		return 0, fmt.Errorf("malformed identity %q", key)
	}
	id, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed identity %q: %w", key, err)
	}
	return id, nil
}

// ParseCommand splits "/cmd@bot args" into "cmd". ok is false for non-commands.
func ParseCommand(text string) (cmd string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	head, _, _ := strings.Cut(text[1:], " ")
	head, _, _ = strings.Cut(head, "\n")
	head, _, _ = strings.Cut(head, "@")
	return strings.ToLower(head), true
}
