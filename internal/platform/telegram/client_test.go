package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T, fn func(method string, body []byte, r *http.Request) string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		method := parts[len(parts)-1]
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, fn(method, body, r))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSendMessageWithKeyboard(t *testing.T) {
	var got sendMessageReq
	srv := newTestServer(t, func(method string, body []byte, r *http.Request) string {
		if method != "sendMessage" {
			t.Errorf("unexpected method %s", method)
		}
		if !strings.Contains(r.URL.Path, "/botTOKEN/") {
			t.Errorf("token missing from path %s", r.URL.Path)
		}
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode: %v", err)
		}
		return `{"ok":true,"result":{"message_id":1}}`
	})

	c := NewClient("TOKEN", srv.URL)
	kb := InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{{{Text: "Yes", CallbackData: "c:yes"}}}}
	if err := c.SendMessageWithKeyboard(context.Background(), 42, "*raw* _text_", kb); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.ChatID != 42 || got.Text != "*raw* _text_" {
		t.Fatalf("unexpected request %+v", got)
	}
	if got.ReplyMarkup == nil || got.ReplyMarkup.InlineKeyboard[0][0].CallbackData != "c:yes" {
		t.Fatalf("keyboard not sent: %+v", got.ReplyMarkup)
	}
}

func TestAPIErrorSurfaced(t *testing.T) {
	srv := newTestServer(t, func(string, []byte, *http.Request) string {
		return `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`
	})
	c := NewClient("T", srv.URL)
	err := c.SendMessage(context.Background(), 1, "hi")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != 403 || apiErr.Method != "sendMessage" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestGetUpdatesDecodes(t *testing.T) {
	srv := newTestServer(t, func(method string, body []byte, _ *http.Request) string {
		var req getUpdatesReq
		_ = json.Unmarshal(body, &req)
		if req.Offset != 7 || req.Timeout != 1 {
			t.Errorf("unexpected getUpdates request %+v", req)
		}
		return `{"ok":true,"result":[
			{"update_id":7,"message":{"message_id":1,"from":{"id":5},"chat":{"id":9,"type":"private"},"text":"/start"}},
			{"update_id":8,"callback_query":{"id":"cb","from":{"id":5},"message":{"message_id":2,"chat":{"id":9}},"data":"c:yes"}}
		]}`
	})
	c := NewClient("T", srv.URL)
	updates, err := c.GetUpdates(context.Background(), 7, time.Second)
	if err != nil {
		t.Fatalf("getUpdates: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	if updates[0].Message.Text != "/start" || updates[0].Message.Chat.ID != 9 {
		t.Fatalf("message not decoded: %+v", updates[0].Message)
	}
	if updates[1].CallbackQuery.Data != "c:yes" || updates[1].CallbackQuery.From.ID != 5 {
		t.Fatalf("callback not decoded: %+v", updates[1].CallbackQuery)
	}
}

func TestSendDocumentMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if r.FormValue("chat_id") != "77" {
			t.Errorf("chat_id = %q", r.FormValue("chat_id"))
		}
		f, h, err := r.FormFile("document")
		if err != nil {
			t.Errorf("document missing: %v", err)
		} else {
			data, _ := io.ReadAll(f)
			if string(data) != "%PDF" || h.Filename != "r.pdf" {
				t.Errorf("unexpected upload %q %q", data, h.Filename)
			}
		}
		io.WriteString(w, `{"ok":true,"result":{}}`)
	}))
	defer srv.Close()

	c := NewClient("T", srv.URL)
	if err := c.SendDocument(context.Background(), 77, []byte("%PDF"), "r.pdf"); err != nil {
		t.Fatalf("sendDocument: %v", err)
	}
}

func TestPollerAdvancesOffset(t *testing.T) {
	var calls int32
	var offsets []int64
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := newTestServer(t, func(method string, body []byte, _ *http.Request) string {
		var req getUpdatesReq
		_ = json.Unmarshal(body, &req)
		offsets = append(offsets, req.Offset)
		if atomic.AddInt32(&calls, 1) == 1 {
			return `{"ok":true,"result":[{"update_id":10},{"update_id":11}]}`
		}
		cancel()
		return `{"ok":true,"result":[]}`
	})

	var handled []int64
	p := NewPoller(NewClient("T", srv.URL), time.Second, func(_ context.Context, u Update) {
		handled = append(handled, u.UpdateID)
	}, zerolog.Nop())

	if err := p.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(handled) != 2 || handled[0] != 10 || handled[1] != 11 {
		t.Fatalf("handled = %v", handled)
	}
	if len(offsets) < 2 || offsets[1] != 12 {
		t.Fatalf("offsets = %v", offsets)
	}
}

func TestIdentityKeyRoundTrip(t *testing.T) {
	key := IdentityKey(-100123, 55)
	chat, err := ChatOf(key)
	if err != nil || chat != -100123 {
		t.Fatalf("ChatOf(%q) = %d, %v", key, chat, err)
	}
	if _, err := ChatOf("nonsense"); err == nil {
		t.Fatal("expected error for malformed key")
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		cmd  string
		isOK bool
	}{
		{"/start", "start", true},
		{"/newpatient@dental_bot", "newpatient", true},
		{"/EXIT now", "exit", true},
		{"hello", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		cmd, ok := ParseCommand(tt.in)
		if cmd != tt.cmd || ok != tt.isOK {
			t.Errorf("ParseCommand(%q) = %q, %v", tt.in, cmd, ok)
		}
	}
}
