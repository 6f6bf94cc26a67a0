package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const DefaultAPIURL = "https://api.telegram.org"

type Client struct {
	Token      string
	baseURL    string
	httpClient *http.Client
	pollClient *http.Client
}

// NewClient builds a Bot API client. apiURL may be empty for the public API.
func NewClient(token, apiURL string) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		Token:   token,
		baseURL: strings.TrimRight(apiURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		// long polling holds the request open; the context bounds it
		pollClient: &http.Client{},
	}
}

func (c *Client) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.Token, method)
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

// APIError is a request the Bot API answered with ok=false.
type APIError struct {
	Method      string
	Status      int
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: status %d, code %d: %s", e.Method, e.Status, e.Code, e.Description)
}

func (c *Client) call(ctx context.Context, hc *http.Client, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(method), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(hc, method, req, out)
}

func (c *Client) do(hc *http.Client, method string, req *http.Request, out any) error {
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("telegram %s: read body: %w", method, err)
	}

	var ar apiResponse
	if err := json.Unmarshal(raw, &ar); err != nil {
		return fmt.Errorf("telegram %s: status %s, body: %s", method, resp.Status, string(raw))
	}
	if !ar.OK || resp.StatusCode != http.StatusOK {
		return &APIError{Method: method, Status: resp.StatusCode, Code: ar.ErrorCode, Description: ar.Description}
	}
	if out != nil && len(ar.Result) > 0 {
		if err := json.Unmarshal(ar.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}

type sendMessageReq struct {
	ChatID      int64                 `json:"chat_id"`
	Text        string                `json:"text"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// SendMessage sends plain text. No parse mode is set so operator-entered
// values with markdown characters go through untouched.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	return c.call(ctx, c.httpClient, "sendMessage", sendMessageReq{ChatID: chatID, Text: text}, nil)
}

func (c *Client) SendMessageWithKeyboard(ctx context.Context, chatID int64, text string, kb InlineKeyboardMarkup) error {
	return c.call(ctx, c.httpClient, "sendMessage", sendMessageReq{ChatID: chatID, Text: text, ReplyMarkup: &kb}, nil)
}

type answerCallbackReq struct {
	CallbackQueryID string `json:"callback_query_id"`
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, id string) error {
	return c.call(ctx, c.httpClient, "answerCallbackQuery", answerCallbackReq{CallbackQueryID: id}, nil)
}

type getUpdatesReq struct {
	Offset         int64    `json:"offset,omitempty"`
	Timeout        int      `json:"timeout"`
	AllowedUpdates []string `json:"allowed_updates"`
}

// GetUpdates long-polls for updates newer than offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout+10*time.Second)
	defer cancel()

	var updates []Update
	req := getUpdatesReq{
		Offset:         offset,
		Timeout:        int(timeout / time.Second),
		AllowedUpdates: []string{"message", "callback_query"},
	}
	if err := c.call(ctx, c.pollClient, "getUpdates", req, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

type setWebhookReq struct {
	URL            string   `json:"url"`
	SecretToken    string   `json:"secret_token,omitempty"`
	AllowedUpdates []string `json:"allowed_updates"`
}

func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	req := setWebhookReq{URL: url, SecretToken: secret, AllowedUpdates: []string{"message", "callback_query"}}
	return c.call(ctx, c.httpClient, "setWebhook", req, nil)
}

// DeleteWebhook is required before getUpdates works on a bot that had one.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, c.httpClient, "deleteWebhook", struct{}{}, nil)
}

func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var u User
	if err := c.call(ctx, c.httpClient, "getMe", struct{}{}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// SendDocument uploads fileData as a document.
func (c *Client) SendDocument(ctx context.Context, chatID int64, fileData []byte, fileName string) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return err
	}
	part, err := writer.CreateFormFile("document", fileName)
	if err != nil {
		return err
	}
	if _, err := part.Write(fileData); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("sendDocument"), body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	uploads := &http.Client{Timeout: 60 * time.Second}
	return c.do(uploads, "sendDocument", req, nil)
}
