package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Telegram implements Gateway over the Bot API with a plain HTTP client.
// Only the handful of methods the core needs are bound.
type Telegram struct {
	token   string
	baseURL string
	client  *http.Client
}

// NewTelegram builds a Bot API gateway for the given token.
func NewTelegram(token string) *Telegram {
	return &Telegram{
		token:   token,
		baseURL: "https://api.telegram.org",
		client:  &http.Client{Timeout: 90 * time.Second},
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

func (t *Telegram) call(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if !parsed.OK {
		return fmt.Errorf("%s: %s", method, parsed.Description)
	}
	if out != nil {
		return json.Unmarshal(parsed.Result, out)
	}
	return nil
}

type inlineKeyboard struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

func markupFor(kb *Keyboard) *inlineKeyboard {
	if kb == nil || len(kb.Rows) == 0 {
		return nil
	}
	rows := make([][]inlineButton, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		line := make([]inlineButton, 0, len(row))
		for _, b := range row {
			line = append(line, inlineButton{Text: b.Text, CallbackData: b.Data})
		}
		rows = append(rows, line)
	}
	return &inlineKeyboard{InlineKeyboard: rows}
}

// SendMessage delivers text to a chat or thread.
func (t *Telegram) SendMessage(ctx context.Context, chatID, threadID int64, text string, kb *Keyboard) (int64, error) {
	payload := map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	if threadID != 0 {
		payload["message_thread_id"] = threadID
	}
	if markup := markupFor(kb); markup != nil {
		payload["reply_markup"] = markup
	}
	var result struct {
		MessageID int64 `json:"message_id"`
	}
	if err := t.call(ctx, "sendMessage", payload, &result); err != nil {
		return 0, err
	}
	return result.MessageID, nil
}

// SendAttachment delivers a stored file by its file id.
func (t *Telegram) SendAttachment(ctx context.Context, chatID, threadID int64, att AttachmentRef) error {
	method, field := attachmentMethod(att.Kind)
	payload := map[string]any{
		"chat_id": chatID,
		field:     att.FileID,
	}
	if threadID != 0 {
		payload["message_thread_id"] = threadID
	}
	if att.Caption != "" {
		payload["caption"] = att.Caption
	}
	return t.call(ctx, method, payload, nil)
}

func attachmentMethod(kind AttachmentKind) (method, field string) {
	switch kind {
	case AttachmentPhoto:
		return "sendPhoto", "photo"
	case AttachmentVideo:
		return "sendVideo", "video"
	case AttachmentVoice:
		return "sendVoice", "voice"
	case AttachmentAudio:
		return "sendAudio", "audio"
	default:
		return "sendDocument", "document"
	}
}

// CreateThread opens a forum topic and returns its thread id.
func (t *Telegram) CreateThread(ctx context.Context, chatID int64, name string) (int64, error) {
	var result struct {
		MessageThreadID int64 `json:"message_thread_id"`
	}
	err := t.call(ctx, "createForumTopic", map[string]any{
		"chat_id": chatID,
		"name":    name,
	}, &result)
	if err != nil {
		return 0, err
	}
	return result.MessageThreadID, nil
}

// ForwardMessage relays an existing message by reference.
func (t *Telegram) ForwardMessage(ctx context.Context, toChatID, threadID, fromChatID, messageID int64) error {
	payload := map[string]any{
		"chat_id":      toChatID,
		"from_chat_id": fromChatID,
		"message_id":   messageID,
	}
	if threadID != 0 {
		payload["message_thread_id"] = threadID
	}
	return t.call(ctx, "forwardMessage", payload, nil)
}

// React marks a message with an emoji reaction.
func (t *Telegram) React(ctx context.Context, chatID, messageID int64, emoji string) error {
	return t.call(ctx, "setMessageReaction", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"reaction":   []map[string]string{{"type": "emoji", "emoji": emoji}},
	}, nil)
}

// AnswerButton acknowledges a callback query.
func (t *Telegram) AnswerButton(ctx context.Context, callbackID, text string, alert bool) error {
	payload := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		payload["text"] = text
		payload["show_alert"] = alert
	}
	return t.call(ctx, "answerCallbackQuery", payload, nil)
}

type tgUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

func (u *tgUser) displayName() string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	return u.Username
}

type tgFile struct {
	FileID string `json:"file_id"`
}

type tgMessage struct {
	MessageID       int64              `json:"message_id"`
	From            *tgUser            `json:"from"`
	Chat            struct{ ID int64 } `json:"chat"`
	MessageThreadID int64              `json:"message_thread_id"`
	Text            string             `json:"text"`
	Caption         string             `json:"caption"`
	Photo           []tgFile           `json:"photo"`
	Video           *tgFile            `json:"video"`
	Document        *tgFile            `json:"document"`
	Voice           *tgFile            `json:"voice"`
	Audio           *tgFile            `json:"audio"`
}

type tgUpdate struct {
	UpdateID int64      `json:"update_id"`
	Message  *tgMessage `json:"message"`
	Callback *struct {
		ID      string     `json:"id"`
		From    tgUser     `json:"from"`
		Message *tgMessage `json:"message"`
		Data    string     `json:"data"`
	} `json:"callback_query"`
}

// Poll long-polls for updates and hands each classified Update to handle.
// It returns when ctx is cancelled.
func (t *Telegram) Poll(ctx context.Context, timeout time.Duration, handle func(Update)) error {
	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var updates []tgUpdate
		err := t.call(ctx, "getUpdates", map[string]any{
			"offset":          offset,
			"timeout":         int(timeout.Seconds()),
			"allowed_updates": []string{"message", "callback_query"},
		}, &updates)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			time.Sleep(2 * time.Second)
			continue
		}
		for _, raw := range updates {
			offset = raw.UpdateID + 1
			if upd, ok := classify(raw); ok {
				handle(upd)
			}
		}
	}
}

func classify(raw tgUpdate) (Update, bool) {
	if raw.Callback != nil {
		upd := Update{
			Kind:        UpdateButton,
			UserID:      raw.Callback.From.ID,
			Username:    raw.Callback.From.Username,
			DisplayName: raw.Callback.From.displayName(),
			CallbackID:  raw.Callback.ID,
			Data:        raw.Callback.Data,
		}
		if m := raw.Callback.Message; m != nil {
			upd.ChatID = m.Chat.ID
			upd.ThreadID = m.MessageThreadID
			upd.MessageID = m.MessageID
		}
		return upd, true
	}
	m := raw.Message
	if m == nil || m.From == nil {
		return Update{}, false
	}
	upd := Update{
		UserID:      m.From.ID,
		Username:    m.From.Username,
		DisplayName: m.From.displayName(),
		ChatID:      m.Chat.ID,
		ThreadID:    m.MessageThreadID,
		MessageID:   m.MessageID,
		Text:        m.Text,
	}
	if att := attachmentOf(m); att != nil {
		upd.Kind = UpdateAttachment
		upd.Attachment = att
		return upd, true
	}
	if strings.HasPrefix(m.Text, "/") {
		parts := strings.SplitN(m.Text, " ", 2)
		upd.Kind = UpdateCommand
		upd.Command = strings.TrimPrefix(strings.SplitN(parts[0], "@", 2)[0], "/")
		if len(parts) == 2 {
			upd.CommandArg = strings.TrimSpace(parts[1])
		}
		return upd, true
	}
	if m.Text == "" {
		return Update{}, false
	}
	upd.Kind = UpdateText
	return upd, true
}

func attachmentOf(m *tgMessage) *AttachmentRef {
	switch {
	case len(m.Photo) > 0:
		// Largest rendition is last.
		return &AttachmentRef{Kind: AttachmentPhoto, FileID: m.Photo[len(m.Photo)-1].FileID, Caption: m.Caption}
	case m.Video != nil:
		return &AttachmentRef{Kind: AttachmentVideo, FileID: m.Video.FileID, Caption: m.Caption}
	case m.Document != nil:
		return &AttachmentRef{Kind: AttachmentDocument, FileID: m.Document.FileID, Caption: m.Caption}
	case m.Voice != nil:
		return &AttachmentRef{Kind: AttachmentVoice, FileID: m.Voice.FileID}
	case m.Audio != nil:
		return &AttachmentRef{Kind: AttachmentAudio, FileID: m.Audio.FileID}
	}
	return nil
}
