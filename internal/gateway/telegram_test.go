package gateway

import (
	"reflect"
	"testing"
)

func msg(from *tgUser, chatID int64, text string) *tgMessage {
	m := &tgMessage{MessageID: 42, From: from, Text: text}
	m.Chat.ID = chatID
	return m
}

var alice = &tgUser{ID: 10, FirstName: "Alice", Username: "alice"}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		raw    tgUpdate
		want   Update
		wantOK bool
	}{
		{
			name: "plain text",
			raw:  tgUpdate{Message: msg(alice, 10, "hello there")},
			want: Update{
				Kind: UpdateText, UserID: 10, Username: "alice", DisplayName: "Alice",
				ChatID: 10, MessageID: 42, Text: "hello there",
			},
			wantOK: true,
		},
		{
			name: "start command with deep link",
			raw:  tgUpdate{Message: msg(alice, 10, "/start ACME-2024")},
			want: Update{
				Kind: UpdateCommand, UserID: 10, Username: "alice", DisplayName: "Alice",
				ChatID: 10, MessageID: 42, Text: "/start ACME-2024",
				Command: "start", CommandArg: "ACME-2024",
			},
			wantOK: true,
		},
		{
			name: "command with bot mention",
			raw:  tgUpdate{Message: msg(alice, 10, "/start@support_bot")},
			want: Update{
				Kind: UpdateCommand, UserID: 10, Username: "alice", DisplayName: "Alice",
				ChatID: 10, MessageID: 42, Text: "/start@support_bot",
				Command: "start",
			},
			wantOK: true,
		},
		{
			name:   "empty message dropped",
			raw:    tgUpdate{Message: msg(alice, 10, "")},
			wantOK: false,
		},
		{
			name:   "message without sender dropped",
			raw:    tgUpdate{Message: msg(nil, 10, "anonymous")},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := classify(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("classify() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("classify() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestClassifyPhotoPicksLargestRendition(t *testing.T) {
	m := msg(alice, 10, "")
	m.Caption = "see screenshot"
	m.Photo = []tgFile{{FileID: "small"}, {FileID: "medium"}, {FileID: "large"}}

	got, ok := classify(tgUpdate{Message: m})
	if !ok {
		t.Fatal("classify() dropped a photo message")
	}
	if got.Kind != UpdateAttachment {
		t.Fatalf("classify() kind = %q, want attachment", got.Kind)
	}
	if got.Attachment.FileID != "large" {
		t.Errorf("FileID = %q, want the last rendition", got.Attachment.FileID)
	}
	if got.Attachment.Caption != "see screenshot" {
		t.Errorf("Caption = %q, want the message caption", got.Attachment.Caption)
	}
}

func TestClassifyCallback(t *testing.T) {
	m := msg(alice, -100777, "")
	m.MessageThreadID = 321
	raw := tgUpdate{}
	raw.Callback = &struct {
		ID      string     `json:"id"`
		From    tgUser     `json:"from"`
		Message *tgMessage `json:"message"`
		Data    string     `json:"data"`
	}{ID: "cb-9", From: *alice, Message: m, Data: "op:take:7"}

	got, ok := classify(raw)
	if !ok {
		t.Fatal("classify() dropped a callback")
	}
	if got.Kind != UpdateButton || got.Data != "op:take:7" || got.CallbackID != "cb-9" {
		t.Errorf("classify() = %+v, want button op:take:7", got)
	}
	if got.ChatID != -100777 || got.ThreadID != 321 {
		t.Errorf("classify() chat/thread = %d/%d, want -100777/321", got.ChatID, got.ThreadID)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		user *tgUser
		want string
	}{
		{&tgUser{FirstName: "Alice", LastName: "Liddell"}, "Alice Liddell"},
		{&tgUser{FirstName: "Alice"}, "Alice"},
		{&tgUser{Username: "alice"}, "alice"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := tt.user.displayName(); got != tt.want {
			t.Errorf("displayName(%+v) = %q, want %q", tt.user, got, tt.want)
		}
	}
}

func TestKeyboardMarkup(t *testing.T) {
	kb := (&Keyboard{}).
		Row(Button{Text: "A", Data: "a"}, Button{Text: "B", Data: "b"}).
		Row(Button{Text: "C", Data: "c"})

	markup := markupFor(kb)
	if markup == nil {
		t.Fatal("markupFor() = nil")
	}
	if len(markup.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d, want 2", len(markup.InlineKeyboard))
	}
	if len(markup.InlineKeyboard[0]) != 2 || markup.InlineKeyboard[0][1].CallbackData != "b" {
		t.Errorf("first row = %+v, want two buttons ending in data b", markup.InlineKeyboard[0])
	}

	if markupFor(nil) != nil {
		t.Error("markupFor(nil) should be nil")
	}
}
