//go:build !integration

package telegram

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestDelivery(t *testing.T) {
	ctx := context.Background()

	t.Run("text, file and edit map to bot api calls", func(t *testing.T) {
		api := &fakeAPI{}
		d := NewDelivery(api, newTestLogger())

		if err := d.SendText(ctx, 42, "hello"); err != nil {
			t.Fatal(err)
		}
		if err := d.SendFile(ctx, 42, "/tmp/participants.txt", "Participants list"); err != nil {
			t.Fatal(err)
		}
		if err := d.EditStatusMessage(ctx, 42, 9, "done"); err != nil {
			t.Fatal(err)
		}

		msg, ok := api.sent[0].(tgbotapi.MessageConfig)
		if !ok || msg.ChatID != 42 || msg.Text != "hello" {
			t.Errorf("unexpected message %+v", api.sent[0])
		}
		doc, ok := api.sent[1].(tgbotapi.DocumentConfig)
		if !ok || doc.ChatID != 42 || doc.Caption != "Participants list" {
			t.Errorf("unexpected document %+v", api.sent[1])
		}
		if fp, ok := doc.File.(tgbotapi.FilePath); !ok || string(fp) != "/tmp/participants.txt" {
			t.Errorf("unexpected document file %#v", doc.File)
		}
		edits := api.edits()
		if len(edits) != 1 || edits[0].ChatID != 42 || edits[0].MessageID != 9 || edits[0].Text != "done" {
			t.Errorf("unexpected edits %+v", edits)
		}
	})

	t.Run("unchanged edit is not an error", func(t *testing.T) {
		api := &fakeAPI{requestErr: errors.New("Bad Request: message is not modified")}
		d := NewDelivery(api, newTestLogger())
		if err := d.EditStatusMessage(ctx, 1, 2, "same"); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	t.Run("other edit errors surface", func(t *testing.T) {
		api := &fakeAPI{requestErr: errors.New("Forbidden: bot was blocked by the user")}
		d := NewDelivery(api, newTestLogger())
		if err := d.EditStatusMessage(ctx, 1, 2, "x"); err == nil {
			t.Error("expected an error")
		}
	})

	t.Run("cancelled context sends nothing", func(t *testing.T) {
		api := &fakeAPI{}
		d := NewDelivery(api, newTestLogger())
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if err := d.SendText(cctx, 1, "x"); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if len(api.sent) != 0 {
			t.Error("expected nothing sent")
		}
	})
}
