//go:build !integration

package i18n

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestTranslator(t *testing.T) {
	translator, err := newTranslatorFromBytes([]byte("greeting: Привет\nwelcome_user: Привет, %s"))
	if err != nil {
		t.Fatalf("newTranslatorFromBytes failed: %v", err)
	}

	t.Run("should translate a simple key", func(t *testing.T) {
		if got := translator.T("greeting"); got != "Привет" {
			t.Errorf("wanted 'Привет', got '%s'", got)
		}
	})

	t.Run("should return key if not found", func(t *testing.T) {
		if got := translator.T("nonexistent_key"); got != "nonexistent_key" {
			t.Errorf("wanted 'nonexistent_key', got '%s'", got)
		}
	})

	t.Run("should format arguments correctly", func(t *testing.T) {
		if got := translator.T("welcome_user", "Иван"); got != "Привет, Иван" {
			t.Errorf("wanted 'Привет, Иван', got '%s'", got)
		}
	})
}

func TestNewTranslator_FromFS(t *testing.T) {
	fsys := fstest.MapFS{"locales/xx.yaml": {Data: []byte("k: v")}}
	tr, err := NewTranslator(fsys, "xx")
	if err != nil {
		t.Fatalf("NewTranslator failed: %v", err)
	}
	if tr.T("k") != "v" || tr.Lang() != "xx" {
		t.Errorf("unexpected translator state")
	}
	if _, err := NewTranslator(fsys, "zz"); err == nil {
		t.Error("expected error for missing locale file")
	}
}

func TestEmbeddedRussianLocale(t *testing.T) {
	tr := MustDefault()
	for _, key := range []string{
		"start", "link_invalid", "ask_price", "price_invalid", "price_converted",
		"shipping_button", "shipping_invalid", "ask_contact", "contact_invalid",
		"summary", "confirm_invalid", "confirmed", "declined", "cancelled",
		"nothing_to_cancel", "help", "healthy", "idle_hint", "busy", "rate_limited",
		"error", "answer_yes", "answer_no", "shipping_free", "shipping_per_kg",
		"shipping_use_buttons",
	} {
		if !tr.Has(key) {
			t.Errorf("missing key %q in embedded ru locale", key)
		}
	}
	if !strings.Contains(tr.T("help"), "/cancel") {
		t.Error("help text must list /cancel")
	}
}
