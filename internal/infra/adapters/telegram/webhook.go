package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// SecretTokenHeader carries the secret_token given to setWebhook.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

const maxUpdateBytes = 1 << 20

// RegisterWebhook points Telegram at url. The library's WebhookConfig has no
// secret_token field, so the call is made with raw params.
func (r *RealTelegramBotAdapter) RegisterWebhook(ctx context.Context, url, secret string) error {
	if r.bot == nil {
		return errors.New("webhook registration requires a Bot API client")
	}
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)
	resp, err := r.bot.MakeRequest("setWebhook", params)
	if err != nil {
		return fmt.Errorf("setWebhook: %w", err)
	}
	if !resp.Ok {
		return fmt.Errorf("setWebhook: %s", resp.Description)
	}
	r.log.Info().Str("url", url).Msg("webhook registered")
	return nil
}

// WebhookHandler accepts updates pushed by Telegram. It answers as soon as the
// update is queued; processing happens on the same workers as polling.
func (r *RealTelegramBotAdapter) WebhookHandler(secret string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		got := req.Header.Get(SecretTokenHeader)
		if secret != "" && subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			r.log.Warn().Str("remote", req.RemoteAddr).Msg("webhook call with bad secret token")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		body, err := io.ReadAll(io.LimitReader(req.Body, maxUpdateBytes))
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		var update tgbotapi.Update
		if err := json.Unmarshal(body, &update); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		if err := r.dispatcher.TryDispatch(update); err != nil {
			// Telegram retries non-2xx responses later.
			r.log.Warn().Err(err).Int("update_id", update.UpdateID).Msg("webhook update not queued")
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}
