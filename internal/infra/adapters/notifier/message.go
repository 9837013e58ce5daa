package notifier

import (
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"

	"telegram-order-bot/internal/domain/model"
)

// Subject is the admin e-mail subject for order.
func Subject(order *model.Order) string {
	return "Новый заказ от " + order.DisplayName()
}

// Body is the plain-text order summary sent to the admin.
func Body(order *model.Order, catalog *model.ShippingCatalog) string {
	shipping := string(order.ShippingMethod)
	if catalog != nil {
		if opt, err := catalog.Lookup(order.ShippingMethod); err == nil {
			shipping = opt.Name
		}
	}
	var b strings.Builder
	b.WriteString("Детали заказа:\n\n")
	fmt.Fprintf(&b, "ID клиента: %d\n", order.UserID)
	fmt.Fprintf(&b, "Ссылка: %s\n", order.Link)
	fmt.Fprintf(&b, "Цена: %.2f CNY → %.2f RUB\n", order.PriceCNY, order.PriceRUB())
	fmt.Fprintf(&b, "Доставка: %s\n", shipping)
	fmt.Fprintf(&b, "Контакт: %s\n", order.Contact)
	fmt.Fprintf(&b, "Номер заказа: %s\n", order.ID)
	return b.String()
}

// newMessage builds the admin e-mail. The body is base64 encoded so the
// Cyrillic text survives any relay.
func (n *SMTPNotifier) newMessage(order *model.Order) (*mail.Msg, error) {
	m := mail.NewMsg(mail.WithCharset(mail.CharsetUTF8), mail.WithEncoding(mail.EncodingB64))
	if err := m.From(n.cfg.Address); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := m.To(n.cfg.Address); err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}
	m.Subject(Subject(order))
	m.SetDateWithValue(n.now())
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextPlain, Body(order, n.catalog))
	return m, nil
}
