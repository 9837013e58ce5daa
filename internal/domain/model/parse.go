package model

import (
	"math"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"telegram-order-bot/internal/domain"
)

// MaxPriceCNY bounds a single item price; anything above is almost always a typo.
const MaxPriceCNY = 1_000_000

var (
	priceSuffixes = []string{"cny", "rmb", "юаней", "юаня", "юань", "¥", "￥"}
	telegramNick  = regexp.MustCompile(`^@[A-Za-z][A-Za-z0-9_]{4,31}$`)
	phoneChars    = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
	phoneDigits   = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
)

// ParseLink accepts an absolute http(s) URL with a host.
func ParseLink(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \t\n") {
		return "", domain.ErrInvalidLink
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", domain.ErrInvalidLink
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Hostname() == "" {
		return "", domain.ErrInvalidLink
	}
	return u.String(), nil
}

// ParsePrice reads a positive CNY amount. Both "12.5" and "12,5" are accepted,
// as are currency suffixes and spaces used as thousands separators.
func ParsePrice(s string) (float64, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, suf := range priceSuffixes {
		v = strings.TrimSpace(strings.TrimSuffix(v, suf))
		v = strings.TrimSpace(strings.TrimPrefix(v, suf))
	}
	v = strings.ReplaceAll(v, " ", "")
	v = strings.ReplaceAll(v, "\u00a0", "")
	v = strings.ReplaceAll(v, ",", ".")
	if v == "" {
		return 0, domain.ErrInvalidPrice
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, domain.ErrInvalidPrice
	}
	f = math.Round(f*100) / 100
	if f <= 0 || f > MaxPriceCNY {
		return 0, domain.ErrInvalidPrice
	}
	return f, nil
}

// ParseContact accepts a Telegram @username, a phone number or an e-mail address.
func ParseContact(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 128 {
		return "", domain.ErrInvalidContact
	}
	if telegramNick.MatchString(s) {
		return s, nil
	}
	if p := phoneChars.Replace(s); phoneDigits.MatchString(p) {
		return p, nil
	}
	if strings.Contains(s, "@") {
		if addr, err := mail.ParseAddress(s); err == nil && addr.Name == "" {
			return addr.Address, nil
		}
	}
	return "", domain.ErrInvalidContact
}
