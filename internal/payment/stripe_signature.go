package payment

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// DefaultStripeTolerance допустимый возраст подписи Stripe.
const DefaultStripeTolerance = 5 * time.Minute

var (
	ErrStripeHeader   = errors.New("payment: некорректный заголовок Stripe-Signature")
	ErrStripeExpired  = errors.New("payment: подпись Stripe устарела")
	ErrStripeMismatch = errors.New("payment: подпись Stripe не совпадает")
)

// VerifyStripeSignature проверяет заголовок вида "t=<unix>,v1=<hex>[,v1=...]".
// Подписывается строка "<t>.<body>"; достаточно совпадения любой v1.
func VerifyStripeSignature(secret string, body []byte, header string, now time.Time, tolerance time.Duration) error {
	if secret == "" {
		return ErrStripeMismatch
	}

	var (
		timestamp  string
		signatures []string
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return ErrStripeHeader
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrStripeHeader
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(unix, 0))
		if age > tolerance || age < -tolerance {
			return ErrStripeExpired
		}
	}

	payload := make([]byte, 0, len(timestamp)+1+len(body))
	payload = append(payload, timestamp...)
	payload = append(payload, '.')
	payload = append(payload, body...)

	for _, sig := range signatures {
		if VerifyHex(secret, payload, sig) {
			return nil
		}
	}
	return ErrStripeMismatch
}

// SignStripePayload строит заголовок Stripe-Signature; используется в тестах и локальной отладке.
func SignStripePayload(secret string, body []byte, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return "t=" + ts + ",v1=" + SignHex(secret, append([]byte(ts+"."), body...))
}
