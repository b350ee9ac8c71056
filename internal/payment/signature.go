package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignHex возвращает HMAC-SHA256 полезной нагрузки в hex.
func SignHex(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHex сравнивает подпись с ожидаемым HMAC за постоянное время.
// Пустой секрет или подпись, не являющаяся hex, всегда дают false.
func VerifyHex(secret string, payload []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), got)
}

// VerifyRazorpayPayment проверяет подпись, которую клиент получает после оплаты.
func VerifyRazorpayPayment(keySecret, orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" {
		return false
	}
	return VerifyHex(keySecret, []byte(orderID+"|"+paymentID), signature)
}

// VerifyWebhookSignature проверяет подпись тела вебхука Razorpay.
func VerifyWebhookSignature(webhookSecret string, body []byte, signature string) bool {
	return VerifyHex(webhookSecret, body, signature)
}
