package ecommerce

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// SignatureHeader cabecera con el HMAC-SHA256 (base64) del cuerpo del webhook.
const SignatureHeader = "X-Webhook-Hmac-Sha256"

// Sign firma el cuerpo con el secreto compartido.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyWebhook compara en tiempo constante. Secreto vacío nunca verifica.
func VerifyWebhook(secret string, body []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if secret == "" || signature == "" {
		return false
	}
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
