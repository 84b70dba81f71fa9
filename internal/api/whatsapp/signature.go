package whatsapp

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

const signatureHeader = "X-Twilio-Signature"

// SignatureVerifier checks that inbound webhooks were signed by Twilio with the account
// auth token. Without a token every request is rejected.
type SignatureVerifier struct {
	authToken  string
	webhookURL string
}

// NewSignatureVerifier builds a verifier. webhookURL is the public URL configured in
// Twilio; when empty it is rebuilt from the request and X-Forwarded-Proto.
func NewSignatureVerifier(authToken, webhookURL string) *SignatureVerifier {
	return &SignatureVerifier{authToken: authToken, webhookURL: webhookURL}
}

// Verify reports whether the request carries a valid signature. The form must already be parsed.
func (v *SignatureVerifier) Verify(r *http.Request) bool {
	got := r.Header.Get(signatureHeader)
	if v.authToken == "" || got == "" {
		return false
	}
	want := Signature(v.authToken, v.requestURL(r), r.PostForm)
	return hmac.Equal([]byte(got), []byte(want))
}

func (v *SignatureVerifier) requestURL(r *http.Request) string {
	if v.webhookURL != "" {
		return v.webhookURL
	}
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// Signature is base64(HMAC-SHA1(authToken, url + sorted name/value pairs)).
func Signature(authToken, fullURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		values := append([]string(nil), params[k]...)
		sort.Strings(values)
		for _, val := range values {
			b.WriteString(k)
			b.WriteString(val)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
