package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	Method    = "HmacSHA256"
	Version   = "2"
	tsLayout  = "2006-01-02T15:04:05"
	keyAccess = "AccessKeyId"
)

// Signer подпись HTX v2: HMAC-SHA256 от "METHOD\nhost\npath\nquery", base64.
type Signer struct {
	accessKey string
	secretKey []byte
}

func New(accessKey, secretKey string) *Signer {
	return &Signer{accessKey: accessKey, secretKey: []byte(secretKey)}
}

func (s *Signer) AccessKey() string { return s.accessKey }

// Timestamp UTC с точностью до секунды, без миллисекунд.
func Timestamp(now time.Time) string {
	return now.UTC().Format(tsLayout)
}

// Params обязательные параметры подписи без самой Signature.
func (s *Signer) Params(ts string) map[string]string {
	return map[string]string{
		keyAccess:          s.accessKey,
		"SignatureMethod":  Method,
		"SignatureVersion": Version,
		"Timestamp":        ts,
	}
}

// Canonical отсортированная по ключу и percent-encoded строка запроса.
func Canonical(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(encode(params[k]))
	}
	return b.String()
}

// encode как у биржи: пробел это %20, не "+".
func encode(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}

// Sign подписывает payload method\nhost\npath\nquery.
func (s *Signer) Sign(method, host, path string, params map[string]string) string {
	payload := strings.ToUpper(method) + "\n" + strings.ToLower(host) + "\n" + path + "\n" + Canonical(params)
	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// SignedQuery params + подпись, готово для URL.RawQuery.
func (s *Signer) SignedQuery(method, host, path string, extra map[string]string, now time.Time) string {
	params := s.Params(Timestamp(now))
	for k, v := range extra {
		params[k] = v
	}
	params["Signature"] = s.Sign(method, host, path, params)
	return Canonical(params)
}
