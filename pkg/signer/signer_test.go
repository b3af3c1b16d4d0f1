package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampHasNoMillis(t *testing.T) {
	ts := Timestamp(time.Date(2024, 3, 1, 12, 30, 45, 987_000_000, time.FixedZone("x", 3*3600)))
	assert.Equal(t, "2024-03-01T09:30:45", ts)
}

func TestCanonicalSortsAndEncodes(t *testing.T) {
	got := Canonical(map[string]string{
		"b":         "2",
		"Timestamp": "2024-03-01T09:30:45",
		"a":         "x y",
	})
	assert.Equal(t, "Timestamp=2024-03-01T09%3A30%3A45&a=x%20y&b=2", got)
}

func TestSignMatchesManualHMAC(t *testing.T) {
	s := New("ak", "secret")
	params := s.Params("2024-03-01T09:30:45")

	got := s.Sign("get", "API.HBDM.COM", "/linear-swap-notification", params)

	payload := "GET\napi.hbdm.com\n/linear-swap-notification\n" + Canonical(params)
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte(payload))
	assert.Equal(t, base64.StdEncoding.EncodeToString(mac.Sum(nil)), got)
}

func TestSignedQueryCarriesSignature(t *testing.T) {
	s := New("ak", "secret")
	q := s.SignedQuery("POST", "api.hbdm.com", "/linear-swap-api/v1/swap_order", nil, time.Unix(0, 0))

	v, err := url.ParseQuery(q)
	require.NoError(t, err)
	assert.Equal(t, "ak", v.Get("AccessKeyId"))
	assert.Equal(t, "2", v.Get("SignatureVersion"))
	assert.Equal(t, "1970-01-01T00:00:00", v.Get("Timestamp"))
	assert.NotEmpty(t, v.Get("Signature"))
}
