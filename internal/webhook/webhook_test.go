package webhook

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"testing"

	domainErrors "github.com/cassiomorais/checkout/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "sk_test_secret"

var chargeBody = []byte(`{"event":"charge.success","data":{"id":1,"reference":"ref-1-1","status":"success","channel":"card","amount":500000,"fees":17500,"authorization":{"card_type":"visa","last4":"4081"}}}`)

func referenceSignature(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestValidator_Sign(t *testing.T) {
	v := NewValidator(testSecret)

	assert.Equal(t, referenceSignature(testSecret, chargeBody), v.Sign(chargeBody))
	assert.Len(t, v.Sign(chargeBody), 128)
}

func TestValidator_Valid(t *testing.T) {
	v := NewValidator(testSecret)
	sig := referenceSignature(testSecret, chargeBody)

	assert.True(t, v.Valid(sig, chargeBody))
}

func TestValidator_RejectsBodyMutation(t *testing.T) {
	v := NewValidator(testSecret)
	sig := v.Sign(chargeBody)

	for i := range chargeBody {
		mutated := append([]byte(nil), chargeBody...)
		mutated[i] ^= 0x01
		assert.False(t, v.Valid(sig, mutated), "byte %d", i)
	}
}

func TestValidator_RejectsSecretMutation(t *testing.T) {
	sig := referenceSignature(testSecret, chargeBody)

	assert.False(t, NewValidator(testSecret+"x").Valid(sig, chargeBody))
	assert.False(t, NewValidator("rk_test_secret").Valid(sig, chargeBody))
}

func TestValidator_RejectsReformattedJSON(t *testing.T) {
	v := NewValidator(testSecret)
	sig := v.Sign(chargeBody)

	// Same event, different whitespace and key order.
	reformatted := []byte(`{
  "data": {"reference": "ref-1-1", "id": 1, "status": "success", "channel": "card", "amount": 500000, "fees": 17500,
    "authorization": {"last4": "4081", "card_type": "visa"}},
  "event": "charge.success"
}`)

	a, err := Parse(chargeBody)
	require.NoError(t, err)
	b, err := Parse(reformatted)
	require.NoError(t, err)
	require.Equal(t, a, b)

	assert.False(t, v.Valid(sig, reformatted))
}

func TestValidator_RejectsMalformedSignature(t *testing.T) {
	v := NewValidator(testSecret)
	sig := v.Sign(chargeBody)

	assert.False(t, v.Valid("", chargeBody))
	assert.False(t, v.Valid("not-hex", chargeBody))
	assert.False(t, v.Valid(sig[:64], chargeBody))
	assert.False(t, NewValidator("").Valid(referenceSignature("", chargeBody), chargeBody))
}

func TestValidator_AcceptsUppercaseHex(t *testing.T) {
	v := NewValidator(testSecret)
	sig := v.Sign(chargeBody)

	upper := []byte(sig)
	for i, c := range upper {
		if c >= 'a' && c <= 'f' {
			upper[i] = c - 32
		}
	}
	assert.True(t, v.Valid(string(upper), chargeBody))
}

func TestParse(t *testing.T) {
	ev, err := Parse(chargeBody)
	require.NoError(t, err)

	assert.Equal(t, EventChargeSuccess, ev.Event)
	assert.Equal(t, "ref-1-1", ev.Data.Reference)
	assert.Equal(t, "card", ev.Data.Channel)
	assert.Equal(t, int64(17500), ev.Data.Fees)
	require.NotNil(t, ev.Data.Authorization)
	assert.Equal(t, "visa", ev.Data.Authorization.CardType)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte(`{not json`))
	var ve *domainErrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "body", ve.Field)

	_, err = Parse([]byte(`{"data":{}}`))
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "event", ve.Field)
}
