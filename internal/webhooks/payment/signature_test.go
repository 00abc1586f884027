package paymentwebhook

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate(t *testing.T) {
	body := []byte(`{"event_id":"evt_1"}`)
	valid := Sign(body, "whsec")

	tests := []struct {
		name   string
		body   []byte
		header string
		secret string
		reason string
	}{
		{name: "valid", body: body, header: valid, secret: "whsec"},
		{name: "uppercase hex", body: body, header: strings.ToUpper(valid), secret: "whsec"},
		{name: "tampered body", body: []byte(`{"event_id":"evt_2"}`), header: valid, secret: "whsec", reason: "signature mismatch"},
		{name: "wrong secret", body: body, header: valid, secret: "other", reason: "signature mismatch"},
		{name: "missing header", body: body, header: " ", secret: "whsec", reason: "signature header missing"},
		{name: "missing secret", body: body, header: valid, secret: "", reason: "signing secret not configured"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authenticate(tt.body, tt.header, tt.secret)
			if tt.reason == "" {
				require.NoError(t, err)
				return
			}
			var authErr *AuthenticationError
			require.True(t, errors.As(err, &authErr))
			assert.Equal(t, tt.reason, authErr.Reason)
		})
	}
}
