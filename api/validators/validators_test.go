package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/harvest-fulfillment/pkg/errors"
)

type fixPayload struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
	Status    string   `json:"status" validate:"omitempty,oneof=assigned delivered"`
}

func decode(body string) (fixPayload, error) {
	var dest fixPayload
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	err := DecodeJSONBody(req, &dest)
	return dest, err
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	payload, err := decode(`{"latitude":0,"longitude":-122.4,"status":"assigned"}`)
	require.NoError(t, err)
	require.NotNil(t, payload.Latitude)
	assert.Zero(t, *payload.Latitude)
	assert.Equal(t, -122.4, *payload.Longitude)
}

func TestDecodeJSONBodyReportsFieldMessages(t *testing.T) {
	_, err := decode(`{"latitude":95,"status":"lost"}`)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be a latitude between -90 and 90", details["latitude"])
	assert.Equal(t, "is required", details["longitude"])
	assert.Equal(t, "must be one of [assigned delivered]", details["status"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	_, err := decode(`{"latitude":1,"longitude":1,"altitude":3}`)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyRejectsTrailingAndOversizedBodies(t *testing.T) {
	_, err := decode(`{"latitude":1,"longitude":1}{"latitude":2,"longitude":2}`)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, "body must hold a single JSON object", pkgerrors.As(err).Details().(map[string]any)["error"])

	_, err = decode(`{"latitude":1,"longitude":1,"status":"` + strings.Repeat("x", MaxBodyBytes) + `"}`)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, "request body too large", pkgerrors.As(err).Message())

	_, err = decode("")
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, "body is empty", pkgerrors.As(err).Details().(map[string]any)["error"])
}

func TestQueryReadsTypedValues(t *testing.T) {
	orderID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/?limit=10&unread=true&orderId="+orderID.String()+"&cursor=+abc+", nil)

	q := NewQuery(req)
	assert.Equal(t, 10, q.Int("limit", 25, 1, 100))
	assert.Equal(t, 25, q.Int("missing", 25, 1, 100))
	assert.True(t, q.Bool("unread"))
	require.NotNil(t, q.UUID("orderId"))
	assert.Nil(t, q.UUID("deliveryId"))
	assert.Equal(t, "abc", q.Text("cursor", 0))
	require.NoError(t, q.Err())
}

func TestQueryKeepsFirstFailure(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500&unread=maybe", nil)

	q := NewQuery(req)
	assert.Zero(t, q.Int("limit", 25, 1, 100))
	assert.False(t, q.Bool("unread"))

	err := q.Err()
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	details := pkgerrors.As(err).Details().(map[string]any)
	assert.Equal(t, "limit", details["field"])
	assert.Equal(t, 100, details["max"])
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Heirloom tomatoes", CleanText("  Heirloom \t\n tomatoes\x00 ", 0))
	assert.Equal(t, "Heirloom", CleanText("Heirloom tomatoes", 9), "no trailing space at the cut")
	assert.Equal(t, "jalapeño", CleanText("jalapeño peppers", 8), "cuts on rune boundaries")
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "Grower.Jo@farm.example", NormalizeEmail(" Grower.Jo@FARM.Example "))
	assert.Equal(t, "no-at-sign", NormalizeEmail("no-at-sign"))
}
