package validators

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/harvest-fulfillment/pkg/errors"
)

// Query reads typed URL query parameters. The first malformed value is kept
// and reported by Err; later reads return zero values.
type Query struct {
	values url.Values
	err    error
}

func NewQuery(r *http.Request) *Query {
	return &Query{values: r.URL.Query()}
}

func (q *Query) raw(key string) string {
	if q.err != nil {
		return ""
	}
	return strings.TrimSpace(q.values.Get(key))
}

func (q *Query) fail(key, msg string, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	details["field"] = key
	q.err = pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(details)
}

// Int returns def when key is absent and rejects values outside [min, max].
func (q *Query) Int(key string, def, min, max int) int {
	raw := q.raw(key)
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		q.fail(key, "query parameter must be numeric", nil)
		return 0
	}
	if value < min || value > max {
		q.fail(key, "query parameter out of range", map[string]any{"min": min, "max": max})
		return 0
	}
	return value
}

func (q *Query) Bool(key string) bool {
	raw := q.raw(key)
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		q.fail(key, "query parameter must be true or false", nil)
		return false
	}
	return value
}

// UUID returns nil when key is absent.
func (q *Query) UUID(key string) *uuid.UUID {
	raw := q.raw(key)
	if raw == "" {
		return nil
	}
	value, err := uuid.Parse(raw)
	if err != nil {
		q.fail(key, "query parameter must be a uuid", nil)
		return nil
	}
	return &value
}

// Text returns the cleaned value cut to maxRunes.
func (q *Query) Text(key string, maxRunes int) string {
	return CleanText(q.raw(key), maxRunes)
}

func (q *Query) Err() error {
	return q.err
}
