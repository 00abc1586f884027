package notifications

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/harvest-fulfillment/pkg/errors"
)

const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

// pageKey is the (created_at, id) position of the last row on a page.
type pageKey struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

func pageSize(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	default:
		return limit
	}
}

// token renders the key as an opaque URL-safe string.
func (k pageKey) token() string {
	raw := strconv.FormatInt(k.CreatedAt.UnixNano(), 36) + "." + k.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func parsePageToken(token string) (*pageKey, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	stamp, id, ok := strings.Cut(string(raw), ".")
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}
	nanos, err := strconv.ParseInt(stamp, 36, 64)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, fmt.Errorf("cursor time: %w", err), "invalid cursor")
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, fmt.Errorf("cursor id: %w", err), "invalid cursor")
	}
	return &pageKey{CreatedAt: time.Unix(0, nanos).UTC(), ID: parsed}, nil
}
