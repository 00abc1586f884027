package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvest-fulfillment/pkg/db/models"
	pkgerrors "github.com/angelmondragon/harvest-fulfillment/pkg/errors"
)

// Service reads and acknowledges the notifications in one inbox.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, inbox Inbox, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, inbox Inbox) (int64, error)
}

// ListParams selects a page of an inbox. OrderID narrows it to one order.
type ListParams struct {
	Inbox      Inbox
	OrderID    *uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult is one page plus the inbox-wide unread count.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
	Unread int64                 `json:"unread"`
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires notifications dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if err := params.Inbox.validate(); err != nil {
		return nil, err
	}
	after, err := parsePageToken(params.Cursor)
	if err != nil {
		return nil, err
	}

	filter := params.Inbox.filter()
	filter.OrderID = params.OrderID
	filter.UnreadOnly = params.UnreadOnly

	size := pageSize(params.Limit)
	rows, err := s.repo.List(ctx, filter, after, size+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	result := &ListResult{Items: rows}
	if len(rows) > size {
		result.Items = rows[:size]
		last := result.Items[size-1]
		result.Cursor = pageKey{CreatedAt: last.CreatedAt, ID: last.ID}.token()
	}

	unread, err := s.repo.CountUnread(ctx, params.Inbox.filter())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}
	result.Unread = unread
	return result, nil
}

// MarkRead is idempotent. Notifications addressed to another inbox are
// reported as not found.
func (s *service) MarkRead(ctx context.Context, inbox Inbox, notificationID uuid.UUID) error {
	if err := inbox.validate(); err != nil {
		return err
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	outcome, err := s.repo.MarkRead(ctx, inbox.filter(), notificationID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if outcome == readMissing {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, inbox Inbox) (int64, error) {
	if err := inbox.validate(); err != nil {
		return 0, err
	}
	count, err := s.repo.MarkAllRead(ctx, inbox.filter(), s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}
