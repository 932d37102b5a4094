// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/heylo/heylo/internal/model"
)

// PageStore persists pages and shortlinks.
type PageStore interface {
	CreatePage(ctx context.Context, page *model.Page) error
	GetPageByName(ctx context.Context, name string) (*model.Page, error)
	NameExists(ctx context.Context, name string) (bool, error)
	CreatePageForAccount(ctx context.Context, uid string, page *model.Page) error
	UpdatePage(ctx context.Context, page *model.Page) error
}

// AccountStore persists accounts.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccountByUID(ctx context.Context, uid string) (*model.Account, error)
	UpdateAccountProfile(ctx context.Context, account *model.Account) error
}

// AnalyticsStore persists hit counters.
type AnalyticsStore interface {
	IncrementHit(ctx context.Context, name string, at time.Time) (*model.AnalyticsRecord, error)
	IncrementLinkClick(ctx context.Context, name, linkName, linkURL string, at time.Time) (*model.AnalyticsRecord, error)
	ApplyClickEvent(ctx context.Context, event *model.ClickEvent) (bool, error)
	GetAnalytics(ctx context.Context, name string) (*model.AnalyticsRecord, error)
}

// PageCache is the read-through cache in front of PageStore.
type PageCache interface {
	GetPage(ctx context.Context, name string) (*model.Page, error)
	SetPage(ctx context.Context, page *model.Page) error
	DeletePage(ctx context.Context, name string) error
	IsNegativelyCached(ctx context.Context, name string) (bool, error)
	SetNegativeCache(ctx context.Context, name string) error
}

// ClickSink receives one call per resolution or link click. It may count
// synchronously or hand the event to a queue.
type ClickSink interface {
	Hit(ctx context.Context, name string) error
	LinkClick(ctx context.Context, name, linkURL, linkName string) error
}

// validate runs v.Validate and converts failures to ErrValidation.
func validate(v validation.Validatable) error {
	if err := v.Validate(); err != nil {
		var internal validation.InternalError
		if errors.As(err, &internal) {
			return err
		}
		return validationError(err)
	}
	return nil
}
