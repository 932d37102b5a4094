package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/heylo/heylo/internal/model"
	"github.com/heylo/heylo/internal/repository"
)

// AccountService manages the persistent account behind each principal.
type AccountService struct {
	accounts AccountStore
	logger   *slog.Logger
}

// NewAccountService creates a new AccountService.
func NewAccountService(accounts AccountStore, logger *slog.Logger) *AccountService {
	return &AccountService{
		accounts: accounts,
		logger:   logger.With("component", "account_service"),
	}
}

// Ensure returns the principal's account, creating it from identity claims
// on first use.
func (s *AccountService) Ensure(ctx context.Context, p *model.Principal) (*model.Account, error) {
	if p == nil || p.UID == "" {
		return nil, errUnauthenticated
	}

	account, err := s.accounts.GetAccountByUID(ctx, p.UID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	now := time.Now().UTC()
	account = model.NewAccountFromPrincipal(generateULID(), p)
	account.CreatedAt = now
	account.UpdatedAt = now

	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, repository.ErrAccountExists) {
			// Lost a race with a concurrent first request.
			return s.accounts.GetAccountByUID(ctx, p.UID)
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Info("account created", "uid", p.UID)
	return account, nil
}

// Get returns the principal's account, or nil if none exists yet.
func (s *AccountService) Get(ctx context.Context, p *model.Principal) (*model.Account, error) {
	if p == nil || p.UID == "" {
		return nil, errUnauthenticated
	}

	account, err := s.accounts.GetAccountByUID(ctx, p.UID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// UpdateProfile changes display fields on the account identified by uid,
// which must belong to the principal.
func (s *AccountService) UpdateProfile(ctx context.Context, p *model.Principal, uid string, input UpdateAccountInput) (*model.Account, error) {
	if p == nil || p.UID == "" {
		return nil, errUnauthenticated
	}
	if uid != p.UID {
		return nil, errNotOwner
	}

	if input.DisplayName != nil {
		trimmed := strings.TrimSpace(*input.DisplayName)
		input.DisplayName = &trimmed
	}
	if input.PhotoURL != nil {
		trimmed := strings.TrimSpace(*input.PhotoURL)
		input.PhotoURL = &trimmed
	}
	if err := validate(input); err != nil {
		return nil, err
	}

	account, err := s.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, errNotFound
	}

	if input.DisplayName != nil {
		account.DisplayName = *input.DisplayName
	}
	if input.PhotoURL != nil {
		account.PhotoURL = *input.PhotoURL
	}

	if err := s.accounts.UpdateAccountProfile(ctx, account); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, errNotFound
		}
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	return account, nil
}
