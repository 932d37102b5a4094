package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/heylo/heylo/internal/model"
)

// Common errors for account repository operations.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
)

const accountColumns = `id, uid, email, display_name, photo_url, email_verified, page_name, created_at, updated_at`

// CreateAccount inserts a new account.
func (r *Repository) CreateAccount(ctx context.Context, account *model.Account) error {
	query := `
		INSERT INTO accounts (id, uid, email, display_name, photo_url, email_verified, page_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		account.ID,
		account.UID,
		account.Email,
		account.DisplayName,
		account.PhotoURL,
		account.EmailVerified,
		nullableString(account.PageName),
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return ErrAccountExists
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetAccountByUID retrieves an account by identity provider uid.
func (r *Repository) GetAccountByUID(ctx context.Context, uid string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE uid = $1`

	account, err := scanAccount(r.pool.QueryRow(ctx, query, uid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

// UpdateAccountProfile overwrites the profile fields copied from identity claims.
// The page name is never touched here.
func (r *Repository) UpdateAccountProfile(ctx context.Context, account *model.Account) error {
	query := `
		UPDATE accounts
		SET email = $2, display_name = $3, photo_url = $4, email_verified = $5, updated_at = NOW()
		WHERE uid = $1
		RETURNING updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		account.UID,
		account.Email,
		account.DisplayName,
		account.PhotoURL,
		account.EmailVerified,
	).Scan(&account.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("failed to update account: %w", err)
	}

	return nil
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var account model.Account
	var pageName *string

	err := row.Scan(
		&account.ID,
		&account.UID,
		&account.Email,
		&account.DisplayName,
		&account.PhotoURL,
		&account.EmailVerified,
		&pageName,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	account.PageName = derefString(pageName)
	return &account, nil
}
