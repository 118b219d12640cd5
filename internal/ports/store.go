package ports

import (
	"context"

	"github.com/devbush/submanager/internal/domain"
)

// ProtectedStore persists accounts acquired through discovery between runs.
type ProtectedStore interface {
	// Load returns every stored account. A missing store yields an empty list.
	Load(ctx context.Context) ([]domain.ProtectedAccount, error)

	// Save replaces the stored list atomically.
	Save(ctx context.Context, accounts []domain.ProtectedAccount) error
}
