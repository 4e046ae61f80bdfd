// Package repository declares the storage interfaces the service depends on.
// Concrete implementations live in subpackages (sqlite).
package repository

import (
	"context"

	"github.com/sakif/execbox/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// ExecutionRepository stores and retrieves execution records.
type ExecutionRepository interface {
	Create(ctx context.Context, execution *model.Execution) error
	GetByID(ctx context.Context, id string) (*model.Execution, error)
	List(ctx context.Context, opts ListOptions) ([]model.Execution, error)
}
