package events

import (
	"context"

	"github.com/dmitrijs2005/ticketkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, e *models.Event) (*models.Event, error)
	GetByID(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context) ([]*models.Event, error)
	ListByOrganizer(ctx context.Context, organizerID string) ([]*models.Event, error)
	Update(ctx context.Context, e *models.Event) error
	SetImageKey(ctx context.Context, id, key string) error
	Delete(ctx context.Context, id string) error
}
