package client

import (
	"context"

	"github.com/dmitrijs2005/promptvault/internal/client/models"
)

// Client is the contract of the remote snapshot store.
//
// An empty path addresses common.PrimaryPath. Download reports a missing
// snapshot with ErrNotFound and unparsable content with ErrMalformedPayload;
// network and HTTP failures are ErrUnavailable or ErrUnauthorized.
type Client interface {
	Download(ctx context.Context, path string) ([]models.Record, error)
	Upload(ctx context.Context, path string, records []models.Record) error
	Delete(ctx context.Context, path string) error
	Ping(ctx context.Context) error
	SetAccessToken(token string)
}
