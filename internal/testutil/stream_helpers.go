package testutil

import (
	"context"

	"github.com/Belphemur/DualMux/internal/models"
)

// CollectRecords consumes a catalog stream and returns its records.
// This is a test helper and should not be used in production code.
func CollectRecords(ctx context.Context, stream <-chan models.StreamResult[models.CatalogRecord]) ([]models.CatalogRecord, error) {
	var records []models.CatalogRecord
	for {
		select {
		case result, ok := <-stream:
			if !ok {
				return records, nil
			}
			if result.Err != nil {
				return records, result.Err
			}
			records = append(records, result.Value)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
