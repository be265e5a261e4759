package aggregate

import (
	"context"

	"github.com/arangodb/go-driver/v2/arangodb"

	"github.com/vulnops/vulnmgt-backend/database"
	"github.com/vulnops/vulnmgt-backend/model"
)

// ArangoSource implements FindingSource on the asset and finding collections.
type ArangoSource struct {
	db database.DBConnection
}

// NewArangoSource wraps a database connection as a rebuild input source.
func NewArangoSource(db database.DBConnection) *ArangoSource {
	return &ArangoSource{db: db}
}

// ListAssets returns the full asset inventory in ascending key order.
func (s *ArangoSource) ListAssets(ctx context.Context) ([]model.Asset, error) {
	query := `
		FOR a IN asset
			SORT a._key ASC
			RETURN a
	`
	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var out []model.Asset
	for cursor.HasMore() {
		var asset model.Asset
		if _, err := cursor.ReadDocument(ctx, &asset); err != nil {
			return nil, err
		}
		out = append(out, asset)
	}
	return out, nil
}

// ListFindingsByAsset returns all findings recorded against one asset.
func (s *ArangoSource) ListFindingsByAsset(ctx context.Context, assetID string) ([]model.Finding, error) {
	query := `
		FOR f IN finding
			FILTER f.asset_id == @assetID
			SORT f.detected_at ASC
			RETURN f
	`
	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"assetID": assetID},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var out []model.Finding
	for cursor.HasMore() {
		var finding model.Finding
		if _, err := cursor.ReadDocument(ctx, &finding); err != nil {
			return nil, err
		}
		out = append(out, finding)
	}
	return out, nil
}
