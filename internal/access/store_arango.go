package access

import (
	"context"

	"github.com/arangodb/go-driver/v2/arangodb"

	"github.com/vulnops/vulnmgt-backend/database"
	"github.com/vulnops/vulnmgt-backend/model"
)

// ArangoDirectory implements DirectoryStore against the user and asset
// collections.
type ArangoDirectory struct {
	db database.DBConnection
}

// NewArangoDirectory wraps a database connection as a DirectoryStore.
func NewArangoDirectory(db database.DBConnection) *ArangoDirectory {
	return &ArangoDirectory{db: db}
}

// UserByUsername returns the user document, or nil when absent.
func (d *ArangoDirectory) UserByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `
		FOR u IN user
			FILTER u.username == @username
			LIMIT 1
			RETURN u
	`
	cursor, err := d.db.Database.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"username": username},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	if !cursor.HasMore() {
		return nil, nil
	}

	var user model.User
	if _, err := cursor.ReadDocument(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *ArangoDirectory) assetIDs(ctx context.Context, query string, bindVars map[string]interface{}) ([]string, error) {
	cursor, err := d.db.Database.Query(ctx, query, &arangodb.QueryOptions{BindVars: bindVars})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var ids []string
	for cursor.HasMore() {
		var id string
		if _, err := cursor.ReadDocument(ctx, &id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// AssetIDsByWorkgroups returns assets belonging to any of the workgroups.
func (d *ArangoDirectory) AssetIDsByWorkgroups(ctx context.Context, workgroups []string) ([]string, error) {
	query := `
		FOR a IN asset
			FILTER LENGTH(INTERSECTION(a.workgroups, @workgroups)) > 0
			RETURN a._key
	`
	return d.assetIDs(ctx, query, map[string]interface{}{"workgroups": workgroups})
}

// AssetIDsByOwner returns assets the user created directly.
func (d *ArangoDirectory) AssetIDsByOwner(ctx context.Context, username string) ([]string, error) {
	query := `
		FOR a IN asset
			FILTER a.owner == @username
			RETURN a._key
	`
	return d.assetIDs(ctx, query, map[string]interface{}{"username": username})
}

// AssetIDsByUploader returns assets discovered via a scan the user uploaded.
func (d *ArangoDirectory) AssetIDsByUploader(ctx context.Context, username string) ([]string, error) {
	query := `
		FOR a IN asset
			FILTER a.uploaded_by == @username
			RETURN a._key
	`
	return d.assetIDs(ctx, query, map[string]interface{}{"username": username})
}

// AssetIDsByCloudAccounts returns assets whose cloud account id is mapped to the user.
func (d *ArangoDirectory) AssetIDsByCloudAccounts(ctx context.Context, accounts []string) ([]string, error) {
	query := `
		FOR a IN asset
			FILTER a.cloud_account_id IN @accounts
			RETURN a._key
	`
	return d.assetIDs(ctx, query, map[string]interface{}{"accounts": accounts})
}

// AssetIDsByDomains returns assets whose domain is mapped to the user.
func (d *ArangoDirectory) AssetIDsByDomains(ctx context.Context, domains []string) ([]string, error) {
	query := `
		FOR a IN asset
			FILTER a.domain IN @domains
			RETURN a._key
	`
	return d.assetIDs(ctx, query, map[string]interface{}{"domains": domains})
}
