package exceptions

import (
	"context"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"

	"github.com/vulnops/vulnmgt-backend/database"
	apperrors "github.com/vulnops/vulnmgt-backend/internal/errors"
	"github.com/vulnops/vulnmgt-backend/model"
)

// ArangoStore implements Store on the exception_request and exception
// collections. Atomicity relies on ArangoDB executing each AQL statement as
// one transaction, so the duplicate guard, the CAS update, and the exception
// insert always travel together.
type ArangoStore struct {
	db database.DBConnection
}

// NewArangoStore wraps a database connection as a workflow Store.
func NewArangoStore(db database.DBConnection) *ArangoStore {
	return &ArangoStore{db: db}
}

// CreateRequest inserts a PENDING request unless an active request already
// occupies the (requester, target) slot. A slot is held by a PENDING request
// or by an APPROVED one whose exception has not lapsed yet.
func (s *ArangoStore) CreateRequest(ctx context.Context, req *model.ExceptionRequest) error {
	query := `
		LET dup = (
			FOR r IN exception_request
				FILTER r.requester == @requester AND r.target == @target
				FILTER r.status == "PENDING"
					OR (r.status == "APPROVED" AND DATE_TIMESTAMP(r.expires_at) > DATE_TIMESTAMP(@now))
				LIMIT 1
				RETURN 1
		)
		FILTER LENGTH(dup) == 0
		INSERT @doc INTO exception_request
		RETURN NEW._key
	`
	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{
			"requester": req.Requester,
			"target":    req.Target,
			"now":       req.CreatedAt,
			"doc":       req,
		},
	})
	if err != nil {
		return err
	}
	defer cursor.Close()

	if !cursor.HasMore() {
		return apperrors.Duplicatef("active request for target %s already exists", req.Target)
	}

	var key string
	if _, err := cursor.ReadDocument(ctx, &key); err != nil {
		return err
	}
	req.Key = key
	return nil
}

// CreateApproved inserts an APPROVED request and its exception in one AQL
// statement, so the auto-approval fast path is atomic.
func (s *ArangoStore) CreateApproved(ctx context.Context, req *model.ExceptionRequest, exc *model.Exception) error {
	query := `
		LET dup = (
			FOR r IN exception_request
				FILTER r.requester == @requester AND r.target == @target
				FILTER r.status == "PENDING"
					OR (r.status == "APPROVED" AND DATE_TIMESTAMP(r.expires_at) > DATE_TIMESTAMP(@now))
				LIMIT 1
				RETURN 1
		)
		LET inserted = (
			FILTER LENGTH(dup) == 0
			INSERT @req INTO exception_request
			RETURN NEW
		)
		FOR r IN inserted
			INSERT MERGE(@exc, { request_key: r._key }) INTO exception
			RETURN r._key
	`
	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{
			"requester": req.Requester,
			"target":    req.Target,
			"now":       req.CreatedAt,
			"req":       req,
			"exc":       exc,
		},
	})
	if err != nil {
		return err
	}
	defer cursor.Close()

	if !cursor.HasMore() {
		return apperrors.Duplicatef("active request for target %s already exists", req.Target)
	}

	var key string
	if _, err := cursor.ReadDocument(ctx, &key); err != nil {
		return err
	}
	req.Key = key
	exc.RequestKey = key
	return nil
}

// GetRequest returns nil, nil when the request does not exist.
func (s *ArangoStore) GetRequest(ctx context.Context, key string) (*model.ExceptionRequest, error) {
	query := `
		FOR r IN exception_request
			FILTER r._key == @key
			LIMIT 1
			RETURN r
	`
	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"key": key},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	if !cursor.HasMore() {
		return nil, nil
	}
	var req model.ExceptionRequest
	if _, err := cursor.ReadDocument(ctx, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// ListRequestsByRequester returns a requester's requests, newest first.
func (s *ArangoStore) ListRequestsByRequester(ctx context.Context, requester string, status model.RequestStatus) ([]model.ExceptionRequest, error) {
	query := `
		FOR r IN exception_request
			FILTER r.requester == @requester
			FILTER @status == "" OR r.status == @status
			SORT r.created_at DESC
			RETURN r
	`
	return s.listRequests(ctx, query, map[string]interface{}{
		"requester": requester,
		"status":    string(status),
	})
}

// ListPendingRequests returns all requests awaiting review, oldest first.
func (s *ArangoStore) ListPendingRequests(ctx context.Context) ([]model.ExceptionRequest, error) {
	query := `
		FOR r IN exception_request
			FILTER r.status == "PENDING"
			SORT r.created_at ASC
			RETURN r
	`
	return s.listRequests(ctx, query, map[string]interface{}{})
}

func (s *ArangoStore) listRequests(ctx context.Context, query string, bindVars map[string]interface{}) ([]model.ExceptionRequest, error) {
	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{BindVars: bindVars})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var out []model.ExceptionRequest
	for cursor.HasMore() {
		var req model.ExceptionRequest
		if _, err := cursor.ReadDocument(ctx, &req); err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

// ResolveRequestCAS applies one review resolution guarded by the version
// counter. The conditional update and the optional exception insert run in a
// single AQL statement; when zero rows match, a follow-up read classifies the
// failure (the classification is advisory, the write stays first-committer-wins).
func (s *ArangoStore) ResolveRequestCAS(ctx context.Context, key string, expectedVersion int64, res Resolution, exc *model.Exception) (*model.ExceptionRequest, error) {
	query := `
		LET updated = (
			FOR r IN exception_request
				FILTER r._key == @key AND r.status == "PENDING" AND r.version == @version
				UPDATE r WITH {
					status: @status,
					reviewer: @reviewer,
					review_comment: @comment,
					version: r.version + 1,
					updated_at: @at
				} IN exception_request
				RETURN NEW
		)
		FOR u IN updated
			RETURN u
	`
	if exc != nil {
		query = `
			LET updated = (
				FOR r IN exception_request
					FILTER r._key == @key AND r.status == "PENDING" AND r.version == @version
					UPDATE r WITH {
						status: @status,
						reviewer: @reviewer,
						review_comment: @comment,
						version: r.version + 1,
						updated_at: @at
					} IN exception_request
					RETURN NEW
			)
			FOR u IN updated
				INSERT MERGE(@exc, { request_key: u._key }) INTO exception
				RETURN u
		`
	}

	bindVars := map[string]interface{}{
		"key":      key,
		"version":  expectedVersion,
		"status":   string(res.Status),
		"reviewer": res.Reviewer,
		"comment":  res.Comment,
		"at":       res.At,
	}
	if exc != nil {
		bindVars["exc"] = exc
	}

	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{BindVars: bindVars})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	if cursor.HasMore() {
		var updated model.ExceptionRequest
		if _, err := cursor.ReadDocument(ctx, &updated); err != nil {
			return nil, err
		}
		return &updated, nil
	}

	current, err := s.GetRequest(ctx, key)
	if err != nil {
		return nil, err
	}
	switch {
	case current == nil:
		return nil, apperrors.NotFoundf("exception request %s", key)
	case current.Status != model.RequestPending:
		return nil, apperrors.Transitionf("request %s is %s", key, current.Status)
	default:
		return nil, apperrors.Conflictf("request %s is at version %d, caller presented %d", key, current.Version, expectedVersion)
	}
}

// MarkExpired flips lapsed APPROVED requests to EXPIRED.
func (s *ArangoStore) MarkExpired(ctx context.Context, now time.Time) (int, error) {
	query := `
		FOR r IN exception_request
			FILTER r.status == "APPROVED" AND DATE_TIMESTAMP(r.expires_at) <= DATE_TIMESTAMP(@now)
			UPDATE r WITH { status: "EXPIRED", version: r.version + 1, updated_at: @now } IN exception_request
			COLLECT WITH COUNT INTO flipped
			RETURN flipped
	`
	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"now": now},
	})
	if err != nil {
		return 0, err
	}
	defer cursor.Close()

	count := 0
	if cursor.HasMore() {
		if _, err := cursor.ReadDocument(ctx, &count); err != nil {
			return 0, err
		}
	}
	return count, nil
}

// ActiveExceptions returns all exceptions whose expiration is after now.
func (s *ArangoStore) ActiveExceptions(ctx context.Context, now time.Time) ([]model.Exception, error) {
	query := `
		FOR e IN exception
			FILTER DATE_TIMESTAMP(e.expires_at) > DATE_TIMESTAMP(@now)
			RETURN e
	`
	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"now": now},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var out []model.Exception
	for cursor.HasMore() {
		var exc model.Exception
		if _, err := cursor.ReadDocument(ctx, &exc); err != nil {
			return nil, err
		}
		out = append(out, exc)
	}
	return out, nil
}
