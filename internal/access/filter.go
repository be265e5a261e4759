package access

import (
	"context"

	"go.uber.org/zap"

	"github.com/vulnops/vulnmgt-backend/model"
)

// DirectoryStore resolves the access vectors attached to a username. The
// identity data itself (users, workgroups, mappings) is administered by the
// auth subsystem; this package only reads it.
type DirectoryStore interface {
	// UserByUsername returns nil, nil when the user does not exist.
	UserByUsername(ctx context.Context, username string) (*model.User, error)
	AssetIDsByWorkgroups(ctx context.Context, workgroups []string) ([]string, error)
	AssetIDsByOwner(ctx context.Context, username string) ([]string, error)
	AssetIDsByUploader(ctx context.Context, username string) ([]string, error)
	AssetIDsByCloudAccounts(ctx context.Context, accounts []string) ([]string, error)
	AssetIDsByDomains(ctx context.Context, domains []string) ([]string, error)
}

// Filter computes caller asset scope from the directory. Read-only.
type Filter struct {
	store DirectoryStore
	log   *zap.SugaredLogger
}

// NewFilter creates an access filter over the given directory store.
func NewFilter(store DirectoryStore, log *zap.SugaredLogger) *Filter {
	return &Filter{store: store, log: log}
}

// AccessibleAssets returns the caller's asset scope: unrestricted for
// administrators, otherwise the de-duplicated union of workgroup assets,
// owned assets, scan-uploaded assets, cloud-account assets, and domain
// assets. An unresolvable caller sees nothing rather than everything.
func (f *Filter) AccessibleAssets(ctx context.Context, caller model.Caller) (Scope, error) {
	if caller.IsAdmin() {
		return Unrestricted(), nil
	}

	user, err := f.store.UserByUsername(ctx, caller.Username)
	if err != nil {
		return Scope{}, err
	}
	if user == nil || !user.IsActive {
		if f.log != nil {
			f.log.Debugw("caller not resolvable, returning empty scope", "username", caller.Username)
		}
		return NewScope(), nil
	}

	scope := NewScope()

	if len(user.Workgroups) > 0 {
		ids, err := f.store.AssetIDsByWorkgroups(ctx, user.Workgroups)
		if err != nil {
			return Scope{}, err
		}
		scope.add(ids)
	}

	owned, err := f.store.AssetIDsByOwner(ctx, user.Username)
	if err != nil {
		return Scope{}, err
	}
	scope.add(owned)

	uploaded, err := f.store.AssetIDsByUploader(ctx, user.Username)
	if err != nil {
		return Scope{}, err
	}
	scope.add(uploaded)

	if len(user.CloudAccounts) > 0 {
		ids, err := f.store.AssetIDsByCloudAccounts(ctx, user.CloudAccounts)
		if err != nil {
			return Scope{}, err
		}
		scope.add(ids)
	}

	if len(user.Domains) > 0 {
		ids, err := f.store.AssetIDsByDomains(ctx, user.Domains)
		if err != nil {
			return Scope{}, err
		}
		scope.add(ids)
	}

	return scope, nil
}
