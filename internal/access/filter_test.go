package access_test

import (
	"context"
	"testing"

	"github.com/vulnops/vulnmgt-backend/internal/access"
	"github.com/vulnops/vulnmgt-backend/internal/storage/memstore"
	"github.com/vulnops/vulnmgt-backend/model"
)

func seedDirectory(t *testing.T) *memstore.Store {
	t.Helper()
	store := memstore.New()

	store.PutUser(model.User{Username: "alice", Role: model.RoleUser, IsActive: true,
		Workgroups: []string{"Database Servers"}, CloudAccounts: []string{"aws-prod-001"}})
	store.PutUser(model.User{Username: "bob", Role: model.RoleUser, IsActive: true,
		Domains: []string{"corp.example.com"}})
	store.PutUser(model.User{Username: "mallory", Role: model.RoleUser, IsActive: false,
		Workgroups: []string{"Database Servers"}})

	store.PutAsset(model.Asset{Key: "db-1", Name: "DBServer01", Owner: "carol",
		Workgroups: []string{"Database Servers"}})
	store.PutAsset(model.Asset{Key: "web-1", Name: "WebServer01", Owner: "alice",
		CloudAccountID: "aws-prod-001"})
	store.PutAsset(model.Asset{Key: "ad-1", Name: "DC01", Owner: "carol",
		Domain: "corp.example.com", UploadedBy: "bob"})
	store.PutAsset(model.Asset{Key: "iso-1", Name: "Isolated01", Owner: "carol"})

	return store
}

func TestAdminSeesEverything(t *testing.T) {
	filter := access.NewFilter(seedDirectory(t), nil)

	scope, err := filter.AccessibleAssets(context.Background(), model.Caller{Username: "root", Role: model.RoleAdmin})
	if err != nil {
		t.Fatal(err)
	}
	if !scope.IsUnrestricted() {
		t.Error("admin scope should be unrestricted")
	}
	if !scope.Allows("iso-1") {
		t.Error("unrestricted scope should allow any asset")
	}
}

func TestScopeIsUnionOfVectors(t *testing.T) {
	filter := access.NewFilter(seedDirectory(t), nil)

	// alice reaches db-1 via workgroup and web-1 twice: as owner and via the
	// cloud account. The union de-duplicates.
	scope, err := filter.AccessibleAssets(context.Background(), model.Caller{Username: "alice", Role: model.RoleUser})
	if err != nil {
		t.Fatal(err)
	}
	if scope.IsUnrestricted() {
		t.Fatal("non-admin scope should be restricted")
	}
	if got, want := scope.Len(), 2; got != want {
		t.Fatalf("scope has %d assets %v, want %d", got, scope.IDs(), want)
	}
	for _, id := range []string{"db-1", "web-1"} {
		if !scope.Allows(id) {
			t.Errorf("alice should reach %s", id)
		}
	}
	if scope.Allows("iso-1") {
		t.Error("alice should not reach an unrelated asset")
	}
}

func TestUploaderAndDomainVectors(t *testing.T) {
	filter := access.NewFilter(seedDirectory(t), nil)

	scope, err := filter.AccessibleAssets(context.Background(), model.Caller{Username: "bob", Role: model.RoleUser})
	if err != nil {
		t.Fatal(err)
	}
	if !scope.Allows("ad-1") {
		t.Error("bob should reach ad-1 via domain and uploader vectors")
	}
	if got := scope.Len(); got != 1 {
		t.Errorf("scope has %d assets, want 1", got)
	}
}

func TestUnknownCallerSeesNothing(t *testing.T) {
	filter := access.NewFilter(seedDirectory(t), nil)

	scope, err := filter.AccessibleAssets(context.Background(), model.Caller{Username: "ghost", Role: model.RoleUser})
	if err != nil {
		t.Fatalf("unknown caller should not error, got %v", err)
	}
	if scope.IsUnrestricted() || scope.Len() != 0 {
		t.Error("unknown caller should get an empty scope")
	}
}

func TestInactiveUserSeesNothing(t *testing.T) {
	filter := access.NewFilter(seedDirectory(t), nil)

	scope, err := filter.AccessibleAssets(context.Background(), model.Caller{Username: "mallory", Role: model.RoleUser})
	if err != nil {
		t.Fatal(err)
	}
	if scope.Len() != 0 {
		t.Error("inactive user should get an empty scope despite workgroup membership")
	}
}
