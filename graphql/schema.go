// Package graphql assembles the root schema from the per-area query modules.
package graphql

import (
	gql "github.com/graphql-go/graphql"

	overduegql "github.com/vulnops/vulnmgt-backend/graphql/modules/overdue"
	"github.com/vulnops/vulnmgt-backend/internal/query"
)

// CreateSchema mounts every module's query fields under one root query.
func CreateSchema(facade *query.Facade) (gql.Schema, error) {
	fields := gql.Fields{}
	for name, field := range overduegql.GetQueryFields(facade) {
		fields[name] = field
	}

	rootQuery := gql.NewObject(gql.ObjectConfig{
		Name:   "Query",
		Fields: fields,
	})

	return gql.NewSchema(gql.SchemaConfig{Query: rootQuery})
}
