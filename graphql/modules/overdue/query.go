// Package overdue defines the GraphQL queries for overdue aggregate reporting.
package overdue

import (
	"fmt"

	"github.com/graphql-go/graphql"

	"github.com/vulnops/vulnmgt-backend/internal/query"
	"github.com/vulnops/vulnmgt-backend/restapi/modules/auth"
)

// GetQueryFields returns the overdue queries to be mounted in the root schema
func GetQueryFields(facade *query.Facade) graphql.Fields {
	return graphql.Fields{
		"overdueSummary": &graphql.Field{
			Type: OverdueSummaryType,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				caller, ok := auth.CallerFromContext(p.Context)
				if !ok {
					return nil, fmt.Errorf("authentication required")
				}
				return ResolveSummary(p.Context, facade, caller)
			},
		},
		"topOverdueAssets": &graphql.Field{
			Type: graphql.NewList(OverdueAssetType),
			Args: graphql.FieldConfigArgument{
				"limit":       &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 10},
				"minSeverity": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				caller, ok := auth.CallerFromContext(p.Context)
				if !ok {
					return nil, fmt.Errorf("authentication required")
				}
				limit := p.Args["limit"].(int)
				minSeverity := p.Args["minSeverity"].(string)
				return ResolveTopAssets(p.Context, facade, caller, limit, minSeverity)
			},
		},
	}
}
