// Package overdue defines the GraphQL types for overdue aggregate reporting.
package overdue

import (
	"github.com/graphql-go/graphql"
)

// SeverityDistributionType represents overdue counts bucketed by severity
var SeverityDistributionType = graphql.NewObject(graphql.ObjectConfig{
	Name: "OverdueSeverityDistribution",
	Fields: graphql.Fields{
		"critical": &graphql.Field{Type: graphql.Int},
		"high":     &graphql.Field{Type: graphql.Int},
		"medium":   &graphql.Field{Type: graphql.Int},
		"low":      &graphql.Field{Type: graphql.Int},
	},
})

// OverdueSummaryType represents the caller-wide overdue picture
var OverdueSummaryType = graphql.NewObject(graphql.ObjectConfig{
	Name: "OverdueSummary",
	Fields: graphql.Fields{
		"total_assets":  &graphql.Field{Type: graphql.Int},
		"total_overdue": &graphql.Field{Type: graphql.Int},
		"oldest_days":   &graphql.Field{Type: graphql.Int},
		"by_severity":   &graphql.Field{Type: SeverityDistributionType},
		"computed_at":   &graphql.Field{Type: graphql.String},
	},
})

// OverdueAssetType represents one row of the per-asset overdue table
var OverdueAssetType = graphql.NewObject(graphql.ObjectConfig{
	Name: "OverdueAsset",
	Fields: graphql.Fields{
		"asset_id":            &graphql.Field{Type: graphql.String},
		"asset_name":          &graphql.Field{Type: graphql.String},
		"critical_overdue":    &graphql.Field{Type: graphql.Int},
		"high_overdue":        &graphql.Field{Type: graphql.Int},
		"medium_overdue":      &graphql.Field{Type: graphql.Int},
		"low_overdue":         &graphql.Field{Type: graphql.Int},
		"total_findings":      &graphql.Field{Type: graphql.Int},
		"oldest_overdue_days": &graphql.Field{Type: graphql.Int},
		"highest_severity":    &graphql.Field{Type: graphql.String},
	},
})
