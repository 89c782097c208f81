package sales

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"supplydash/internal/config"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   OrderQuery
		want OrderQuery
	}{
		{
			name: "defaults",
			in:   OrderQuery{},
			want: OrderQuery{Page: 1, Limit: 50, SortBy: "order_date", SortOrder: "DESC"},
		},
		{
			name: "unknown sort column falls back",
			in:   OrderQuery{Page: 2, Limit: 10, SortBy: "sales; DROP TABLE orders", SortOrder: "asc"},
			want: OrderQuery{Page: 2, Limit: 10, SortBy: "order_date", SortOrder: "ASC"},
		},
		{
			name: "limit is capped",
			in:   OrderQuery{Limit: 10000, SortBy: "profit", SortOrder: "sideways"},
			want: OrderQuery{Page: 1, Limit: MaxLimit, SortBy: "profit", SortOrder: "DESC"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestBuildOrdersQuery(t *testing.T) {
	t.Run("no filters", func(t *testing.T) {
		count, page := BuildOrdersQuery(OrderQuery{}.Normalize())

		assert.Equal(t, "SELECT COUNT(*) FROM sales_summary", count.SQL)
		assert.Empty(t, count.Args)
		assert.Contains(t, page.SQL, "ORDER BY order_date DESC LIMIT $1 OFFSET $2")
		assert.Equal(t, []interface{}{50, 0}, page.Args)
	})

	t.Run("filters and search", func(t *testing.T) {
		q := OrderQuery{
			Filter: Filter{Region: "West", ShipMode: "First Class", StartDate: "2024-01-01"},
			Search: "chair",
			Page:   3,
			Limit:  20,
			SortBy: "sales",
		}.Normalize()
		count, page := BuildOrdersQuery(q)

		assert.Contains(t, count.SQL, "WHERE region = $1 AND ship_mode = $2 AND order_date >= $3 AND (customer_name ILIKE $4 OR product_name ILIKE $5 OR CAST(order_id AS TEXT) LIKE $6 OR region ILIKE $7 OR category ILIKE $8)")
		assert.Equal(t, []interface{}{"West", "First Class", "2024-01-01", "%chair%", "%chair%", "%chair%", "%chair%", "%chair%"}, count.Args)

		assert.Contains(t, page.SQL, "ORDER BY sales DESC LIMIT $9 OFFSET $10")
		assert.Len(t, page.Args, 10)
		assert.Equal(t, 20, page.Args[8])
		assert.Equal(t, 40, page.Args[9])
	})

	t.Run("user input never reaches the SQL text", func(t *testing.T) {
		evil := "'; DROP TABLE orders; --"
		count, page := BuildOrdersQuery(OrderQuery{
			Filter: Filter{Region: evil, Category: evil},
			Search: evil,
			SortBy: evil, SortOrder: evil,
		}.Normalize())
		assert.NotContains(t, count.SQL, "DROP")
		assert.NotContains(t, page.SQL, "DROP")
	})
}

func TestBuildKPIQuery(t *testing.T) {
	stmt := BuildKPIQuery(Filter{Category: "Furniture", EndDate: "2024-12-31"})
	assert.Contains(t, stmt.SQL, "WHERE category = $1 AND order_date <= $2")
	assert.Equal(t, []interface{}{"Furniture", "2024-12-31"}, stmt.Args)
}

func TestChartQueriesIgnoreUnrelatedFilters(t *testing.T) {
	f := Filter{Region: "East", Category: "Technology", ShipMode: "Same Day", StartDate: "2024-01-01"}

	trend := BuildSalesTrendQuery(f)
	assert.Equal(t, []interface{}{"East", "Technology", "Same Day"}, trend.Args, "trend ignores dates")
	assert.Contains(t, trend.SQL, "GROUP BY month ORDER BY month")

	modes := BuildShippingModesQuery(f)
	assert.Equal(t, []interface{}{"East", "Technology"}, modes.Args)

	cats, err := BuildGroupQuery("category", f)
	assert.NoError(t, err)
	assert.Equal(t, []interface{}{"East", "Same Day"}, cats.Args)
	assert.True(t, strings.HasPrefix(cats.SQL, "SELECT category,"))

	regions, err := BuildGroupQuery("region", f)
	assert.NoError(t, err)
	assert.Equal(t, []interface{}{"Technology", "Same Day"}, regions.Args)

	_, err = BuildGroupQuery("customer_name", f)
	assert.Error(t, err)
}

func TestProfitMargin(t *testing.T) {
	assert.Equal(t, 0.0, ProfitMargin(0, 100))
	assert.Equal(t, 25.0, ProfitMargin(400, 100))
	assert.Equal(t, 33.33, ProfitMargin(300, 100))
	assert.Equal(t, -12.5, ProfitMargin(800, -100))
}

func TestConnString(t *testing.T) {
	got := ConnString(config.DatabaseConfig{
		Host: "db", Port: 5432, User: "postgres", Password: "p@ss", Name: "supply_chain_db",
		SSLMode: "disable", ConnectTimeout: 2 * time.Second,
	})
	assert.Equal(t, "postgres://postgres:p%40ss@db:5432/supply_chain_db?connect_timeout=2&sslmode=disable", got)
}
