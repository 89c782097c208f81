// Package sales serves the dashboard's data API over the sales_summary view.
//
// All queries are parameterized with PostgreSQL $n placeholders. The only
// values interpolated into SQL text are the sort column and direction, and
// both come from fixed whitelists.
package sales
