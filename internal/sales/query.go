package sales

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

const (
	DefaultPage  = 1
	DefaultLimit = 50
	MaxLimit     = 500

	defaultSortColumn = "order_date"
)

// SortColumns are the columns /api/orders may be ordered by.
var SortColumns = []string{
	"order_id", "order_date", "ship_date", "customer_name", "product_name",
	"category", "region", "sales", "profit", "delivery_days",
}

const orderColumns = `order_id, order_date, ship_date, customer_name, product_name,
	category, region, ship_mode, quantity, sales, profit, delivery_days`

// where accumulates AND-ed conditions and their arguments.
type where struct {
	conds []string
	args  []interface{}
}

// eq adds "column = $n" when value is non-empty.
func (w *where) eq(column, value string) {
	w.cmp(column, "=", value)
}

func (w *where) cmp(column, op, value string) {
	if value == "" {
		return
	}
	w.args = append(w.args, value)
	w.conds = append(w.conds, fmt.Sprintf("%s %s $%d", column, op, len(w.args)))
}

// search adds one OR-group matching term against several columns. Every
// column gets its own placeholder.
func (w *where) search(term string) {
	if term == "" {
		return
	}
	pattern := "%" + term + "%"
	exprs := []string{
		"customer_name ILIKE $%d",
		"product_name ILIKE $%d",
		"CAST(order_id AS TEXT) LIKE $%d",
		"region ILIKE $%d",
		"category ILIKE $%d",
	}
	parts := make([]string, 0, len(exprs))
	for _, e := range exprs {
		w.args = append(w.args, pattern)
		parts = append(parts, fmt.Sprintf(e, len(w.args)))
	}
	w.conds = append(w.conds, "("+strings.Join(parts, " OR ")+")")
}

func (w *where) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.conds, " AND ")
}

func (w *where) next() int {
	return len(w.args) + 1
}

func filterWhere(f Filter, dates bool) *where {
	w := &where{}
	w.eq("region", f.Region)
	w.eq("category", f.Category)
	w.eq("ship_mode", f.ShipMode)
	if dates {
		w.cmp("order_date", ">=", f.StartDate)
		w.cmp("order_date", "<=", f.EndDate)
	}
	return w
}

// Normalize applies defaults and bounds to paging and sorting.
func (q OrderQuery) Normalize() OrderQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if !slices.Contains(SortColumns, q.SortBy) {
		q.SortBy = defaultSortColumn
	}
	if strings.EqualFold(q.SortOrder, "ASC") {
		q.SortOrder = "ASC"
	} else {
		q.SortOrder = "DESC"
	}
	return q
}

// Statement is SQL text with its positional arguments.
type Statement struct {
	SQL  string
	Args []interface{}
}

// BuildOrdersQuery returns the count and page statements for q, which must
// be normalized.
func BuildOrdersQuery(q OrderQuery) (count, page Statement) {
	w := filterWhere(q.Filter, true)
	w.search(q.Search)

	count = Statement{
		SQL:  strings.TrimSpace("SELECT COUNT(*) FROM sales_summary " + w.sql()),
		Args: w.args,
	}

	n := w.next()
	args := append(append([]interface{}(nil), w.args...), q.Limit, (q.Page-1)*q.Limit)
	page = Statement{
		SQL: fmt.Sprintf("SELECT %s FROM sales_summary %s ORDER BY %s %s LIMIT $%d OFFSET $%d",
			orderColumns, w.sql(), q.SortBy, q.SortOrder, n, n+1),
		Args: args,
	}
	return count, page
}

// BuildKPIQuery returns the aggregate statement for the KPI cards.
func BuildKPIQuery(f Filter) Statement {
	w := filterWhere(f, true)
	return Statement{
		SQL: `SELECT COUNT(DISTINCT order_id), COALESCE(SUM(sales), 0), COALESCE(SUM(profit), 0),
	COALESCE(AVG(delivery_days), 0), COALESCE(SUM(quantity), 0)
FROM sales_summary ` + w.sql(),
		Args: w.args,
	}
}

// BuildSalesTrendQuery groups sales by month.
func BuildSalesTrendQuery(f Filter) Statement {
	w := filterWhere(Filter{Region: f.Region, Category: f.Category, ShipMode: f.ShipMode}, false)
	return Statement{
		SQL: `SELECT TO_CHAR(order_date, 'YYYY-MM') AS month, SUM(sales), SUM(profit)
FROM sales_summary ` + w.sql() + `
GROUP BY month ORDER BY month`,
		Args: w.args,
	}
}

// BuildShippingModesQuery groups by ship mode; only region and category filter.
func BuildShippingModesQuery(f Filter) Statement {
	w := filterWhere(Filter{Region: f.Region, Category: f.Category}, false)
	return Statement{
		SQL: `SELECT ship_mode, COUNT(*), SUM(sales)
FROM sales_summary ` + w.sql() + `
GROUP BY ship_mode ORDER BY SUM(sales) DESC`,
		Args: w.args,
	}
}

// BuildGroupQuery groups by category or region. The grouped column never
// filters its own chart.
func BuildGroupQuery(column string, f Filter) (Statement, error) {
	var w *where
	switch column {
	case "category":
		w = filterWhere(Filter{Region: f.Region, ShipMode: f.ShipMode}, false)
	case "region":
		w = filterWhere(Filter{Category: f.Category, ShipMode: f.ShipMode}, false)
	default:
		return Statement{}, fmt.Errorf("cannot group by %q", column)
	}
	return Statement{
		SQL: fmt.Sprintf(`SELECT %[1]s, COUNT(*), SUM(sales), SUM(profit)
FROM sales_summary %[2]s
GROUP BY %[1]s ORDER BY SUM(sales) DESC`, column, w.sql()),
		Args: w.args,
	}, nil
}

// ProfitMargin is profit as a percentage of revenue rounded to two
// decimals, or 0 without revenue.
func ProfitMargin(revenue, profit float64) float64 {
	if revenue <= 0 {
		return 0
	}
	return math.Round(profit/revenue*100*100) / 100
}
