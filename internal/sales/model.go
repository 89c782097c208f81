package sales

import "time"

// Order is one row of the sales_summary view.
type Order struct {
	OrderID      int64     `json:"order_id"`
	OrderDate    time.Time `json:"order_date"`
	ShipDate     time.Time `json:"ship_date"`
	CustomerName string    `json:"customer_name"`
	ProductName  string    `json:"product_name"`
	Category     string    `json:"category"`
	Region       string    `json:"region"`
	ShipMode     string    `json:"ship_mode"`
	Quantity     int64     `json:"quantity"`
	Sales        float64   `json:"sales"`
	Profit       float64   `json:"profit"`
	DeliveryDays int64     `json:"delivery_days"`
}

// Pagination describes the page returned by Orders.
type Pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int64 `json:"totalPages"`
}

// OrderPage is the /api/orders response body.
type OrderPage struct {
	Data       []Order    `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// KPIs are the headline figures for a filter selection.
type KPIs struct {
	TotalOrders     int64   `json:"total_orders"`
	TotalRevenue    float64 `json:"total_revenue"`
	TotalProfit     float64 `json:"total_profit"`
	AvgDeliveryDays float64 `json:"avg_delivery_days"`
	TotalQuantity   int64   `json:"total_quantity"`
	ProfitMargin    float64 `json:"profit_margin"`
}

// TrendPoint is one month of the sales trend chart.
type TrendPoint struct {
	Month       string  `json:"month"`
	TotalSales  float64 `json:"total_sales"`
	TotalProfit float64 `json:"total_profit"`
}

// ShippingModeStat is one bar of the shipping mode chart.
type ShippingModeStat struct {
	ShipMode   string  `json:"ship_mode"`
	OrderCount int64   `json:"order_count"`
	TotalSales float64 `json:"total_sales"`
}

// GroupStat is one bar of the category or region charts.
type GroupStat struct {
	OrderCount  int64   `json:"order_count"`
	TotalSales  float64 `json:"total_sales"`
	TotalProfit float64 `json:"total_profit"`
}

// CategoryStat is a GroupStat keyed by category.
type CategoryStat struct {
	Category string `json:"category"`
	GroupStat
}

// RegionStat is a GroupStat keyed by region.
type RegionStat struct {
	Region string `json:"region"`
	GroupStat
}

// FilterOptions lists the values the dashboard offers in its filter menus.
type FilterOptions struct {
	Regions    []string `json:"regions"`
	Categories []string `json:"categories"`
	ShipModes  []string `json:"ship_modes"`
}

// Filter narrows every query. Empty fields do not filter. Dates are passed
// through to PostgreSQL as YYYY-MM-DD strings.
type Filter struct {
	Region    string
	Category  string
	ShipMode  string
	StartDate string
	EndDate   string
}

// OrderQuery is the full /api/orders request.
type OrderQuery struct {
	Filter
	Search    string
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}
