package sales

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"

	_ "github.com/lib/pq"

	"supplydash/internal/config"
	"supplydash/pkg/logging"
)

// Store answers the dashboard queries.
type Store interface {
	Orders(ctx context.Context, q OrderQuery) (*OrderPage, error)
	KPIs(ctx context.Context, f Filter) (*KPIs, error)
	SalesTrend(ctx context.Context, f Filter) ([]TrendPoint, error)
	ShippingModes(ctx context.Context, f Filter) ([]ShippingModeStat, error)
	Categories(ctx context.Context, f Filter) ([]CategoryStat, error)
	Regions(ctx context.Context, f Filter) ([]RegionStat, error)
	FilterOptions(ctx context.Context) (*FilterOptions, error)
	Ping(ctx context.Context) error
}

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// ConnString builds a lib/pq URL from the database configuration.
func ConnString(cfg config.DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.Name,
	}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	} else {
		u.User = url.User(cfg.User)
	}
	q := url.Values{}
	q.Set("sslmode", cfg.SSLMode)
	if cfg.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds()+0.5)))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// NewPostgresStore opens the pool and checks the connection once.
func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres db: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres db: %w", err)
	}
	logging.Info("Sales", "Connected to PostgreSQL database %s on %s:%d", cfg.Name, cfg.Host, cfg.Port)
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an existing pool.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Orders(ctx context.Context, q OrderQuery) (*OrderPage, error) {
	q = q.Normalize()
	countStmt, pageStmt := BuildOrdersQuery(q)

	var total int64
	if err := s.db.QueryRowContext(ctx, countStmt.SQL, countStmt.Args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, pageStmt.SQL, pageStmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0, q.Limit)
	for rows.Next() {
		var o Order
		if err := rows.Scan(
			&o.OrderID, &o.OrderDate, &o.ShipDate, &o.CustomerName, &o.ProductName,
			&o.Category, &o.Region, &o.ShipMode, &o.Quantity, &o.Sales, &o.Profit, &o.DeliveryDays,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &OrderPage{
		Data: orders,
		Pagination: Pagination{
			Total:      total,
			Page:       q.Page,
			Limit:      q.Limit,
			TotalPages: (total + int64(q.Limit) - 1) / int64(q.Limit),
		},
	}, nil
}

func (s *PostgresStore) KPIs(ctx context.Context, f Filter) (*KPIs, error) {
	stmt := BuildKPIQuery(f)
	var k KPIs
	if err := s.db.QueryRowContext(ctx, stmt.SQL, stmt.Args...).Scan(
		&k.TotalOrders, &k.TotalRevenue, &k.TotalProfit, &k.AvgDeliveryDays, &k.TotalQuantity,
	); err != nil {
		return nil, fmt.Errorf("failed to calculate kpis: %w", err)
	}
	k.ProfitMargin = ProfitMargin(k.TotalRevenue, k.TotalProfit)
	return &k, nil
}

func (s *PostgresStore) SalesTrend(ctx context.Context, f Filter) ([]TrendPoint, error) {
	stmt := BuildSalesTrendQuery(f)
	rows, err := s.db.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales trend: %w", err)
	}
	defer rows.Close()

	points := []TrendPoint{}
	for rows.Next() {
		var p TrendPoint
		if err := rows.Scan(&p.Month, &p.TotalSales, &p.TotalProfit); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *PostgresStore) ShippingModes(ctx context.Context, f Filter) ([]ShippingModeStat, error) {
	stmt := BuildShippingModesQuery(f)
	rows, err := s.db.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query shipping modes: %w", err)
	}
	defer rows.Close()

	stats := []ShippingModeStat{}
	for rows.Next() {
		var st ShippingModeStat
		if err := rows.Scan(&st.ShipMode, &st.OrderCount, &st.TotalSales); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (s *PostgresStore) Categories(ctx context.Context, f Filter) ([]CategoryStat, error) {
	var out []CategoryStat
	err := s.groups(ctx, "category", f, func(name string, g GroupStat) {
		out = append(out, CategoryStat{Category: name, GroupStat: g})
	})
	if out == nil {
		out = []CategoryStat{}
	}
	return out, err
}

func (s *PostgresStore) Regions(ctx context.Context, f Filter) ([]RegionStat, error) {
	var out []RegionStat
	err := s.groups(ctx, "region", f, func(name string, g GroupStat) {
		out = append(out, RegionStat{Region: name, GroupStat: g})
	})
	if out == nil {
		out = []RegionStat{}
	}
	return out, err
}

func (s *PostgresStore) groups(ctx context.Context, column string, f Filter, emit func(string, GroupStat)) error {
	stmt, err := BuildGroupQuery(column, f)
	if err != nil {
		return err
	}
	rows, err := s.db.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return fmt.Errorf("failed to query %s breakdown: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var g GroupStat
		if err := rows.Scan(&name, &g.OrderCount, &g.TotalSales, &g.TotalProfit); err != nil {
			return err
		}
		emit(name, g)
	}
	return rows.Err()
}

// filterOptionQueries read the menus from the dimension tables rather than
// the view so that values without orders still appear.
var filterOptionQueries = [3]string{
	"SELECT DISTINCT region FROM customers ORDER BY region",
	"SELECT DISTINCT category FROM products ORDER BY category",
	"SELECT DISTINCT ship_mode FROM orders ORDER BY ship_mode",
}

func (s *PostgresStore) FilterOptions(ctx context.Context) (*FilterOptions, error) {
	var lists [3][]string
	for i, q := range filterOptionQueries {
		values, err := s.stringColumn(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch filter options: %w", err)
		}
		lists[i] = values
	}
	return &FilterOptions{Regions: lists[0], Categories: lists[1], ShipModes: lists[2]}, nil
}

func (s *PostgresStore) stringColumn(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if v.Valid {
			values = append(values, v.String)
		}
	}
	return values, rows.Err()
}
