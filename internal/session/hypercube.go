package session

import (
	"encoding/json"
	"fmt"
	"math"
)

// Field titles the decoders look up. Object definitions must label their
// measures with these names.
const (
	TitleRevenue       = "Revenue"
	TitleMargin        = "Margin"
	TitleDiscount      = "Discount"
	TitleLogisticsCost = "LogisticsCost"
	TitleSales         = "Sales"
	TitleProfit        = "Profit"
	TitleSubCategory   = "sub_category"
	TitleCustomer      = "customer_name"
)

// Layout is the part of an object layout the decoders read.
type Layout struct {
	HyperCube *HyperCube `json:"qHyperCube,omitempty"`
}

// HyperCube is an evaluated hypercube. Columns are the dimensions followed
// by the measures, in definition order.
type HyperCube struct {
	DimensionInfo []FieldInfo `json:"qDimensionInfo"`
	MeasureInfo   []FieldInfo `json:"qMeasureInfo"`
	DataPages     []DataPage  `json:"qDataPages"`
}

// FieldInfo describes one column.
type FieldInfo struct {
	FallbackTitle string `json:"qFallbackTitle"`
}

// DataPage is one page of rows.
type DataPage struct {
	Matrix [][]Cell `json:"qMatrix"`
}

// Cell is one value. Num is NaN for cells without a numeric value.
type Cell struct {
	Text string `json:"qText"`
	Num  Num    `json:"qNum"`
}

// Num is a cell number. The engine encodes missing numbers as the string "NaN".
type Num float64

func (n *Num) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*n = Num(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("qNum: %w", err)
	}
	*n = Num(math.NaN())
	return nil
}

// KPIRow is the totals row of the KPI object.
type KPIRow struct {
	Revenue       float64
	Margin        float64
	Discount      float64
	LogisticsCost float64
}

// CategoryBreakdown is one sub-category in the profit breakdown.
type CategoryBreakdown struct {
	Category string
	Profit   float64
	Sales    float64
}

// ScatterPoint is one customer in the profitability scatter.
type ScatterPoint struct {
	Name   string
	Sales  float64
	Profit float64
}

type columns map[string]int

func columnsOf(l *Layout) (columns, [][]Cell, error) {
	if l == nil || l.HyperCube == nil {
		return nil, nil, fmt.Errorf("layout has no hypercube")
	}
	cols := make(columns)
	i := 0
	for _, f := range l.HyperCube.DimensionInfo {
		cols[f.FallbackTitle] = i
		i++
	}
	for _, f := range l.HyperCube.MeasureInfo {
		cols[f.FallbackTitle] = i
		i++
	}

	var rows [][]Cell
	for _, p := range l.HyperCube.DataPages {
		rows = append(rows, p.Matrix...)
	}
	return cols, rows, nil
}

func (c columns) index(titles ...string) ([]int, error) {
	out := make([]int, len(titles))
	for i, t := range titles {
		idx, ok := c[t]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrFieldNotFound, t)
		}
		out[i] = idx
	}
	return out, nil
}

func cellAt(row []Cell, idx int) (Cell, error) {
	if idx >= len(row) {
		return Cell{}, fmt.Errorf("row has %d cells, need column %d", len(row), idx)
	}
	return row[idx], nil
}

// DecodeKPIs reads the first row of a KPI layout.
func DecodeKPIs(l *Layout) (*KPIRow, error) {
	cols, rows, err := columnsOf(l)
	if err != nil {
		return nil, err
	}
	idx, err := cols.index(TitleRevenue, TitleMargin, TitleDiscount, TitleLogisticsCost)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("kpi layout has no rows")
	}

	cells, err := pick(rows[0], idx)
	if err != nil {
		return nil, err
	}
	return &KPIRow{
		Revenue:       float64(cells[0].Num),
		Margin:        float64(cells[1].Num),
		Discount:      float64(cells[2].Num),
		LogisticsCost: float64(cells[3].Num),
	}, nil
}

// DecodeCategoryBreakdown reads one CategoryBreakdown per row.
func DecodeCategoryBreakdown(l *Layout) ([]CategoryBreakdown, error) {
	cols, rows, err := columnsOf(l)
	if err != nil {
		return nil, err
	}
	idx, err := cols.index(TitleSubCategory, TitleProfit, TitleSales)
	if err != nil {
		return nil, err
	}

	out := make([]CategoryBreakdown, 0, len(rows))
	for _, row := range rows {
		cells, err := pick(row, idx)
		if err != nil {
			return nil, err
		}
		out = append(out, CategoryBreakdown{
			Category: cells[0].Text,
			Profit:   float64(cells[1].Num),
			Sales:    float64(cells[2].Num),
		})
	}
	return out, nil
}

// DecodeScatter reads one ScatterPoint per row.
func DecodeScatter(l *Layout) ([]ScatterPoint, error) {
	cols, rows, err := columnsOf(l)
	if err != nil {
		return nil, err
	}
	idx, err := cols.index(TitleCustomer, TitleSales, TitleProfit)
	if err != nil {
		return nil, err
	}

	out := make([]ScatterPoint, 0, len(rows))
	for _, row := range rows {
		cells, err := pick(row, idx)
		if err != nil {
			return nil, err
		}
		out = append(out, ScatterPoint{
			Name:   cells[0].Text,
			Sales:  float64(cells[1].Num),
			Profit: float64(cells[2].Num),
		})
	}
	return out, nil
}

func pick(row []Cell, idx []int) ([]Cell, error) {
	out := make([]Cell, len(idx))
	for i, c := range idx {
		cell, err := cellAt(row, c)
		if err != nil {
			return nil, err
		}
		out[i] = cell
	}
	return out, nil
}
