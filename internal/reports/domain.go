// Package reports builds the dashboard aggregates served to the frontend.
package reports

import "time"

// DashboardSummary is the headline view of the pharmacy.
type DashboardSummary struct {
	MedicineCount    int     `json:"medicine_count"`
	StockValue       float64 `json:"stock_value"`
	LowStockCount    int     `json:"low_stock_count"`
	OutOfStockCount  int     `json:"out_of_stock_count"`
	ExpiringSoon     int     `json:"expiring_soon"`
	CustomerCount    int     `json:"customer_count"`
	InvoiceCount     int     `json:"invoice_count"`
	RevenueToday     float64 `json:"revenue_today"`
	RevenueThisMonth float64 `json:"revenue_this_month"`
}

// SalesPoint is one day of revenue in the sales series.
type SalesPoint struct {
	Day      time.Time `json:"day"`
	Invoices int       `json:"invoices"`
	Revenue  float64   `json:"revenue"`
}
