package shop

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// ExportOrdersCSV writes orders as CSV with a header row. Amounts are
// rendered as decimal currency units, timestamps as RFC 3339.
func ExportOrdersCSV(w io.Writer, orders []ServiceOrder) error {
	writer := csv.NewWriter(w)
	header := []string{"number", "status", "customer_id", "technician_id", "device", "reported_issue", "labor", "parts", "total", "created_at"}
	if err := writer.Write(header); err != nil {
		return errors.Wrap(err, "[ExportOrdersCSV]")
	}
	for _, order := range orders {
		record := []string{
			strconv.Itoa(order.Number),
			string(order.Status),
			order.CustomerID,
			order.TechnicianID,
			order.Device,
			order.ReportedIssue,
			formatCents(order.LaborCents),
			formatCents(order.PartsCents),
			formatCents(order.TotalCents()),
			formatTime(order.CreatedAt),
		}
		if err := writer.Write(record); err != nil {
			return errors.Wrap(err, "[ExportOrdersCSV]")
		}
	}
	writer.Flush()
	return errors.Wrap(writer.Error(), "[ExportOrdersCSV]")
}

// ExportCashEntriesCSV writes cash register entries as CSV, expenses with a
// negative signed amount, followed by a closing balance row.
func ExportCashEntriesCSV(w io.Writer, entries []CashEntry) error {
	writer := csv.NewWriter(w)
	header := []string{"occurred_at", "kind", "description", "amount", "order_id"}
	if err := writer.Write(header); err != nil {
		return errors.Wrap(err, "[ExportCashEntriesCSV]")
	}
	for _, entry := range entries {
		amount := entry.AmountCents
		if entry.Kind == EntryExpense {
			amount = -amount
		}
		record := []string{
			formatTime(entry.OccurredAt),
			string(entry.Kind),
			entry.Description,
			formatCents(amount),
			entry.OrderID,
		}
		if err := writer.Write(record); err != nil {
			return errors.Wrap(err, "[ExportCashEntriesCSV]")
		}
	}
	balance := []string{"", "", "balance", formatCents(CashBalanceCents(entries)), ""}
	if err := writer.Write(balance); err != nil {
		return errors.Wrap(err, "[ExportCashEntriesCSV]")
	}
	writer.Flush()
	return errors.Wrap(writer.Error(), "[ExportCashEntriesCSV]")
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
