package shop

// StatusCounts tallies orders per lifecycle state.
func StatusCounts(orders []ServiceOrder) map[OrderStatus]int {
	counts := make(map[OrderStatus]int)
	for _, order := range orders {
		counts[order.Status]++
	}
	return counts
}

// OpenOrders returns the orders still in the active pipeline.
func OpenOrders(orders []ServiceOrder) []ServiceOrder {
	var open []ServiceOrder
	for _, order := range orders {
		if !order.Status.Closed() {
			open = append(open, order)
		}
	}
	return open
}

// RevenueCents sums the charged amount of delivered orders. Canceled and
// in-flight orders do not count as revenue.
func RevenueCents(orders []ServiceOrder) int64 {
	var total int64
	for _, order := range orders {
		if order.Status == StatusDelivered {
			total += order.TotalCents()
		}
	}
	return total
}

// CommissionTotalCents sums commissions, optionally for one technician.
// An empty technicianID sums everyone.
func CommissionTotalCents(commissions []Commission, technicianID string) int64 {
	var total int64
	for _, commission := range commissions {
		if technicianID != "" && commission.TechnicianID != technicianID {
			continue
		}
		total += commission.AmountCents
	}
	return total
}

// CashBalanceCents nets income against expenses.
func CashBalanceCents(entries []CashEntry) int64 {
	var balance int64
	for _, entry := range entries {
		switch entry.Kind {
		case EntryIncome:
			balance += entry.AmountCents
		case EntryExpense:
			balance -= entry.AmountCents
		}
	}
	return balance
}
