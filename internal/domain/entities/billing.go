package entities

import "time"

// BillingStatus is the payment state of a billing entry
type BillingStatus string

const (
	BillingStatusUnpaid BillingStatus = "unpaid"
	BillingStatusPaid   BillingStatus = "paid"
)

// IsValid reports whether s is paid or unpaid.
func (s BillingStatus) IsValid() bool {
	return s == BillingStatusPaid || s == BillingStatusUnpaid
}

// BillingEntry is one charge for a (patient, test) pair. Amount never changes after creation.
type BillingEntry struct {
	ID          string        `json:"id" db:"id"`
	PatientID   string        `json:"patient_id,omitempty" db:"patient_id"`
	PatientName string        `json:"patient_name" db:"patient_name"`
	ResultID    string        `json:"result_id,omitempty" db:"result_id"`
	TestName    string        `json:"test_name" db:"test_name"`
	Section     string        `json:"section" db:"section"`
	Amount      float64       `json:"amount" db:"amount"`
	Status      BillingStatus `json:"status" db:"status"`
	Description string        `json:"description" db:"description"`
	ORNumber    string        `json:"or_number,omitempty" db:"or_number"`
	DatePaid    *time.Time    `json:"date_paid,omitempty" db:"date_paid"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
}

// Receipt is the official-receipt data recorded when an entry is marked paid.
type Receipt struct {
	ORNumber string     `json:"or_number"`
	DatePaid *time.Time `json:"date_paid,omitempty"`
}

// BillingSummary aggregates the ledger by payment status
type BillingSummary struct {
	PaidCount   int     `json:"paid_count"`
	UnpaidCount int     `json:"unpaid_count"`
	TotalPaid   float64 `json:"total_paid"`
	TotalUnpaid float64 `json:"total_unpaid"`
}

// SummarizeBilling sums entries by status.
func SummarizeBilling(entries []*BillingEntry) BillingSummary {
	var summary BillingSummary
	for _, entry := range entries {
		switch entry.Status {
		case BillingStatusPaid:
			summary.PaidCount++
			summary.TotalPaid += entry.Amount
		case BillingStatusUnpaid:
			summary.UnpaidCount++
			summary.TotalUnpaid += entry.Amount
		}
	}
	return summary
}
