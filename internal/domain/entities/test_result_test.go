package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextStatus_WalksStagesInOrder(t *testing.T) {
	status := ResultStatusPending
	var walked []ResultStatus
	for {
		walked = append(walked, status)
		next, ok := NextStatus(status)
		if !ok {
			break
		}
		status = next
	}

	assert.Equal(t, ResultStages, walked)
	assert.True(t, status.IsTerminal())
}

func TestNextStatus_UnknownStatusHasNoSuccessor(t *testing.T) {
	_, ok := NextStatus(ResultStatus("completed"))
	assert.False(t, ok)
	assert.False(t, ResultStatus("completed").IsValid())
}

func TestSummarizeBilling(t *testing.T) {
	entries := []*BillingEntry{
		{Amount: 300, Status: BillingStatusPaid},
		{Amount: 150, Status: BillingStatusUnpaid},
		{Amount: 450, Status: BillingStatusUnpaid},
	}

	summary := SummarizeBilling(entries)

	assert.Equal(t, BillingSummary{PaidCount: 1, UnpaidCount: 2, TotalPaid: 300, TotalUnpaid: 600}, summary)
}

func TestPatientFullName(t *testing.T) {
	p := &Patient{FirstName: "Juan", LastName: "Dela Cruz"}
	assert.Equal(t, "Juan Dela Cruz", p.FullName())

	p.MiddleName = " Santos "
	assert.Equal(t, "Juan Santos Dela Cruz", p.FullName())
}
