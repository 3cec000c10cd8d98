package entities

import "time"

// ResultStatus is a stage of the result pipeline
type ResultStatus string

const (
	ResultStatusPending         ResultStatus = "pending"
	ResultStatusEncoding        ResultStatus = "encoding"
	ResultStatusForVerification ResultStatus = "for_verification"
	ResultStatusApproved        ResultStatus = "approved"
	ResultStatusReleased        ResultStatus = "released"
)

// ResultStages lists the pipeline stages in their only legal order.
var ResultStages = []ResultStatus{
	ResultStatusPending,
	ResultStatusEncoding,
	ResultStatusForVerification,
	ResultStatusApproved,
	ResultStatusReleased,
}

// IsValid reports whether s is one of the pipeline stages.
func (s ResultStatus) IsValid() bool {
	return s.index() >= 0
}

// IsTerminal reports whether no further transition exists from s.
func (s ResultStatus) IsTerminal() bool {
	return s == ResultStatusReleased
}

func (s ResultStatus) index() int {
	for i, stage := range ResultStages {
		if stage == s {
			return i
		}
	}
	return -1
}

// NextStatus returns the stage following s. ok is false when s is terminal or unknown.
func NextStatus(s ResultStatus) (next ResultStatus, ok bool) {
	i := s.index()
	if i < 0 || i == len(ResultStages)-1 {
		return "", false
	}
	return ResultStages[i+1], true
}

// TestResult represents one ordered test performed for a patient
type TestResult struct {
	ID             string       `json:"id" db:"id"`
	PatientID      string       `json:"patient_id,omitempty" db:"patient_id"`
	PatientName    string       `json:"patient_name" db:"patient_name"`
	Section        string       `json:"section" db:"section"`
	TestName       string       `json:"test_name" db:"test_name"`
	ResultValue    string       `json:"result_value" db:"result_value"`
	ReferenceRange string       `json:"reference_range" db:"reference_range"`
	Unit           string       `json:"unit" db:"unit"`
	Status         ResultStatus `json:"status" db:"status"`
	BillingEntryID string       `json:"billing_entry_id,omitempty" db:"billing_entry_id"`
	ParentTest     string       `json:"parent_test,omitempty" db:"parent_test"` // set for component tests
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
}

// IsComponent reports whether the result is billed under a parent test.
func (r *TestResult) IsComponent() bool {
	return r.ParentTest != ""
}

// ResultUpdate is a partial update of a test result. Nil fields are left unchanged.
type ResultUpdate struct {
	ResultValue    *string       `json:"result_value,omitempty"`
	ReferenceRange *string       `json:"reference_range,omitempty"`
	Unit           *string       `json:"unit,omitempty"`
	Status         *ResultStatus `json:"status,omitempty"`
}

// Flag is the abnormal-value classification of a result
type Flag string

const (
	FlagNormal Flag = "normal"
	FlagHigh   Flag = "high"
	FlagLow    Flag = "low"
)

// ResultView is a test result decorated with its read-side classification.
type ResultView struct {
	*TestResult
	Flag Flag `json:"flag"`
}
