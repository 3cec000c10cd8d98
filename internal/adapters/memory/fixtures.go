package memory

import (
	"time"

	"github.com/labtrack/lims/internal/domain/entities"
)

// Fixtures is a complete set of rows for every table
type Fixtures struct {
	Users     []*entities.User
	Patients  []*entities.Patient
	Results   []*entities.TestResult
	Billing   []*entities.BillingEntry
	AuditLogs []*entities.AuditLogEntry
}

// FixtureEpoch is the registration time of the first demo patient
var FixtureEpoch = time.Date(2024, time.January, 15, 8, 0, 0, 0, time.UTC)

// Load replaces the store contents with f. Rows are copied.
func (s *Store) Load(f Fixtures) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = make(map[string]*entities.User, len(f.Users))
	for _, u := range f.Users {
		s.users[u.ID] = cloneUser(u)
	}
	s.patients = make(map[string]*entities.Patient, len(f.Patients))
	for _, p := range f.Patients {
		s.patients[p.ID] = clonePatient(p)
	}
	s.results = make(map[string]*entities.TestResult, len(f.Results))
	for _, r := range f.Results {
		s.results[r.ID] = cloneResult(r)
	}
	s.billing = make(map[string]*entities.BillingEntry, len(f.Billing))
	for _, b := range f.Billing {
		s.billing[b.ID] = cloneBilling(b)
	}
	s.audit = make([]*entities.AuditLogEntry, 0, len(f.AuditLogs))
	for _, e := range f.AuditLogs {
		s.audit = append(s.audit, cloneAudit(e))
	}
}

// DemoFixtures returns the deterministic demo data set. Both demo accounts share passwordHash.
func DemoFixtures(passwordHash string) Fixtures {
	at := func(minutes int) time.Time { return FixtureEpoch.Add(time.Duration(minutes) * time.Minute) }
	paidAt := at(95)
	birthdate := time.Date(1990, time.June, 19, 0, 0, 0, 0, time.UTC)
	facultyID := "00000000-0000-4000-8000-000000000001"

	return Fixtures{
		Users: []*entities.User{
			{
				ID: facultyID, Name: "Dr. Maria Santos", Email: "director@labtrack.local",
				Role: entities.UserRoleFaculty, Department: "Laboratory", Status: entities.UserStatusActive,
				EncryptionKey: "ENC-7f3a9c21", PasswordHash: passwordHash, CreatedAt: at(-60), UpdatedAt: at(-60),
			},
			{
				ID: "00000000-0000-4000-8000-000000000002", Name: "Ana Villanueva", Email: "medtech@labtrack.local",
				Role: entities.UserRoleMember, Department: "Hematology", Status: entities.UserStatusActive,
				EncryptionKey: "ENC-1b8e44d0", PasswordHash: passwordHash, CreatedAt: at(-50), UpdatedAt: at(-50),
			},
		},
		Patients: []*entities.Patient{
			{
				ID: "10000000-0000-4000-8000-000000000001", PatientIDNo: "P-2024-0001",
				FirstName: "Maria", MiddleName: "Clara", LastName: "Reyes", Age: 33, Birthdate: &birthdate,
				Sex: "F", ContactNumber: "09171234567", Address: "Quezon City", DemographicsComplete: true,
				CreatedAt: at(0), UpdatedAt: at(0),
			},
			{
				ID: "10000000-0000-4000-8000-000000000002", PatientIDNo: "P-2024-0002",
				FirstName: "Jose", LastName: "Mercado", Age: 58,
				CreatedAt: at(30), UpdatedAt: at(30),
			},
		},
		Billing: []*entities.BillingEntry{
			{
				ID: "20000000-0000-4000-8000-000000000001", PatientID: "10000000-0000-4000-8000-000000000001",
				PatientName: "Maria Clara Reyes", TestName: "Patient Registration/Consultation", Section: "CONSULTATION",
				Amount: 150, Status: entities.BillingStatusPaid, Description: "Patient registration/consultation fee",
				ORNumber: "OR-000101", DatePaid: &paidAt, CreatedAt: at(0), UpdatedAt: at(95),
			},
			{
				ID: "20000000-0000-4000-8000-000000000002", PatientID: "10000000-0000-4000-8000-000000000001",
				PatientName: "Maria Clara Reyes", ResultID: "30000000-0000-4000-8000-000000000001",
				TestName: "Blood Glucose", Section: "CLINICAL CHEMISTRY", Amount: 150,
				Status: entities.BillingStatusPaid, Description: "Blood Glucose (CLINICAL CHEMISTRY)",
				ORNumber: "OR-000101", DatePaid: &paidAt, CreatedAt: at(10), UpdatedAt: at(95),
			},
			{
				ID: "20000000-0000-4000-8000-000000000003", PatientID: "10000000-0000-4000-8000-000000000002",
				PatientName: "Jose Mercado", TestName: "Patient Registration/Consultation", Section: "CONSULTATION",
				Amount: 150, Status: entities.BillingStatusUnpaid, Description: "Patient registration/consultation fee",
				CreatedAt: at(30), UpdatedAt: at(30),
			},
			{
				ID: "20000000-0000-4000-8000-000000000004", PatientID: "10000000-0000-4000-8000-000000000002",
				PatientName: "Jose Mercado", TestName: "CBC", Section: "HEMATOLOGY", Amount: 350,
				Status: entities.BillingStatusUnpaid, Description: "CBC (HEMATOLOGY)",
				CreatedAt: at(40), UpdatedAt: at(40),
			},
		},
		Results: []*entities.TestResult{
			{
				ID: "30000000-0000-4000-8000-000000000001", PatientID: "10000000-0000-4000-8000-000000000001",
				PatientName: "Maria Clara Reyes", Section: "CLINICAL CHEMISTRY", TestName: "Blood Glucose",
				ResultValue: "95", ReferenceRange: "70-100 mg/dL", Unit: "mg/dL", Status: entities.ResultStatusReleased,
				BillingEntryID: "20000000-0000-4000-8000-000000000002", CreatedAt: at(10), UpdatedAt: at(90),
			},
			{
				ID: "30000000-0000-4000-8000-000000000002", PatientID: "10000000-0000-4000-8000-000000000002",
				PatientName: "Jose Mercado", Section: "HEMATOLOGY", TestName: "Hemoglobin",
				ResultValue: "11.2", ReferenceRange: "12-16 g/dL", Unit: "g/dL", Status: entities.ResultStatusEncoding,
				BillingEntryID: "20000000-0000-4000-8000-000000000004", ParentTest: "CBC", CreatedAt: at(41), UpdatedAt: at(45),
			},
			{
				ID: "30000000-0000-4000-8000-000000000003", PatientID: "10000000-0000-4000-8000-000000000002",
				PatientName: "Jose Mercado", Section: "HEMATOLOGY", TestName: "Neutrophils",
				ResultValue: "", ReferenceRange: "50-70 %", Unit: "%", Status: entities.ResultStatusPending,
				BillingEntryID: "20000000-0000-4000-8000-000000000004", ParentTest: "CBC", CreatedAt: at(42), UpdatedAt: at(42),
			},
		},
		AuditLogs: []*entities.AuditLogEntry{
			{
				ID: "40000000-0000-4000-8000-000000000001", UserID: strPtr(facultyID), UserName: "Dr. Maria Santos",
				EncryptionKey: "ENC-7f3a9c21", Action: entities.AuditActionEdit, Resource: "Maria Clara Reyes",
				ResourceType: entities.ResourceTypePatient, Description: "Registered patient P-2024-0001, consultation fee ₱150.00",
				CreatedAt: at(0),
			},
			{
				ID: "40000000-0000-4000-8000-000000000002", UserID: strPtr(facultyID), UserName: "Dr. Maria Santos",
				EncryptionKey: "ENC-7f3a9c21", Action: entities.AuditActionEdit, Resource: "Blood Glucose",
				ResourceType: entities.ResourceTypeTestResult, Description: "status: approved → released",
				CreatedAt: at(90),
			},
		},
	}
}

func strPtr(s string) *string { return &s }
