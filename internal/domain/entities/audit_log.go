package entities

import "time"

// AuditAction is the kind of action an audit entry records
type AuditAction string

const (
	AuditActionLogin    AuditAction = "login"
	AuditActionLogout   AuditAction = "logout"
	AuditActionView     AuditAction = "view"
	AuditActionEdit     AuditAction = "edit"
	AuditActionDelete   AuditAction = "delete"
	AuditActionDownload AuditAction = "download"
)

// IsValid reports whether a is a known audit action.
func (a AuditAction) IsValid() bool {
	switch a {
	case AuditActionLogin, AuditActionLogout, AuditActionView,
		AuditActionEdit, AuditActionDelete, AuditActionDownload:
		return true
	}
	return false
}

// Resource types recorded on audit entries
const (
	ResourceTypePatient    = "patient"
	ResourceTypeTestResult = "test_result"
	ResourceTypeBilling    = "billing"
	ResourceTypeUser       = "user"
	ResourceTypeSession    = "session"
)

// AuditLogEntry is an append-only record of a mutating action.
type AuditLogEntry struct {
	ID            string      `json:"id" db:"id"`
	UserID        *string     `json:"user_id,omitempty" db:"user_id"`
	UserName      string      `json:"user_name" db:"user_name"`
	EncryptionKey string      `json:"encryption_key" db:"encryption_key"`
	Action        AuditAction `json:"action" db:"action"`
	Resource      string      `json:"resource" db:"resource"`
	ResourceType  string      `json:"resource_type" db:"resource_type"`
	Description   string      `json:"description" db:"description"`
	IPAddress     *string     `json:"ip_address,omitempty" db:"ip_address"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

// Actor is the authenticated user an operation is attributed to.
type Actor struct {
	UserID        string `json:"user_id,omitempty"`
	Name          string `json:"name"`
	EncryptionKey string `json:"encryption_key"`
	IPAddress     string `json:"ip_address,omitempty"`
}

// SystemActor attributes work that no signed-in user triggered (seeding, CLI).
var SystemActor = Actor{Name: "System", EncryptionKey: "SYSTEM"}
