// Package enums provides type-safe enumeration types shared by the store,
// auth and web layers. All enums are string-backed so they marshal naturally
// to JSON and sqlite without extra conversion code.
package enums

import (
	"database/sql/driver"
	"fmt"
)

// JobStatus represents the lifecycle state of a booking job.
type JobStatus string

// JobStatus values
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// ParseJobStatus converts a string to JobStatus
func ParseJobStatus(s string) (JobStatus, error) {
	switch JobStatus(s) {
	case JobStatusPending, JobStatusInProgress, JobStatusCompleted, JobStatusCancelled:
		return JobStatus(s), nil
	}
	return "", fmt.Errorf("invalid job status %q", s)
}

// String returns the string representation
func (s JobStatus) String() string { return string(s) }

// Value implements driver.Valuer for sql storage
func (s JobStatus) Value() (driver.Value, error) { return string(s), nil }

// Scan implements sql.Scanner
func (s *JobStatus) Scan(v any) error { return scanString((*string)(s), v, "job status") }

// Role represents a user role. Roles form a strict total order
// user < manager < admin, encoded by Rank.
type Role string

// Role values
const (
	RoleUser    Role = "user"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// roleRanks is the table-driven encoding of the role hierarchy
var roleRanks = map[Role]int{RoleUser: 1, RoleManager: 2, RoleAdmin: 3}

// ParseRole converts a string to Role
func ParseRole(s string) (Role, error) {
	if _, ok := roleRanks[Role(s)]; !ok {
		return "", fmt.Errorf("invalid role %q", s)
	}
	return Role(s), nil
}

// String returns the string representation
func (r Role) String() string { return string(r) }

// Rank returns the numeric position of the role in the hierarchy,
// zero for unknown roles.
func (r Role) Rank() int { return roleRanks[r] }

// Meets reports whether the role is at or above required in the hierarchy.
// Unknown roles never meet anything, including themselves.
func (r Role) Meets(required Role) bool {
	return r.Rank() > 0 && required.Rank() > 0 && r.Rank() >= required.Rank()
}

// Value implements driver.Valuer for sql storage
func (r Role) Value() (driver.Value, error) { return string(r), nil }

// Scan implements sql.Scanner
func (r *Role) Scan(v any) error { return scanString((*string)(r), v, "role") }

// UserStatus represents an account state.
type UserStatus string

// UserStatus values
const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

// ParseUserStatus converts a string to UserStatus
func ParseUserStatus(s string) (UserStatus, error) {
	switch UserStatus(s) {
	case UserStatusActive, UserStatusSuspended:
		return UserStatus(s), nil
	}
	return "", fmt.Errorf("invalid user status %q", s)
}

// String returns the string representation
func (s UserStatus) String() string { return string(s) }

// Value implements driver.Valuer for sql storage
func (s UserStatus) Value() (driver.Value, error) { return string(s), nil }

// Scan implements sql.Scanner
func (s *UserStatus) Scan(v any) error { return scanString((*string)(s), v, "user status") }

// RequestType selects the identifier-request variant, UCID or SCID.
type RequestType string

// RequestType values
const (
	RequestTypeUCID RequestType = "ucid"
	RequestTypeSCID RequestType = "scid"
)

// ParseRequestType converts a string to RequestType
func ParseRequestType(s string) (RequestType, error) {
	switch RequestType(s) {
	case RequestTypeUCID, RequestTypeSCID:
		return RequestType(s), nil
	}
	return "", fmt.Errorf("invalid request type %q", s)
}

// String returns the string representation
func (t RequestType) String() string { return string(t) }

// Value implements driver.Valuer for sql storage
func (t RequestType) Value() (driver.Value, error) { return string(t), nil }

// Scan implements sql.Scanner
func (t *RequestType) Scan(v any) error { return scanString((*string)(t), v, "request type") }

// RequestStatus represents the identifier-request workflow state.
type RequestStatus string

// RequestStatus values
const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusCompleted RequestStatus = "completed"
)

// ParseRequestStatus converts a string to RequestStatus
func ParseRequestStatus(s string) (RequestStatus, error) {
	switch RequestStatus(s) {
	case RequestStatusPending, RequestStatusCompleted:
		return RequestStatus(s), nil
	}
	return "", fmt.Errorf("invalid request status %q", s)
}

// String returns the string representation
func (s RequestStatus) String() string { return string(s) }

// Value implements driver.Valuer for sql storage
func (s RequestStatus) Value() (driver.Value, error) { return string(s), nil }

// Scan implements sql.Scanner
func (s *RequestStatus) Scan(v any) error { return scanString((*string)(s), v, "request status") }

// ArtworkStatus represents the artwork review workflow state.
type ArtworkStatus string

// ArtworkStatus values
const (
	ArtworkStatusPending  ArtworkStatus = "pending"
	ArtworkStatusApproved ArtworkStatus = "approved"
	ArtworkStatusRejected ArtworkStatus = "rejected"
)

// ParseArtworkStatus converts a string to ArtworkStatus
func ParseArtworkStatus(s string) (ArtworkStatus, error) {
	switch ArtworkStatus(s) {
	case ArtworkStatusPending, ArtworkStatusApproved, ArtworkStatusRejected:
		return ArtworkStatus(s), nil
	}
	return "", fmt.Errorf("invalid artwork status %q", s)
}

// String returns the string representation
func (s ArtworkStatus) String() string { return string(s) }

// Value implements driver.Valuer for sql storage
func (s ArtworkStatus) Value() (driver.Value, error) { return string(s), nil }

// Scan implements sql.Scanner
func (s *ArtworkStatus) Scan(v any) error { return scanString((*string)(s), v, "artwork status") }

// scanString handles the common sql.Scanner cases, sqlite returns TEXT
// columns as string or []byte depending on the driver path.
func scanString(dst *string, v any, kind string) error {
	switch val := v.(type) {
	case string:
		*dst = val
	case []byte:
		*dst = string(val)
	case nil:
		*dst = ""
	default:
		return fmt.Errorf("unexpected %s type %T", kind, v)
	}
	return nil
}
