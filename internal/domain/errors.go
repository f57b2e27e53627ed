package domain

import (
	"errors"
	"fmt"
)

// NotFoundError reports a missing connection, profile, organization or invitation.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ConflictError reports an attempt to create a second connection for a
// (profile, organization) pair. ExistingID is set when the existing
// connection is known so callers can redirect to it.
type ConflictError struct {
	ProfileID      int32
	OrganizationID int32
	ExistingID     int32
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("connection between profile %d and organization %d already exists", e.ProfileID, e.OrganizationID)
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Eligibility is the answer of an eligibility check. Reason is empty when allowed.
type Eligibility struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func Eligible() Eligibility {
	return Eligibility{Allowed: true}
}

func NotEligible(reason string) Eligibility {
	return Eligibility{Allowed: false, Reason: reason}
}

// IneligibleError is returned when a role selection was rejected before any write.
type IneligibleError struct {
	ProfileID      int32
	OrganizationID int32
	Role           Role
	Eligibility    Eligibility
}

func (e *IneligibleError) Error() string {
	return fmt.Sprintf("profile %d is not eligible for role %s at organization %d: %s",
		e.ProfileID, e.Role, e.OrganizationID, e.Eligibility.Reason)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsIneligible(err error) bool {
	var target *IneligibleError
	return errors.As(err, &target)
}
