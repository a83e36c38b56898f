package models

import (
	"encoding/json"
	"errors"
)

type ProcessingStatus string

const (
	ProcessingStatusNew        ProcessingStatus = "new"
	ProcessingStatusProcessing ProcessingStatus = "processing"
	ProcessingStatusCompleted  ProcessingStatus = "completed"
	ProcessingStatusCancelled  ProcessingStatus = "cancelled"
)

func (s ProcessingStatus) IsValid() bool {
	switch s {
	case ProcessingStatusNew, ProcessingStatusProcessing, ProcessingStatusCompleted, ProcessingStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s ProcessingStatus) IsTerminal() bool {
	return s == ProcessingStatusCompleted || s == ProcessingStatusCancelled
}

// IsWorking reports whether the order line is still in the working queue.
func (s ProcessingStatus) IsWorking() bool {
	return s == ProcessingStatusNew || s == ProcessingStatusProcessing
}

// convert input to enum type
func (s *ProcessingStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("processing status must be string")
	}
	v := ProcessingStatus(str)
	if !v.IsValid() {
		return errors.New("invalid processing status")
	}
	*s = v
	return nil
}

type UnitCondition string

const (
	UnitConditionSellable   UnitCondition = "Sellable"
	UnitConditionUnsellable UnitCondition = "Unsellable"
	UnitConditionMissing    UnitCondition = "Missing"
)

func (c UnitCondition) IsValid() bool {
	switch c {
	case UnitConditionSellable, UnitConditionUnsellable, UnitConditionMissing:
		return true
	}
	return false
}

func (c *UnitCondition) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("unit condition must be string")
	}
	v := UnitCondition(str)
	if !v.IsValid() {
		return errors.New("invalid unit condition")
	}
	*c = v
	return nil
}

type DiscrepancyType string

const (
	DiscrepancyDamage    DiscrepancyType = "damage"
	DiscrepancyMislabel  DiscrepancyType = "mislabel"
	DiscrepancyWrongItem DiscrepancyType = "wrong-item"
	DiscrepancyOther     DiscrepancyType = "other"
)

func (d DiscrepancyType) IsValid() bool {
	switch d {
	case DiscrepancyDamage, DiscrepancyMislabel, DiscrepancyWrongItem, DiscrepancyOther:
		return true
	}
	return false
}

func (d *DiscrepancyType) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("discrepancy type must be string")
	}
	v := DiscrepancyType(str)
	if !v.IsValid() {
		return errors.New("invalid discrepancy type")
	}
	*d = v
	return nil
}

type UserRole string

const (
	UserRoleAdmin    UserRole = "admin"
	UserRoleManager  UserRole = "manager"
	UserRoleEmployee UserRole = "employee"
)

func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleAdmin, UserRoleManager, UserRoleEmployee:
		return true
	}
	return false
}

func (r *UserRole) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("user role must be string")
	}
	v := UserRole(str)
	if !v.IsValid() {
		return errors.New("invalid user role")
	}
	*r = v
	return nil
}

type FileType string

const (
	FileTypeRemoval  FileType = "removal"
	FileTypeTracking FileType = "tracking"
)

func (t FileType) IsValid() bool {
	return t == FileTypeRemoval || t == FileTypeTracking
}

// Reconciliation event types written to the outbox.
const (
	EventSpreadsheetIngested = "spreadsheet.ingested"
	EventOrderCompleted      = "order.completed"
	EventOrderCancelled      = "order.cancelled"
	EventStoreCleared        = "store.cleared"
)

// Outbox publish statuses for ReconciliationEvent.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)
