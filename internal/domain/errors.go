package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrConflict       = errors.New("conflict")
	ErrSeatConflict   = errors.New("seat(s) are already held or booked")
	ErrInvalidVoucher = errors.New("invalid voucher")
	ErrInvalidState   = errors.New("invalid reservation state")
	ErrPersistence    = errors.New("persistence failure")
	ErrValidation     = errors.New("validation failed")
)

type NotFoundError struct {
	Resource string
	ID       any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// ConflictError reports a schedule overlap or a delete blocked by live bookings.
// ScheduleID is the conflicting schedule when one is known.
type ConflictError struct {
	Reason     string
	ScheduleID int
}

func (e *ConflictError) Error() string {
	if e.ScheduleID != 0 {
		return fmt.Sprintf("%s (schedule %d)", e.Reason, e.ScheduleID)
	}

	return e.Reason
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// SeatConflictError lists exactly the requested seats that are held or booked by
// another active reservation.
type SeatConflictError struct {
	Seats []string
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("seats already taken: %s", strings.Join(e.Seats, ", "))
}

func (e *SeatConflictError) Unwrap() error {
	return ErrSeatConflict
}

type InvalidVoucherError struct {
	Code   string
	Reason string
}

func (e *InvalidVoucherError) Error() string {
	return fmt.Sprintf("voucher %q: %s", e.Code, e.Reason)
}

func (e *InvalidVoucherError) Unwrap() error {
	return ErrInvalidVoucher
}

type InvalidStateError struct {
	ReservationID int
	From          ReservationStatus
	To            ReservationStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("reservation %d cannot move from %s to %s", e.ReservationID, e.From, e.To)
}

func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

// PersistenceError wraps a storage I/O failure. Op names the failed operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
