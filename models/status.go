package models

type BookingStatus string

const (
	BookingUnpaid      BookingStatus = "UNPAID"
	BookingPending     BookingStatus = "PENDING"
	BookingDepositPaid BookingStatus = "DEPOSIT_PAID"
	BookingConfirmed   BookingStatus = "CONFIRMED"
	BookingCheckedIn   BookingStatus = "CHECKED_IN"
	BookingCheckedOut  BookingStatus = "CHECKED_OUT"
	BookingCompleted   BookingStatus = "COMPLETED"
	BookingCancelled   BookingStatus = "CANCELLED"
	BookingExpired     BookingStatus = "EXPIRED"
)

type BookingPaymentStatus string

const (
	PaymentStatusUnpaid        BookingPaymentStatus = "UNPAID"
	PaymentStatusPending       BookingPaymentStatus = "PENDING"
	PaymentStatusPartiallyPaid BookingPaymentStatus = "PARTIALLY_PAID"
	PaymentStatusPaid          BookingPaymentStatus = "PAID"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingUnpaid:      {BookingPending, BookingDepositPaid, BookingConfirmed, BookingCancelled, BookingExpired},
	BookingPending:     {BookingDepositPaid, BookingConfirmed, BookingCancelled, BookingExpired},
	BookingDepositPaid: {BookingConfirmed, BookingCheckedIn, BookingCancelled},
	BookingConfirmed:   {BookingCheckedIn, BookingCancelled},
	BookingCheckedIn:   {BookingCheckedOut, BookingCancelled},
	BookingCheckedOut:  {BookingCompleted, BookingCancelled},
}

// paidStates lists the payment statuses a booking may hold in each status.
// CANCELLED and EXPIRED keep whatever was recorded when they were reached.
var paidStates = map[BookingStatus][]BookingPaymentStatus{
	BookingUnpaid:      {PaymentStatusUnpaid},
	BookingPending:     {PaymentStatusPending},
	BookingDepositPaid: {PaymentStatusPartiallyPaid},
	BookingConfirmed:   {PaymentStatusPartiallyPaid, PaymentStatusPaid},
	BookingCheckedIn:   {PaymentStatusPartiallyPaid, PaymentStatusPaid},
	BookingCheckedOut:  {PaymentStatusPartiallyPaid, PaymentStatusPaid},
	BookingCompleted:   {PaymentStatusPartiallyPaid, PaymentStatusPaid},
}

func (s BookingStatus) Terminal() bool {
	return s == BookingCompleted || s == BookingCancelled || s == BookingExpired
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AllowsPaymentStatus reports whether the pair (s, ps) is a consistent combination.
func (s BookingStatus) AllowsPaymentStatus(ps BookingPaymentStatus) bool {
	if s == BookingCancelled || s == BookingExpired {
		return true
	}
	for _, allowed := range paidStates[s] {
		if allowed == ps {
			return true
		}
	}
	return false
}

// HoldsRoom reports whether a booking in this status still occupies its room.
func (s BookingStatus) HoldsRoom() bool {
	switch s {
	case BookingCheckedOut:
		return false
	default:
		return !s.Terminal()
	}
}

// Extendable reports whether an extension may be sold or settled on a booking
// in this status.
func (s BookingStatus) Extendable() bool {
	return s == BookingDepositPaid || s == BookingConfirmed || s == BookingCheckedIn
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingUnpaid, BookingPending, BookingDepositPaid, BookingConfirmed, BookingCheckedIn,
		BookingCheckedOut, BookingCompleted, BookingCancelled, BookingExpired:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
	PaymentExpired PaymentStatus = "EXPIRED"
)

func (s PaymentStatus) Terminal() bool {
	return s == PaymentSuccess || s == PaymentFailed || s == PaymentExpired
}

type PaymentType string

const (
	PaymentTypeDeposit PaymentType = "DEPOSIT"
	PaymentTypeFull    PaymentType = "FULL"
)

func (t PaymentType) Valid() bool {
	return t == PaymentTypeDeposit || t == PaymentTypeFull
}

type PayoutStatus string

const (
	PayoutPending   PayoutStatus = "PENDING"
	PayoutApproved  PayoutStatus = "APPROVED"
	PayoutRejected  PayoutStatus = "REJECTED"
	PayoutCompleted PayoutStatus = "COMPLETED"
)

var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutPending:  {PayoutApproved, PayoutRejected},
	PayoutApproved: {PayoutCompleted},
}

func (s PayoutStatus) CanTransitionTo(next PayoutStatus) bool {
	for _, allowed := range payoutTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s PayoutStatus) Valid() bool {
	switch s {
	case PayoutPending, PayoutApproved, PayoutRejected, PayoutCompleted:
		return true
	}
	return false
}

type BankAccountStatus string

const (
	BankAccountPending  BankAccountStatus = "PENDING"
	BankAccountApproved BankAccountStatus = "APPROVED"
	BankAccountRejected BankAccountStatus = "REJECTED"
)

type LeaseType string

const (
	LeaseDaily     LeaseType = "DAILY"
	LeaseWeekly    LeaseType = "WEEKLY"
	LeaseMonthly   LeaseType = "MONTHLY"
	LeaseQuarterly LeaseType = "QUARTERLY"
	LeaseYearly    LeaseType = "YEARLY"
)

func (l LeaseType) Valid() bool {
	switch l {
	case LeaseDaily, LeaseWeekly, LeaseMonthly, LeaseQuarterly, LeaseYearly:
		return true
	}
	return false
}

// Exclusive leases take the room off the market for the whole stay.
func (l LeaseType) Exclusive() bool {
	return l == LeaseMonthly || l == LeaseQuarterly || l == LeaseYearly
}

// RoomHoldingStatuses are the booking statuses that keep a room occupied.
func RoomHoldingStatuses() []BookingStatus {
	return []BookingStatus{BookingUnpaid, BookingPending, BookingDepositPaid, BookingConfirmed, BookingCheckedIn}
}
