package model

import "github.com/shopspring/decimal"

// AttendanceStats summarizes one calendar day of the ledger
type AttendanceStats struct {
	Date            string          `json:"date"`
	CheckedInCount  int64           `json:"checkedInCount"`
	CheckedOutCount int64           `json:"checkedOutCount"`
	PendingCheckout int64           `json:"pendingCheckout"`
	AverageHours    decimal.Decimal `json:"averageHours"` // over closed cycles only, 2 decimal places
}

// UserStats counts active directory users
type UserStats struct {
	TotalUsers         int64          `json:"totalUsers"`
	AttendanceEligible int64          `json:"attendanceEligible"`
	ByRole             map[Role]int64 `json:"byRole"`
}

// UserWithAttendance is a directory row with its ledger size, used by the admin user list
type UserWithAttendance struct {
	User
	AttendanceCount int64 `json:"attendanceCount"`
}
