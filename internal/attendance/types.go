package attendance

import (
	"fmt"
	"time"
)

// Action is the attendance transition requested by a user.
type Action int

const (
	// Login opens a session, closing any session left open for the employee.
	Login Action = iota + 1
	// Logout closes the open session or records a synthetic logout.
	Logout
)

func (a Action) String() string {
	switch a {
	case Login:
		return "login"
	case Logout:
		return "logout"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Record is one row of the employee_log table.
type Record struct {
	ID           int64
	EmployeeID   *int64
	DisplayName  *string
	UserIdentity string
	LoginTime    time.Time
	LogoutTime   *time.Time
}

// Open reports whether the record is an open session.
func (r *Record) Open() bool {
	return r.LogoutTime == nil
}

// Activity is the input to Ledger.RecordActivity.
type Activity struct {
	// EmployeeID is required for Login. For Logout it is resolved from the
	// most recent record of UserIdentity when nil.
	EmployeeID   *int64
	DisplayName  *string
	UserIdentity string
	Action       Action
}

// Result describes what RecordActivity changed.
type Result struct {
	// Record is the opened session on login and the closed (or synthetic)
	// session on logout.
	Record *Record

	// Closed is the previously open session that a login auto-closed.
	Closed *Record

	// Synthetic is set when a logout found no open session and inserted a
	// record with LoginTime equal to LogoutTime.
	Synthetic bool
}
