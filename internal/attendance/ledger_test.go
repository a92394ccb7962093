package attendance

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/officebot/internal/db"
)

// testClock is a controllable time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLedger(t *testing.T, clock *testClock) (*Ledger, *sql.DB) {
	t.Helper()

	name := "attendance_" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := db.OpenDSN(context.Background(), db.MemoryDSN(name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	w := db.NewWorker(conn)
	t.Cleanup(w.Close)

	return NewLedger(conn, w, WithClock(clock.Now)), conn
}

func openCount(t *testing.T, conn *sql.DB, employeeID int64) int {
	t.Helper()
	var n int
	err := conn.QueryRow(
		"SELECT COUNT(*) FROM employee_log WHERE employee_id = ? AND logout_time IS NULL;", employeeID).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestLogin_OpensSession(t *testing.T) {
	clock := newTestClock()
	l, conn := newTestLedger(t, clock)

	res, err := l.Login(context.Background(), 42, "Ada", "user-1")
	require.NoError(t, err)

	require.NotNil(t, res.Record)
	assert.Nil(t, res.Closed)
	assert.True(t, res.Record.Open())
	assert.Equal(t, int64(42), *res.Record.EmployeeID)
	assert.Equal(t, "Ada", *res.Record.DisplayName)
	assert.Equal(t, "user-1", res.Record.UserIdentity)
	assert.True(t, res.Record.LoginTime.Equal(clock.Now()))
	assert.Equal(t, 1, openCount(t, conn, 42))
}

func TestLogin_ClosesPriorOpenSession(t *testing.T) {
	clock := newTestClock()
	l, conn := newTestLedger(t, clock)
	ctx := context.Background()

	first, err := l.Login(ctx, 42, "Ada", "user-1")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	second, err := l.Login(ctx, 42, "Ada", "user-1")
	require.NoError(t, err)

	require.NotNil(t, second.Closed)
	assert.Equal(t, first.Record.ID, second.Closed.ID)
	require.NotNil(t, second.Closed.LogoutTime)
	assert.False(t, second.Closed.LogoutTime.After(second.Record.LoginTime),
		"prior logout must not be after the new login")
	assert.Equal(t, 1, openCount(t, conn, 42))

	sessions, err := l.Sessions(ctx, 42)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.False(t, sessions[0].Open())
	assert.True(t, sessions[1].Open())
}

func TestLogout_ClosesOpenSession(t *testing.T) {
	clock := newTestClock()
	l, conn := newTestLedger(t, clock)
	ctx := context.Background()

	login, err := l.Login(ctx, 7, "Grace", "user-7")
	require.NoError(t, err)

	clock.Advance(8 * time.Hour)
	res, err := l.Logout(ctx, "user-7")
	require.NoError(t, err)

	assert.False(t, res.Synthetic)
	assert.Equal(t, login.Record.ID, res.Record.ID)
	require.NotNil(t, res.Record.LogoutTime)
	assert.True(t, res.Record.LogoutTime.Equal(clock.Now()))
	assert.True(t, res.Record.LoginTime.Equal(login.Record.LoginTime))
	assert.Equal(t, 0, openCount(t, conn, 7))
}

func TestLogout_NoOpenSessionInsertsSynthetic(t *testing.T) {
	tests := []struct {
		name           string
		setup          func(t *testing.T, l *Ledger)
		wantEmployeeID *int64
	}{
		{
			name:  "unknown user",
			setup: func(*testing.T, *Ledger) {},
		},
		{
			name: "already logged out",
			setup: func(t *testing.T, l *Ledger) {
				_, err := l.Login(context.Background(), 3, "Lin", "user-3")
				require.NoError(t, err)
				_, err = l.Logout(context.Background(), "user-3")
				require.NoError(t, err)
			},
			wantEmployeeID: ptr(int64(3)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newTestClock()
			l, conn := newTestLedger(t, clock)
			tt.setup(t, l)

			var before int
			require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM employee_log;").Scan(&before))

			clock.Advance(time.Minute)
			user := "user-3"
			res, err := l.Logout(context.Background(), user)
			require.NoError(t, err)

			var after int
			require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM employee_log;").Scan(&after))
			assert.Equal(t, before+1, after, "exactly one new record")

			assert.True(t, res.Synthetic)
			require.NotNil(t, res.Record.LogoutTime)
			assert.True(t, res.Record.LoginTime.Equal(*res.Record.LogoutTime))
			assert.Equal(t, tt.wantEmployeeID, res.Record.EmployeeID)
		})
	}
}

func TestRecordActivity_Validation(t *testing.T) {
	l, _ := newTestLedger(t, newTestClock())
	ctx := context.Background()

	_, err := l.RecordActivity(ctx, Activity{UserIdentity: "u", Action: Login})
	assert.ErrorIs(t, err, ErrInvalidActivity)

	_, err = l.RecordActivity(ctx, Activity{Action: Logout})
	assert.ErrorIs(t, err, ErrInvalidActivity)

	_, err = l.RecordActivity(ctx, Activity{UserIdentity: "u", Action: Action(99)})
	assert.ErrorIs(t, err, ErrInvalidActivity)
}

func TestRecordActivity_PersistenceError(t *testing.T) {
	l, conn := newTestLedger(t, newTestClock())
	require.NoError(t, conn.Close())

	_, err := l.Login(context.Background(), 1, "x", "u")
	var perr *PersistenceError
	require.True(t, errors.As(err, &perr), "got %v", err)
	assert.Equal(t, "login", perr.Op)
}

func TestRecordActivity_ClockSkewIsNotFatal(t *testing.T) {
	clock := newTestClock()
	l, conn := newTestLedger(t, clock)
	ctx := context.Background()

	_, err := l.Login(ctx, 5, "Skew", "user-5")
	require.NoError(t, err)

	clock.Advance(-time.Hour)
	_, err = l.Login(ctx, 5, "Skew", "user-5")
	require.NoError(t, err)
	assert.Equal(t, 1, openCount(t, conn, 5))
}

func TestRecordActivity_AtMostOneOpenSession(t *testing.T) {
	clock := newTestClock()
	l, conn := newTestLedger(t, clock)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(1))

	employees := []int64{1, 2, 3}
	for i := 0; i < 200; i++ {
		id := employees[rng.Intn(len(employees))]
		user := "user-" + string(rune('a'+id))
		clock.Advance(time.Duration(rng.Intn(120)) * time.Second)

		var err error
		if rng.Intn(2) == 0 {
			_, err = l.Login(ctx, id, "n", user)
		} else {
			_, err = l.Logout(ctx, user)
		}
		require.NoError(t, err)

		for _, e := range employees {
			require.LessOrEqual(t, openCount(t, conn, e), 1, "employee %d after step %d", e, i)
		}
	}
}

func TestRecordActivity_ConcurrentLoginsSameEmployee(t *testing.T) {
	l, conn := newTestLedger(t, newTestClock())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Login(ctx, 9, "Racer", "user-9")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, openCount(t, conn, 9))
}

func ptr[T any](v T) *T { return &v }
