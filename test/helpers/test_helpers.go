package helpers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/drgame-ledger/internal/ledger"
	"github.com/nimasrn/drgame-ledger/internal/repository"
	"github.com/nimasrn/drgame-ledger/pkg/pg"
	"github.com/nimasrn/drgame-ledger/pkg/redis"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SetupTestDB opens a private in-memory sqlite database with every table migrated.
// sqlite ignores row locks, so the pool is pinned to one connection to serialize writers.
func SetupTestDB(t *testing.T) *pg.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), pg.GormConfig(false))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&repository.CustomerEntity{},
		&repository.EmployeeEntity{},
		&repository.RepairmanEntity{},
		&repository.PaymentMethodEntity{},
		&repository.TransactionEntity{},
		&repository.GameEntity{},
		&repository.ProductEntity{},
		&repository.OrderEntity{},
		&repository.OrderItemEntity{},
		&repository.GameOrderEntity{},
		&repository.GameOrderItemEntity{},
		&repository.RepairOrderEntity{},
		&repository.CourseOrderEntity{},
		&ledger.EntryEntity{},
	)
	require.NoError(t, err)

	return pg.New(db, db)
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	t.Helper()
	mr := miniredis.RunT(t)

	adapter, err := redis.NewRedisAdapter("test:", &redis.Options{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })

	return mr, adapter
}

func CreateCustomer(t *testing.T, db *pg.DB, discount int, balance int64) int64 {
	t.Helper()
	c := &repository.CustomerEntity{Name: "customer", Phone: "09120000000", Discount: discount}
	require.NoError(t, db.Write(context.Background()).Create(c).Error)
	SetBalance(t, db, "customers", c.ID, balance)
	return c.ID
}

func CreateEmployee(t *testing.T, db *pg.DB, commission int, balance int64) int64 {
	t.Helper()
	e := &repository.EmployeeEntity{Name: "employee", Phone: "09130000000", CommissionAmount: commission}
	require.NoError(t, db.Write(context.Background()).Create(e).Error)
	SetBalance(t, db, "employees", e.ID, balance)
	return e.ID
}

func CreateRepairman(t *testing.T, db *pg.DB, balance int64) int64 {
	t.Helper()
	r := &repository.RepairmanEntity{Name: "repairman", Phone: "09140000000"}
	require.NoError(t, db.Write(context.Background()).Create(r).Error)
	SetBalance(t, db, "repairmen", r.ID, balance)
	return r.ID
}

func CreatePaymentMethod(t *testing.T, db *pg.DB, title string, online bool, balance int64) int64 {
	t.Helper()
	pm := &repository.PaymentMethodEntity{Title: title, IsOnline: online}
	require.NoError(t, db.Write(context.Background()).Create(pm).Error)
	SetBalance(t, db, "payment_methods", pm.ID, balance)
	return pm.ID
}

// SetBalance seeds an opening balance, bypassing the ledger.
func SetBalance(t *testing.T, db *pg.DB, table string, id, balance int64) {
	t.Helper()
	err := db.Write(context.Background()).
		Exec(fmt.Sprintf("UPDATE %s SET balance = ? WHERE id = ?", table), balance, id).Error
	require.NoError(t, err)
}

func Balance(t *testing.T, db *pg.DB, table string, id int64) int64 {
	t.Helper()
	var out struct{ Balance int64 }
	err := db.Read(context.Background()).Table(table).Select("balance").Where("id = ?", id).Scan(&out).Error
	require.NoError(t, err)
	return out.Balance
}

// JournalCount counts ledger entries, optionally for one reason.
func JournalCount(t *testing.T, db *pg.DB, reason string) int64 {
	t.Helper()
	q := db.Read(context.Background()).Model(&ledger.EntryEntity{})
	if reason != "" {
		q = q.Where("reason = ?", reason)
	}
	var n int64
	require.NoError(t, q.Count(&n).Error)
	return n
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
