package repository

import (
	"errors"
	"fmt"

	"github.com/nimasrn/drgame-ledger/internal/model"
	"gorm.io/gorm"
)

var ErrConcurrentUpdate = errors.New("concurrent update detected")

func active(db *gorm.DB) *gorm.DB {
	return db.Where("lifecycle = ?", model.LifecycleActive)
}

// notFound converts gorm's record-not-found into the domain error for entity/id.
func notFound(err error, entity string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.NotFound(entity, id)
	}
	return fmt.Errorf("load %s %v: %w", entity, id, err)
}

// conditional reports a lost race when a guarded update touched no row.
func conditional(res *gorm.DB, entity, field string) error {
	if res.Error != nil {
		return fmt.Errorf("update %s: %w", entity, res.Error)
	}
	if res.RowsAffected == 0 {
		return &model.Error{
			Kind:   model.ErrStateConflict,
			Field:  field,
			Reason: fmt.Sprintf("%s changed concurrently: %v", entity, ErrConcurrentUpdate),
		}
	}
	return nil
}

// BalanceTotals splits a table's balances into credit (sum of positives) and debt (sum of |negatives|).
type BalanceTotals struct {
	Credit int64
	Debt   int64
}

func balanceTotals(db *gorm.DB, table string) (BalanceTotals, error) {
	var out struct {
		Credit int64
		Debt   int64
	}
	err := db.Table(table).
		Scopes(active).
		Select("COALESCE(SUM(CASE WHEN balance > 0 THEN balance ELSE 0 END), 0) AS credit, " +
			"COALESCE(SUM(CASE WHEN balance < 0 THEN -balance ELSE 0 END), 0) AS debt").
		Scan(&out).Error
	if err != nil {
		return BalanceTotals{}, fmt.Errorf("balance totals %s: %w", table, err)
	}
	return BalanceTotals{Credit: out.Credit, Debt: out.Debt}, nil
}
