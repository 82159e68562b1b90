package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/nimasrn/drgame-ledger/pkg/logger"
	"github.com/nimasrn/drgame-ledger/pkg/pg"
	"github.com/nimasrn/drgame-ledger/pkg/prom"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrConcurrentUpdate = errors.New("concurrent balance update")

// Poster is the only writer of balance columns.
type Poster struct {
	db *pg.DB
}

func NewPoster(db *pg.DB) *Poster {
	return &Poster{db: db}
}

// Post applies every leg atomically. Inside an open transaction it joins it; otherwise it
// opens its own and retries lost races with exponential backoff.
func (p *Poster) Post(ctx context.Context, posting Posting) error {
	legs, err := posting.normalize()
	if err != nil {
		return err
	}
	if len(legs) == 0 {
		return nil
	}

	if pg.InTransaction(ctx) {
		return p.apply(ctx, posting, legs)
	}

	const maxRetries = 3
	const baseDelay = 2 * time.Millisecond
	for attempt := 0; ; attempt++ {
		err = p.db.WithinTransaction(ctx, func(ctx context.Context) error {
			return p.apply(ctx, posting, legs)
		})
		if err == nil || !errors.Is(err, ErrConcurrentUpdate) || attempt == maxRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(baseDelay * time.Duration(1<<attempt)):
		}
	}
}

func (p *Poster) apply(ctx context.Context, posting Posting, legs []Leg) error {
	tx := p.db.Write(ctx)
	postingID := uuid.NewString()

	var orderKind *string
	if posting.OrderKind != "" {
		k := string(posting.OrderKind)
		orderKind = &k
	}

	entries := make([]EntryEntity, 0, len(legs))
	for _, leg := range legs {
		entry := EntryEntity{
			PostingID:     postingID,
			AccountKind:   leg.Account.Kind,
			AccountID:     leg.Account.ID,
			Delta:         leg.Delta,
			Reason:        posting.Reason,
			TransactionID: posting.TransactionID,
			OrderKind:     orderKind,
			OrderID:       posting.OrderID,
		}
		if !leg.Account.journalOnly() {
			after, err := applyLeg(tx, leg)
			if err != nil {
				return err
			}
			entry.BalanceAfter = &after
		}
		entries = append(entries, entry)
	}

	if err := tx.Create(&entries).Error; err != nil {
		return fmt.Errorf("write journal: %w", err)
	}

	logger.Info("ledger posting",
		"posting_id", postingID,
		"reason", posting.Reason,
		"transaction_id", posting.TransactionID,
		"legs", describe(legs))
	prom.ObserveLedgerPosting(posting.Reason)
	for _, leg := range legs {
		prom.AddPostedAmount(string(leg.Account.Kind), leg.Delta)
	}
	return nil
}

func applyLeg(tx *gorm.DB, leg Leg) (int64, error) {
	table := balanceTables[leg.Account.Kind]

	var row struct{ Balance int64 }
	res := tx.Table(table).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("balance").
		Where("id = ? AND lifecycle = ?", leg.Account.ID, model.LifecycleActive).
		Limit(1).
		Scan(&row)
	if res.Error != nil {
		return 0, fmt.Errorf("lock %s: %w", leg.Account, res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, model.NotFound(string(leg.Account.Kind), leg.Account.ID)
	}

	after := row.Balance + leg.Delta
	if leg.NoOverdraft && after < 0 {
		return 0, model.InsufficientBalance(string(leg.Account.Kind),
			fmt.Sprintf("%s holds %d, cannot move %d", leg.Account, row.Balance, leg.Delta))
	}

	upd := tx.Table(table).
		Where("id = ?", leg.Account.ID).
		UpdateColumn("balance", gorm.Expr("balance + ?", leg.Delta))
	if upd.Error != nil {
		return 0, fmt.Errorf("update %s: %w", leg.Account, upd.Error)
	}
	if upd.RowsAffected == 0 {
		return 0, ErrConcurrentUpdate
	}
	return after, nil
}

func describe(legs []Leg) []string {
	out := make([]string, len(legs))
	for i, l := range legs {
		out[i] = fmt.Sprintf("%s%+d", l.Account, l.Delta)
	}
	return out
}

// Entries returns the journal lines for one account, newest first.
func (p *Poster) Entries(ctx context.Context, acct Account, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []EntryEntity
	err := p.db.Read(ctx).
		Where("account_kind = ? AND account_id = ?", acct.Kind, acct.ID).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load journal: %w", err)
	}
	out := make([]Entry, len(rows))
	for i, r := range rows {
		out[i] = Entry{
			PostingID:     r.PostingID,
			AccountKind:   r.AccountKind,
			AccountID:     r.AccountID,
			Delta:         r.Delta,
			BalanceAfter:  r.BalanceAfter,
			Reason:        r.Reason,
			TransactionID: r.TransactionID,
			CreatedAt:     r.CreatedAt,
		}
	}
	return out, nil
}
