package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/chiearnhub/payment-bridge/internal/payment-service/deposit"
)

// Postgres implementa deposit.Store sobre as tabelas deposits, users e balance_ledger
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

const depositColumns = `id, user_id, email, amount, method, reference, status, payment_url, created_at, paid_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeposit(row rowScanner) (*deposit.Deposit, error) {
	var d deposit.Deposit
	var status string
	var paidAt sql.NullTime
	err := row.Scan(&d.ID, &d.UserID, &d.Email, &d.Amount, &d.Method, &d.Reference, &status, &d.PaymentURL, &d.CreatedAt, &paidAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, deposit.ErrDepositNotFound
	}
	if err != nil {
		return nil, err
	}
	d.Status = deposit.Status(status)
	if paidAt.Valid {
		t := paidAt.Time
		d.PaidAt = &t
	}
	return &d, nil
}

// CreateDeposit faz upsert pelo depositId. Um depósito já aprovado não é
// sobrescrito: o WHERE do ON CONFLICT zera as linhas afetadas.
func (p *Postgres) CreateDeposit(ctx context.Context, d *deposit.Deposit) error {
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO deposits (id, user_id, email, amount, method, reference, status, payment_url, created_at, paid_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,'',$8,NULL)
		ON CONFLICT (id) DO UPDATE SET
		  user_id     = EXCLUDED.user_id,
		  email       = EXCLUDED.email,
		  amount      = EXCLUDED.amount,
		  method      = EXCLUDED.method,
		  reference   = EXCLUDED.reference,
		  status      = EXCLUDED.status,
		  payment_url = '',
		  created_at  = EXCLUDED.created_at,
		  paid_at     = NULL
		WHERE deposits.status <> 'approved'`,
		d.ID, d.UserID, d.Email, d.Amount, d.Method, d.Reference, string(d.Status), d.CreatedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return deposit.ErrAlreadyApproved
	}
	return nil
}

// MarkPending salva a URL do gateway e passa o depósito para pending
func (p *Postgres) MarkPending(ctx context.Context, depositID, paymentURL string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE deposits SET payment_url=$2, status='pending'
		WHERE id=$1 AND status <> 'approved'`, depositID, paymentURL)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := p.GetDeposit(ctx, depositID); err != nil {
		return err
	}
	return deposit.ErrAlreadyApproved
}

func (p *Postgres) GetDeposit(ctx context.Context, depositID string) (*deposit.Deposit, error) {
	return scanDeposit(p.db.QueryRowContext(ctx, `SELECT `+depositColumns+` FROM deposits WHERE id=$1`, depositID))
}

func (p *Postgres) GetUser(ctx context.Context, userID string) (*deposit.User, error) {
	u := deposit.User{ID: userID}
	err := p.db.QueryRowContext(ctx, `SELECT balance FROM users WHERE id=$1`, userID).Scan(&u.Balance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, deposit.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ApproveDeposit credita o saldo e aprova o depósito numa única transação.
// Lock pessimista na ordem depósito -> usuário: dois webhooks do mesmo
// depósito serializam na linha do depósito, depósitos diferentes do mesmo
// usuário serializam na linha do usuário.
func (p *Postgres) ApproveDeposit(ctx context.Context, depositID string, paidAt time.Time) (*deposit.Approval, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	d, err := scanDeposit(tx.QueryRowContext(ctx, `SELECT `+depositColumns+` FROM deposits WHERE id=$1 FOR UPDATE`, depositID))
	if err != nil {
		return nil, err
	}
	if d.Status == deposit.StatusApproved {
		return nil, deposit.ErrAlreadyApproved
	}

	// usuário sem registro conta como saldo zero
	if _, err = tx.ExecContext(ctx, `INSERT INTO users (id, balance) VALUES ($1, 0) ON CONFLICT (id) DO NOTHING`, d.UserID); err != nil {
		return nil, err
	}

	var current int64
	if err = tx.QueryRowContext(ctx, `SELECT balance FROM users WHERE id=$1 FOR UPDATE`, d.UserID).Scan(&current); err != nil {
		return nil, err
	}
	newBalance := current + d.Amount

	if _, err = tx.ExecContext(ctx, `UPDATE users SET balance=$1, updated_at=NOW() WHERE id=$2`, newBalance, d.UserID); err != nil {
		return nil, err
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO balance_ledger (id, user_id, deposit_id, amount, balance_after)
		VALUES ($1,$2,$3,$4,$5)`,
		uuid.NewString(), d.UserID, d.ID, d.Amount, newBalance); err != nil {
		return nil, err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE deposits SET status='approved', paid_at=$2 WHERE id=$1`, d.ID, paidAt); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	d.Status = deposit.StatusApproved
	d.PaidAt = &paidAt
	return &deposit.Approval{Deposit: *d, NewBalance: newBalance}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }
