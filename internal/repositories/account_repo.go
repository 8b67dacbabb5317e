package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/querydesk/querydesk/internal/database"
	"github.com/querydesk/querydesk/internal/models"
)

const accountColumns = "id, username, email, password_hash, name, status, features, created_at, last_login_at"

// AccountRepository persists managed accounts. The backing table comes from
// the active variant ("admins" or "users"); both tables share one shape, so
// one repository serves both deployments.
type AccountRepository struct {
	db    *database.DB
	table string
}

func NewAccountRepository(db *database.DB, table string) *AccountRepository {
	return &AccountRepository{db: db, table: table}
}

// rowScanner interface for scanning account rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanAccountRow handles nullable fields and populates an Account model from a database row
func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account
	var lastLoginAt *time.Time

	err := scanner.Scan(
		&account.ID, &account.Username, &account.Email, &account.PasswordHash,
		&account.Name, &account.Status, &account.Features,
		&account.CreatedAt, &lastLoginAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	account.LastLoginAt = lastLoginAt

	return &account, nil
}

// scanAccountRows iterates through rows and scans each into Account models
func scanAccountRows(rows pgx.Rows) ([]*models.Account, error) {
	defer rows.Close()

	accounts := make([]*models.Account, 0)

	for rows.Next() {
		account, err := scanAccountRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return accounts, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, accountColumns, r.table)

	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, id))
}

// GetActiveByUsername resolves login credentials. Inactive accounts are
// indistinguishable from unknown ones at this layer.
func (r *AccountRepository) GetActiveByUsername(ctx context.Context, username string) (*models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE username = $1 AND status = $2`, accountColumns, r.table)

	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, username, models.AccountStatusActive))
}

// GetByUsernameOrEmail backs the uniqueness pre-check on account creation;
// the unique indexes remain the authority under concurrent writes.
func (r *AccountRepository) GetByUsernameOrEmail(ctx context.Context, username, email string) (*models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE username = $1 OR email = $2`, accountColumns, r.table)

	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, username, email))
}

func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at DESC LIMIT $1 OFFSET $2`, accountColumns, r.table)

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}

	return scanAccountRows(rows)
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	account.ID = uuid.New()
	account.CreatedAt = time.Now()

	if account.Status == "" {
		account.Status = models.AccountStatusActive
	}
	if account.Features == nil {
		account.Features = []string{}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, username, email, password_hash, name, status, features, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING %s
	`, r.table, accountColumns)

	return scanAccountRow(r.db.Pool.QueryRow(ctx, query,
		account.ID, account.Username, account.Email, account.PasswordHash,
		account.Name, account.Status, account.Features, account.CreatedAt,
	))
}

// Update rewrites the mutable profile fields. Username is immutable; the
// password hash is passed through unchanged when no new password was set.
func (r *AccountRepository) Update(ctx context.Context, id string, account *models.Account) (*models.Account, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET email = $1, name = $2, status = $3, password_hash = $4
		WHERE id = $5
		RETURNING %s
	`, r.table, accountColumns)

	return scanAccountRow(r.db.Pool.QueryRow(ctx, query,
		account.Email, account.Name, account.Status, account.PasswordHash, id,
	))
}

// UpdateFeatures replaces the account's granted feature set.
func (r *AccountRepository) UpdateFeatures(ctx context.Context, id string, features []string) (*models.Account, error) {
	if features == nil {
		features = []string{}
	}

	query := fmt.Sprintf(`
		UPDATE %s SET features = $1
		WHERE id = $2
		RETURNING %s
	`, r.table, accountColumns)

	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, features, id))
}

// TouchLastLogin stamps a successful authentication.
func (r *AccountRepository) TouchLastLogin(ctx context.Context, id string) error {
	query := fmt.Sprintf(`UPDATE %s SET last_login_at = $1 WHERE id = $2`, r.table)

	result, err := r.db.Pool.Exec(ctx, query, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table)

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (r *AccountRepository) CountTotal(ctx context.Context) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.table)

	var count int
	if err := r.db.Pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

func (r *AccountRepository) CountByStatus(ctx context.Context, status string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE status = $1`, r.table)

	var count int
	if err := r.db.Pool.QueryRow(ctx, query, status).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}
