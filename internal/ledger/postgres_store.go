package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// PostgresStore implements Store with PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new PostgreSQL-backed ledger store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the ledger tables. The contract_state table holds exactly
// one row carrying the nonces, the reserve balance, and the pause flag.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS policies (
			id               BIGINT PRIMARY KEY,
			holder           VARCHAR(42) NOT NULL,
			coverage_amount  NUMERIC(20,0) NOT NULL,
			premium          NUMERIC(20,0) NOT NULL,
			risk_score       NUMERIC(20,0) NOT NULL,
			category         VARCHAR(32) NOT NULL,
			start_block      NUMERIC(20,0) NOT NULL,
			end_block        NUMERIC(20,0) NOT NULL,
			active           BOOLEAN NOT NULL DEFAULT TRUE,
			claims_count     NUMERIC(20,0) NOT NULL DEFAULT 0,
			created_at       TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS claims (
			id               BIGINT PRIMARY KEY,
			policy_id        BIGINT NOT NULL REFERENCES policies(id),
			claimant         VARCHAR(42) NOT NULL,
			amount           NUMERIC(20,0) NOT NULL,
			description      TEXT,
			submitted_block  NUMERIC(20,0) NOT NULL,
			processed        BOOLEAN NOT NULL DEFAULT FALSE,
			approved         BOOLEAN NOT NULL DEFAULT FALSE,
			fraud_score      NUMERIC(20,0) NOT NULL DEFAULT 0,
			evidence         VARCHAR(66) NOT NULL,
			created_at       TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS profiles (
			account          VARCHAR(42) PRIMARY KEY,
			total_policies   NUMERIC(20,0) NOT NULL DEFAULT 0,
			claims_history   NUMERIC(20,0) NOT NULL DEFAULT 0,
			reputation_score NUMERIC(20,0) NOT NULL DEFAULT 50,
			last_claim_block NUMERIC(20,0) NOT NULL DEFAULT 0,
			blacklisted      BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at       TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS contract_state (
			singleton     BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (singleton),
			policy_nonce  BIGINT NOT NULL DEFAULT 0,
			claim_nonce   BIGINT NOT NULL DEFAULT 0,
			balance       NUMERIC(20,0) NOT NULL DEFAULT 0,
			height        NUMERIC(20,0) NOT NULL DEFAULT 0,
			paused        BOOLEAN NOT NULL DEFAULT FALSE,
			CONSTRAINT chk_balance_nonneg CHECK (balance >= 0)
		);
		ALTER TABLE contract_state
			ADD COLUMN IF NOT EXISTS height NUMERIC(20,0) NOT NULL DEFAULT 0;
		INSERT INTO contract_state (singleton) VALUES (TRUE)
		ON CONFLICT (singleton) DO NOTHING;

		CREATE INDEX IF NOT EXISTS idx_policies_holder ON policies(holder);
		CREATE INDEX IF NOT EXISTS idx_claims_policy ON claims(policy_id);
	`)
	return err
}

func (p *PostgresStore) GetPolicy(ctx context.Context, id uint64) (*Policy, error) {
	pol := &Policy{}
	var holder string
	err := p.db.QueryRowContext(ctx, `
		SELECT id, holder, coverage_amount, premium, risk_score, category,
		       start_block, end_block, active, claims_count, created_at
		FROM policies WHERE id = $1
	`, int64(id)).Scan(&pol.ID, &holder, &pol.CoverageAmount, &pol.Premium, &pol.RiskScore,
		&pol.Category, &pol.StartBlock, &pol.EndBlock, &pol.Active, &pol.ClaimsCount, &pol.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrPolicyNotFound
	}
	if err != nil {
		return nil, err
	}
	pol.Holder = common.HexToAddress(holder)
	return pol, nil
}

func (p *PostgresStore) GetClaim(ctx context.Context, id uint64) (*Claim, error) {
	c := &Claim{}
	var claimant, evidence string
	var description sql.NullString
	err := p.db.QueryRowContext(ctx, `
		SELECT id, policy_id, claimant, amount, description, submitted_block,
		       processed, approved, fraud_score, evidence, created_at
		FROM claims WHERE id = $1
	`, int64(id)).Scan(&c.ID, &c.PolicyID, &claimant, &c.Amount, &description, &c.SubmittedBlock,
		&c.Processed, &c.Approved, &c.FraudScore, &evidence, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrClaimNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Claimant = common.HexToAddress(claimant)
	c.Description = description.String
	c.Evidence = common.HexToHash(evidence)
	return c, nil
}

func (p *PostgresStore) GetProfile(ctx context.Context, account common.Address) (*Profile, error) {
	prof := &Profile{Account: account}
	err := p.db.QueryRowContext(ctx, `
		SELECT total_policies, claims_history, reputation_score, last_claim_block, blacklisted, updated_at
		FROM profiles WHERE account = $1
	`, account.Hex()).Scan(&prof.TotalPolicies, &prof.ClaimsHistory, &prof.ReputationScore,
		&prof.LastClaimBlock, &prof.Blacklisted, &prof.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return prof, nil
}

func (p *PostgresStore) ListPoliciesByHolder(ctx context.Context, holder common.Address, beforeID uint64, limit int) ([]*Policy, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, holder, coverage_amount, premium, risk_score, category,
		       start_block, end_block, active, claims_count, created_at
		FROM policies
		WHERE holder = $1 AND ($2 = 0 OR id < $2)
		ORDER BY id DESC
		LIMIT $3
	`, holder.Hex(), int64(beforeID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []*Policy
	for rows.Next() {
		pol := &Policy{}
		var h string
		if err := rows.Scan(&pol.ID, &h, &pol.CoverageAmount, &pol.Premium, &pol.RiskScore,
			&pol.Category, &pol.StartBlock, &pol.EndBlock, &pol.Active, &pol.ClaimsCount, &pol.CreatedAt); err != nil {
			return nil, err
		}
		pol.Holder = common.HexToAddress(h)
		policies = append(policies, pol)
	}
	return policies, rows.Err()
}

func (p *PostgresStore) ListClaimsByPolicy(ctx context.Context, policyID uint64, beforeID uint64, limit int) ([]*Claim, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, policy_id, claimant, amount, description, submitted_block,
		       processed, approved, fraud_score, evidence, created_at
		FROM claims
		WHERE policy_id = $1 AND ($2 = 0 OR id < $2)
		ORDER BY id DESC
		LIMIT $3
	`, int64(policyID), int64(beforeID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []*Claim
	for rows.Next() {
		c := &Claim{}
		var claimant, evidence string
		var description sql.NullString
		if err := rows.Scan(&c.ID, &c.PolicyID, &claimant, &c.Amount, &description, &c.SubmittedBlock,
			&c.Processed, &c.Approved, &c.FraudScore, &evidence, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Claimant = common.HexToAddress(claimant)
		c.Description = description.String
		c.Evidence = common.HexToHash(evidence)
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

// IssuePolicy assigns the next policy id, inserts the policy, bumps the
// holder's profile, and credits the premium to the reserve in one
// serializable transaction.
func (p *PostgresStore) IssuePolicy(ctx context.Context, pol *Policy) (uint64, error) {
	done := observeOp("issue_policy")
	defer done()

	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `
		UPDATE contract_state SET
			policy_nonce = policy_nonce + 1,
			balance      = balance + $1
		RETURNING policy_nonce
	`, pol.Premium).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to advance policy nonce: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO policies (id, holder, coverage_amount, premium, risk_score, category,
		                      start_block, end_block, active, claims_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, 0, NOW())
	`, id, pol.Holder.Hex(), pol.CoverageAmount, pol.Premium, pol.RiskScore,
		pol.Category, pol.StartBlock, pol.EndBlock)
	if err != nil {
		return 0, fmt.Errorf("failed to insert policy: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO profiles (account, total_policies, updated_at)
		VALUES ($1, 1, NOW())
		ON CONFLICT (account) DO UPDATE SET
			total_policies = profiles.total_policies + 1,
			updated_at     = NOW()
	`, pol.Holder.Hex())
	if err != nil {
		return 0, fmt.Errorf("failed to update profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	pol.ID = uint64(id)
	return uint64(id), nil
}

// RecordClaim assigns the next claim id, inserts the claim, and bumps the
// policy's claim count in one serializable transaction.
func (p *PostgresStore) RecordClaim(ctx context.Context, c *Claim) (uint64, error) {
	done := observeOp("record_claim")
	defer done()

	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE policies SET claims_count = claims_count + 1 WHERE id = $1
	`, int64(c.PolicyID))
	if err != nil {
		return 0, fmt.Errorf("failed to update policy claim count: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return 0, ErrPolicyNotFound
	}

	var id int64
	err = tx.QueryRowContext(ctx, `
		UPDATE contract_state SET claim_nonce = claim_nonce + 1
		RETURNING claim_nonce
	`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to advance claim nonce: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO claims (id, policy_id, claimant, amount, description, submitted_block,
		                    processed, approved, fraud_score, evidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	`, id, int64(c.PolicyID), c.Claimant.Hex(), c.Amount, c.Description, c.SubmittedBlock,
		c.Processed, c.Approved, c.FraudScore, c.Evidence.Hex())
	if err != nil {
		return 0, fmt.Errorf("failed to insert claim: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	c.ID = uint64(id)
	return uint64(id), nil
}

// MarkClaimProcessed flips the claim to processed and debits the payout
// from the reserve. The CHECK constraint on balance >= 0 prevents paying
// out more than the pool holds.
func (p *PostgresStore) MarkClaimProcessed(ctx context.Context, claimID uint64, payout uint64) error {
	done := observeOp("mark_claim_processed")
	defer done()

	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var processed bool
	err = tx.QueryRowContext(ctx, `
		SELECT processed FROM claims WHERE id = $1 FOR UPDATE
	`, int64(claimID)).Scan(&processed)
	if err == sql.ErrNoRows {
		return ErrClaimNotFound
	}
	if err != nil {
		return err
	}
	if processed {
		return ErrClaimProcessed
	}

	var balance uint64
	err = tx.QueryRowContext(ctx, `
		SELECT balance FROM contract_state FOR UPDATE
	`).Scan(&balance)
	if err != nil {
		return err
	}
	if payout > balance {
		return ErrInsufficientReserve
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE contract_state SET balance = balance - $1
	`, payout)
	if err != nil {
		return fmt.Errorf("failed to debit reserve: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE claims SET processed = TRUE WHERE id = $1
	`, int64(claimID))
	if err != nil {
		return fmt.Errorf("failed to mark claim processed: %w", err)
	}

	return tx.Commit()
}

func (p *PostgresStore) PutProfile(ctx context.Context, prof *Profile) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO profiles (account, total_policies, claims_history, reputation_score,
		                      last_claim_block, blacklisted, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (account) DO UPDATE SET
			total_policies   = $2,
			claims_history   = $3,
			reputation_score = $4,
			last_claim_block = $5,
			blacklisted      = $6,
			updated_at       = NOW()
	`, prof.Account.Hex(), prof.TotalPolicies, prof.ClaimsHistory, prof.ReputationScore,
		prof.LastClaimBlock, prof.Blacklisted)
	return err
}

func (p *PostgresStore) ExpirePolicies(ctx context.Context, height uint64) (int64, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE policies SET active = FALSE
		WHERE active AND end_block < $1
	`, int64(height))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (p *PostgresStore) Counters(ctx context.Context) (Counters, error) {
	var c Counters
	err := p.db.QueryRowContext(ctx, `
		SELECT policy_nonce, claim_nonce, balance, height, paused FROM contract_state
	`).Scan(&c.PolicyNonce, &c.ClaimNonce, &c.Balance, &c.Height, &c.Paused)
	return c, err
}

func (p *PostgresStore) SetPaused(ctx context.Context, paused bool) error {
	_, err := p.db.ExecContext(ctx, `UPDATE contract_state SET paused = $1`, paused)
	return err
}

func (p *PostgresStore) SetHeight(ctx context.Context, height uint64) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE contract_state SET height = GREATEST(height, $1)
	`, int64(height))
	return err
}
