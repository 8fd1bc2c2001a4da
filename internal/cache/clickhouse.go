package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"

	"github.com/aman-zulfiqar/pair-detector/internal/constants"
	"github.com/aman-zulfiqar/pair-detector/internal/models"
	"github.com/aman-zulfiqar/pair-detector/internal/storage"
)

var _ storage.CandidateStore = (*ClickHouseStore)(nil)

const createCandidatesTable = `
	CREATE TABLE IF NOT EXISTS token_candidates (
		id                   UUID,
		detected_at          DateTime64(3),
		token_address        String,
		pair_address         String,
		name                 String,
		symbol               String,
		quote_asset          LowCardinality(String),
		is_native_quote_pair Bool,
		liquidity            Nullable(Decimal(76, 18)),
		verified             Nullable(Bool),
		risk_flags           Array(String),
		telegram             String,
		is_honeypot          Nullable(Bool),
		decision             LowCardinality(String),
		failed_gates         Array(String)
	) ENGINE = MergeTree()
	ORDER BY (detected_at, token_address)
`

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

// ClickHouseStore is the audit log of every recorded candidate, rejected ones included.
type ClickHouseStore struct {
	conn driver.Conn
}

func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseStore, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	if err := conn.Exec(ctx, createCandidatesTable); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create token_candidates: %w", err)
	}

	return &ClickHouseStore{conn: conn}, nil
}

func (c *ClickHouseStore) Record(ctx context.Context, cand *models.TokenCandidate) error {
	query := `
		INSERT INTO token_candidates (
			id, detected_at, token_address, pair_address, name, symbol,
			quote_asset, is_native_quote_pair, liquidity, verified,
			risk_flags, telegram, is_honeypot, decision, failed_gates
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if err := c.conn.Exec(ctx, query, candidateRow(cand)...); err != nil {
		return fmt.Errorf("failed to insert candidate: %w", err)
	}
	return nil
}

func (c *ClickHouseStore) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}

// candidateRow flattens a candidate into insert arguments. Unknown signals become NULL.
func candidateRow(c *models.TokenCandidate) []any {
	var (
		liquidity *decimal.Decimal
		verified  *bool
		honeypot  *bool
		telegram  string
		flags     = []string{}
	)
	if c.Liquidity != nil {
		amt := c.Liquidity.Amount
		liquidity = &amt
	}
	if c.CodeAnalysis != nil {
		v := c.CodeAnalysis.Verified
		verified = &v
		for _, f := range c.CodeAnalysis.Flags {
			flags = append(flags, string(f))
		}
		telegram = c.CodeAnalysis.SocialLinks[constants.SocialTelegram]
	}
	if c.TradeSimulation != nil {
		h := c.TradeSimulation.IsHoneypot
		honeypot = &h
	}
	gates := c.FailedGates
	if gates == nil {
		gates = []string{}
	}

	return []any{
		c.ID,
		c.DetectedAt,
		strings.ToLower(c.TokenAddress.Hex()),
		strings.ToLower(c.PairAddress.Hex()),
		c.Name,
		c.Symbol,
		c.QuoteAsset,
		c.IsNativeQuotePair,
		liquidity,
		verified,
		flags,
		telegram,
		honeypot,
		c.Decision,
		gates,
	}
}
