package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"dcf_valuation/pkg/core/projection"
	"dcf_valuation/pkg/core/valuation"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no valuation is stored for a ticker
var ErrNotFound = errors.New("valuation not found")

// ValuationRecord is one persisted DCF run
type ValuationRecord struct {
	ID             string                         `json:"id"`
	Ticker         string                         `json:"ticker"`
	CompanyName    string                         `json:"company_name"`
	Strategy       projection.StrategyKind        `json:"strategy"`
	HorizonYears   int                            `json:"horizon_years"`
	TerminalGrowth float64                        `json:"terminal_growth"`
	Inputs         *valuation.CostOfCapitalInputs `json:"wacc_inputs,omitempty"`
	WACC           *valuation.WACCResult          `json:"wacc,omitempty"`
	Table          *valuation.DCFTable            `json:"table"`
	Result         *valuation.ValuationResult     `json:"result"`
	CreatedAt      time.Time                      `json:"created_at"`
}

// ValuationRepository persists DCF runs
type ValuationRepository interface {
	Save(ctx context.Context, rec *ValuationRecord) error
	Latest(ctx context.Context, ticker string) (*ValuationRecord, error)
}

// ValuationRepo stores runs in Postgres (primary) or as JSON files (fallback)
type ValuationRepo struct {
	pool    *pgxpool.Pool
	fileDir string
}

// NewValuationRepo creates a repository. With a nil pool and empty dir it
// defaults to .cache/valuations.
func NewValuationRepo(pool *pgxpool.Pool, dir string) (*ValuationRepo, error) {
	if pool == nil && dir == "" {
		dir = filepath.Join(".cache", "valuations")
	}
	if pool == nil {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create valuation dir: %w", err)
		}
	}
	return &ValuationRepo{pool: pool, fileDir: dir}, nil
}

// Save assigns an ID and timestamp when missing, then persists the record
func (r *ValuationRepo) Save(ctx context.Context, rec *ValuationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal valuation: %w", err)
	}

	if r.pool != nil {
		query := `
			INSERT INTO dcf_valuations (id, ticker, strategy, record_json, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`
		_, err = r.pool.Exec(ctx, query, rec.ID, rec.Ticker, string(rec.Strategy), data, rec.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to save valuation: %w", err)
		}
		return nil
	}

	dir := r.tickerDir(rec.Ticker)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create valuation dir: %w", err)
	}
	path := filepath.Join(dir, rec.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save valuation file: %w", err)
	}
	return nil
}

// Latest returns the most recent run for ticker
func (r *ValuationRepo) Latest(ctx context.Context, ticker string) (*ValuationRecord, error) {
	if r.pool != nil {
		query := `
			SELECT record_json
			FROM dcf_valuations
			WHERE ticker = $1
			ORDER BY created_at DESC
			LIMIT 1
		`
		var data []byte
		err := r.pool.QueryRow(ctx, query, ticker).Scan(&data)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, ticker)
			}
			return nil, fmt.Errorf("failed to load valuation: %w", err)
		}
		var rec ValuationRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal valuation: %w", err)
		}
		return &rec, nil
	}

	records, err := r.loadDir(ticker)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ticker)
	}
	return records[0], nil
}

// Internal File Helpers

func (r *ValuationRepo) tickerDir(ticker string) string {
	safe := strings.ReplaceAll(strings.ToUpper(ticker), string(filepath.Separator), "_")
	return filepath.Join(r.fileDir, safe)
}

// loadDir returns the ticker's records, newest first. Unreadable files are skipped.
func (r *ValuationRepo) loadDir(ticker string) ([]*ValuationRecord, error) {
	entries, err := os.ReadDir(r.tickerDir(ticker))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list valuations: %w", err)
	}

	var records []*ValuationRecord
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.tickerDir(ticker), e.Name()))
		if err != nil {
			continue
		}
		var rec ValuationRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		records = append(records, &rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}
