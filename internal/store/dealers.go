package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"dealercast/internal/models"
	"dealercast/internal/pkg/errors"
)

const dealerColumns = `dealer_no, display_name, phone, website, logo_url,
	program_status, created_at, updated_at`

// ListFullDealers returns the dealers enrolled in the full program, ordered
// by display name. When dealerNos is non-empty only those dealers are
// returned; skip excludes individual dealer numbers.
func (s *Store) ListFullDealers(ctx context.Context, dealerNos, skip []string) ([]models.Dealer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+dealerColumns+` FROM dealers
		WHERE program_status = $1
		  AND (cardinality($2::text[]) = 0 OR dealer_no = ANY($2))
		  AND NOT (dealer_no = ANY($3))
		ORDER BY display_name ASC`,
		models.ProgramStatusFull, textArray(dealerNos), textArray(skip),
	)
	if err != nil {
		return nil, err
	}
	return collectDealers(rows)
}

// ListDealers returns the whole roster for the read-only operator view.
func (s *Store) ListDealers(ctx context.Context) ([]models.Dealer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+dealerColumns+` FROM dealers
		ORDER BY display_name ASC`)
	if err != nil {
		return nil, err
	}
	return collectDealers(rows)
}

// GetDealer fetches one dealer by number.
func (s *Store) GetDealer(ctx context.Context, dealerNo string) (*models.Dealer, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+dealerColumns+` FROM dealers WHERE dealer_no = $1`, dealerNo)
	d, err := scanDealer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.NotFound("dealer", dealerNo)
		}
		return nil, err
	}
	return d, nil
}

func collectDealers(rows pgx.Rows) ([]models.Dealer, error) {
	defer rows.Close()
	var out []models.Dealer
	for rows.Next() {
		d, err := scanDealer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func scanDealer(row batchScanner) (*models.Dealer, error) {
	var d models.Dealer
	err := row.Scan(
		&d.DealerNo, &d.DisplayName, &d.Phone, &d.Website, &d.LogoURL,
		&d.ProgramStatus, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// textArray never passes nil so cardinality() sees an empty array.
func textArray(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
