package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"dealercast/internal/httpkit"
	"dealercast/internal/models"
	"dealercast/internal/pkg/errors"
)

// CreateTemplate registers a vendor template and its field map.
func (s *Store) CreateTemplate(ctx context.Context, t *models.Template) error {
	fieldMap, err := json.Marshal(t.FieldMap)
	if err != nil {
		return fmt.Errorf("marshal field map: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO templates (id, name, field_map_json)
		VALUES ($1,$2,$3)
		RETURNING created_at`,
		t.ID, t.Name, string(fieldMap),
	).Scan(&t.CreatedAt)
	if err != nil {
		if httpkit.IsUniqueViolation(err) {
			return errors.Newf(errors.CodeConflict, "template name already exists: %s", t.Name)
		}
		return err
	}
	return nil
}

// ListTemplates returns non-deleted templates, newest first.
func (s *Store) ListTemplates(ctx context.Context) ([]models.Template, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, field_map_json, created_at, deleted_at
		FROM templates
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// GetTemplate fetches one template by id.
func (s *Store) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, field_map_json, created_at, deleted_at
		FROM templates WHERE id = $1`, id)
	t, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.NotFound("template", id)
		}
		return nil, err
	}
	return t, nil
}

// DeleteTemplate soft-deletes a template.
func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE templates SET deleted_at = now()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("template", id)
	}
	return nil
}

// GetFieldMap returns the field map for a template id, or the default map
// when the template is unregistered or has no explicit mapping.
func (s *Store) GetFieldMap(ctx context.Context, templateID string) ([]models.FieldMapping, error) {
	t, err := s.GetTemplate(ctx, templateID)
	if err != nil {
		if errors.IsNotFound(err) {
			return models.DefaultFieldMap(), nil
		}
		return nil, err
	}
	if len(t.FieldMap) == 0 {
		return models.DefaultFieldMap(), nil
	}
	return t.FieldMap, nil
}

func scanTemplate(row batchScanner) (*models.Template, error) {
	var t models.Template
	var fieldMapJSON string
	if err := row.Scan(&t.ID, &t.Name, &fieldMapJSON, &t.CreatedAt, &t.DeletedAt); err != nil {
		return nil, err
	}
	if fieldMapJSON != "" && fieldMapJSON != "[]" {
		if err := json.Unmarshal([]byte(fieldMapJSON), &t.FieldMap); err != nil {
			return nil, fmt.Errorf("decode field map for %s: %w", t.ID, err)
		}
	}
	return &t, nil
}
