package store

import (
	"context"
	"database/sql"
	"strings"

	"flightpath/internal/assessment"
)

// Catalog readers. Templates, configs and items are immutable from the
// engine's point of view; absence is a nil result, not an error.

type itemRepo struct {
	tx *sql.Tx
}

func (r *itemRepo) GetItem(ctx context.Context, itemID string) (*assessment.Item, error) {
	row := r.tx.QueryRowContext(ctx, `
		SELECT id, content, item_type, skill_area, target_proficiency_level, parameters, is_active
		FROM assessment_items WHERE id = ?`, itemID)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, assessment.ErrTransient("load item %s: %v", itemID, err).WithCause(err)
	}
	return item, nil
}

// GetItemsBySkillAreas returns active items linked to the template whose
// skill areas overlap the filter, excluding already-presented items. The
// skill overlap runs in Go over the JSON column; an empty filter admits
// every skill area.
func (r *itemRepo) GetItemsBySkillAreas(ctx context.Context, templateID string, skillAreas, excludeItemIDs []string) ([]assessment.Item, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT i.id, i.content, i.item_type, i.skill_area, i.target_proficiency_level, i.parameters, i.is_active
		FROM assessment_items i
		JOIN template_items ti ON ti.item_id = i.id
		WHERE ti.template_id = ? AND i.is_active = 1`)
	args := []any{templateID}
	if len(excludeItemIDs) > 0 {
		query.WriteString(" AND i.id NOT IN (?" + strings.Repeat(",?", len(excludeItemIDs)-1) + ")")
		for _, id := range excludeItemIDs {
			args = append(args, id)
		}
	}
	query.WriteString(" ORDER BY ti.item_order ASC, i.id ASC")

	rows, err := r.tx.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, assessment.ErrTransient("load items for template %s: %v", templateID, err).WithCause(err)
	}
	defer rows.Close()

	var items []assessment.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, assessment.ErrTransient("scan item: %v", err).WithCause(err)
		}
		if !item.HasSkillOverlap(skillAreas) {
			continue
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, assessment.ErrTransient("iterate items: %v", err).WithCause(err)
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*assessment.Item, error) {
	var (
		item       assessment.Item
		content    sql.NullString
		skillArea  sql.NullString
		target     sql.NullString
		parameters sql.NullString
	)
	if err := row.Scan(&item.ID, &content, &item.ItemType, &skillArea, &target, &parameters, &item.Active); err != nil {
		return nil, err
	}
	var err error
	if item.Content, err = unmarshalMap(content); err != nil {
		return nil, err
	}
	if item.SkillAreas, err = unmarshalStringSlice(skillArea); err != nil {
		return nil, err
	}
	if target.Valid {
		item.TargetProficiencyLevel = target.String
	}
	if item.Parameters, err = unmarshalFloatMap(parameters); err != nil {
		return nil, err
	}
	return &item, nil
}

type configRepo struct {
	tx *sql.Tx
}

func (r *configRepo) GetConfigByTemplate(ctx context.Context, templateID string) (*assessment.Config, error) {
	row := r.tx.QueryRowContext(ctx, `
		SELECT id, template_id, parameters, adaptive_params, is_active
		FROM assessment_configs
		WHERE template_id = ? AND is_active = 1
		LIMIT 1`, templateID)

	var (
		cfg            assessment.Config
		parameters     sql.NullString
		adaptiveParams sql.NullString
	)
	err := row.Scan(&cfg.ID, &cfg.TemplateID, &parameters, &adaptiveParams, &cfg.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, assessment.ErrTransient("load config for template %s: %v", templateID, err).WithCause(err)
	}
	if cfg.Parameters, err = unmarshalMap(parameters); err != nil {
		return nil, assessment.ErrInternal("config %s: %v", cfg.ID, err)
	}
	if cfg.AdaptiveParams, err = unmarshalMap(adaptiveParams); err != nil {
		return nil, assessment.ErrInternal("config %s: %v", cfg.ID, err)
	}
	return &cfg, nil
}

type templateRepo struct {
	tx *sql.Tx
}

func (r *templateRepo) GetTemplate(ctx context.Context, templateID string) (*assessment.Template, error) {
	row := r.tx.QueryRowContext(ctx, `
		SELECT id, learning_pathway_id, name, assessment_type, rubric, meta, version, is_active
		FROM assessment_templates WHERE id = ?`, templateID)

	var (
		tmpl   assessment.Template
		rubric sql.NullString
		meta   sql.NullString
	)
	err := row.Scan(&tmpl.ID, &tmpl.LearningPathwayID, &tmpl.Name, &tmpl.AssessmentType, &rubric, &meta, &tmpl.Version, &tmpl.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, assessment.ErrTransient("load template %s: %v", templateID, err).WithCause(err)
	}
	if tmpl.Rubric, err = unmarshalMap(rubric); err != nil {
		return nil, assessment.ErrInternal("template %s: %v", tmpl.ID, err)
	}
	if tmpl.Meta, err = unmarshalMap(meta); err != nil {
		return nil, assessment.ErrInternal("template %s: %v", tmpl.ID, err)
	}
	return &tmpl, nil
}
