package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pulsehq/insight-engine/internal/database/models"
	"github.com/pulsehq/insight-engine/internal/database/repositories"
)

// NotificationTemplateRepository implements repositories.NotificationTemplateRepository
type NotificationTemplateRepository struct {
	db *sqlx.DB
}

// NewNotificationTemplateRepository creates a new NotificationTemplateRepository
func NewNotificationTemplateRepository(db *sqlx.DB) repositories.NotificationTemplateRepository {
	return &NotificationTemplateRepository{db: db}
}

const notificationTemplateColumns = `id, channel_type, subject, body, variables,
	color, icon, use_recipient_name, use_recipient_role, use_branding,
	created_at, updated_at`

func (r *NotificationTemplateRepository) GetAll(ctx context.Context) ([]*models.NotificationTemplate, error) {
	query := fmt.Sprintf(`SELECT %s FROM notification_templates ORDER BY id`, notificationTemplateColumns)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query notification templates: %w", err)
	}
	defer rows.Close()

	var templates []*models.NotificationTemplate
	for rows.Next() {
		template, err := scanNotificationTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification template: %w", err)
		}
		templates = append(templates, template)
	}
	return templates, rows.Err()
}

func (r *NotificationTemplateRepository) GetByID(ctx context.Context, id string) (*models.NotificationTemplate, error) {
	query := fmt.Sprintf(`SELECT %s FROM notification_templates WHERE id = ?`, notificationTemplateColumns)
	row := r.db.QueryRowContext(ctx, query, id)
	template, err := scanNotificationTemplate(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("notification template %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification template: %w", err)
	}
	return template, nil
}

func (r *NotificationTemplateRepository) Upsert(ctx context.Context, template *models.NotificationTemplate) error {
	now := time.Now().UTC()
	if template.CreatedAt.IsZero() {
		template.CreatedAt = now
	}
	template.UpdatedAt = now

	variablesJSON, _ := json.Marshal(template.Variables)

	query := `
		INSERT INTO notification_templates (
			id, channel_type, subject, body, variables, color, icon,
			use_recipient_name, use_recipient_role, use_branding,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			channel_type = excluded.channel_type,
			subject = excluded.subject,
			body = excluded.body,
			variables = excluded.variables,
			color = excluded.color,
			icon = excluded.icon,
			use_recipient_name = excluded.use_recipient_name,
			use_recipient_role = excluded.use_recipient_role,
			use_branding = excluded.use_branding,
			updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		template.ID, template.ChannelType, template.Subject, template.Body,
		variablesJSON, template.Color, template.Icon,
		template.UseRecipientName, template.UseRecipientRole,
		template.UseBranding, template.CreatedAt, template.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert notification template: %w", err)
	}
	return nil
}

func scanNotificationTemplate(row rowScanner) (*models.NotificationTemplate, error) {
	template := &models.NotificationTemplate{}
	var variablesJSON []byte

	err := row.Scan(
		&template.ID, &template.ChannelType, &template.Subject, &template.Body,
		&variablesJSON, &template.Color, &template.Icon,
		&template.UseRecipientName, &template.UseRecipientRole,
		&template.UseBranding, &template.CreatedAt, &template.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	json.Unmarshal(variablesJSON, &template.Variables)
	return template, nil
}
