package models

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Repo bundles the tenant lookups: organizations, widget settings and
// operator accounts.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) GetOrganization(ctx context.Context, organizationID string) (*Organization, error) {
	var org Organization
	if err := r.db.WithContext(ctx).First(&org, "id = ?", organizationID).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *Repo) GetSettings(ctx context.Context, organizationID string) (*WidgetSettings, error) {
	var ws WidgetSettings
	if err := r.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		First(&ws).Error; err != nil {
		return nil, err
	}
	return &ws, nil
}

// GreetingFor implements the orchestrator's Settings dependency.
// Organizations without settings simply have no greeting.
func (r *Repo) GreetingFor(ctx context.Context, organizationID string) (string, error) {
	ws, err := r.GetSettings(ctx, organizationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return ws.GreetingMessage, nil
}

func (r *Repo) GetOperatorByEmail(ctx context.Context, email string) (*Operator, error) {
	var op Operator
	if err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&op).Error; err != nil {
		return nil, err
	}
	return &op, nil
}
