package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/elgiborsolution/bri-payments-go/internal/models"
	"github.com/elgiborsolution/bri-payments-go/internal/repository"
	"github.com/elgiborsolution/bri-payments-go/internal/utils"
)

// TenantService manages bri_clients rows through the admin API. Every
// mutation invalidates the resolver cache for the affected tenant.
type TenantService struct {
	repo     *repository.TenantRepository
	resolver *Resolver
}

// NewTenantService creates a TenantService.
func NewTenantService(repo *repository.TenantRepository, resolver *Resolver) *TenantService {
	return &TenantService{repo: repo, resolver: resolver}
}

// List returns all registered tenants.
func (s *TenantService) List(ctx context.Context) ([]*models.Tenant, error) {
	return s.repo.List()
}

// Get returns one tenant by its public identifier.
func (s *TenantService) Get(ctx context.Context, tenantID string) (*models.Tenant, error) {
	t, err := s.repo.GetByTenantID(tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrTenantNotFound
		}
		return nil, err
	}
	return t, nil
}

// Create registers a new tenant credential record.
func (s *TenantService) Create(ctx context.Context, t *models.Tenant) error {
	if t.TenantID == "" || t.ClientID == "" || t.ClientSecret == "" {
		return &utils.ValidationError{Field: "tenant", Reason: "tenantId, clientId and clientSecret are required"}
	}
	if err := s.repo.Create(t); err != nil {
		return err
	}
	s.resolver.Invalidate(ctx, t.TenantID)
	log.Info().Str("tenant_id", t.TenantID).Msg("Tenant created")
	return nil
}

// Update replaces the credentials of an existing tenant.
func (s *TenantService) Update(ctx context.Context, tenantID string, t *models.Tenant) error {
	existing, err := s.Get(ctx, tenantID)
	if err != nil {
		return err
	}
	t.ID = existing.ID
	t.TenantID = tenantID
	if err := s.repo.Update(t); err != nil {
		return err
	}
	s.resolver.Invalidate(ctx, tenantID)
	log.Info().Str("tenant_id", tenantID).Msg("Tenant updated")
	return nil
}

// Delete removes a tenant credential record.
func (s *TenantService) Delete(ctx context.Context, tenantID string) error {
	existing, err := s.Get(ctx, tenantID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(existing.ID); err != nil {
		return err
	}
	s.resolver.Invalidate(ctx, tenantID)
	log.Info().Str("tenant_id", tenantID).Msg("Tenant deleted")
	return nil
}
