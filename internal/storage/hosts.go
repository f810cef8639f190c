package storage

import (
	"context"
	"fmt"

	"eve.evalgo.org/db"

	"evalgo.org/dockhand/models"
)

// SaveHost saves a host record. On a revision conflict the existing
// revision is fetched once and the write retried.
func (s *Storage) SaveHost(ctx context.Context, host *models.Host) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if host.Kind == "" {
		host.Kind = models.DocKindHost
	}

	_, err := s.service.SaveGenericDocument(host)
	if err != nil && conflict(err) {
		existing, getErr := s.GetHost(ctx, host.ID)
		if getErr == nil {
			host.Rev = existing.Rev
			_, err = s.service.SaveGenericDocument(host)
		}
	}
	if err != nil {
		return fmt.Errorf("save host %s: %w", host.ID, err)
	}
	return nil
}

// GetHost retrieves a host by ID. Unknown IDs map to NotFound.
func (s *Storage) GetHost(ctx context.Context, id string) (*models.Host, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var host models.Host
	if err := s.service.GetGenericDocument(id, &host); err != nil {
		if notFound(err) {
			return nil, models.NewError(models.KindNotFound, "host %s not registered", id)
		}
		return nil, fmt.Errorf("get host %s: %w", id, err)
	}
	if host.Kind != models.DocKindHost {
		return nil, models.NewError(models.KindNotFound, "host %s not registered", id)
	}
	return &host, nil
}

// ResolveHost implements the connection pool's host registry lookup.
func (s *Storage) ResolveHost(ctx context.Context, hostID string) (*models.Host, error) {
	return s.GetHost(ctx, hostID)
}

// DeleteHost deletes a host by ID and revision.
func (s *Storage) DeleteHost(ctx context.Context, id, rev string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.service.DeleteDocument(id, rev); err != nil {
		if notFound(err) {
			return models.NewError(models.KindNotFound, "host %s not registered", id)
		}
		return fmt.Errorf("delete host %s: %w", id, err)
	}
	return nil
}

// ListHosts retrieves all hosts matching the given filters.
func (s *Storage) ListHosts(ctx context.Context, filters map[string]interface{}) ([]*models.Host, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	qb := db.NewQueryBuilder().
		Where("kind", "$eq", models.DocKindHost)
	for field, value := range filters {
		qb = qb.And().Where(field, "$eq", value)
	}
	query := qb.Build()

	s.debugLog("DEBUG: ListHosts query selector: %+v", query.Selector)

	hosts, err := db.FindTyped[models.Host](s.service, query)
	if err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}

	result := make([]*models.Host, len(hosts))
	for i := range hosts {
		result[i] = &hosts[i]
	}
	return result, nil
}

// FindHostByName returns the host with the given name, or (nil, nil) when
// no host uses it.
func (s *Storage) FindHostByName(ctx context.Context, name string) (*models.Host, error) {
	hosts, err := s.ListHosts(ctx, map[string]interface{}{"name": name})
	if err != nil {
		return nil, err
	}
	if len(hosts) == 0 {
		return nil, nil
	}
	return hosts[0], nil
}
