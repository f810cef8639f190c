package storage

import (
	"context"
	"fmt"

	"eve.evalgo.org/db"

	"evalgo.org/dockhand/models"
)

// SaveStack saves a stack record. On a revision conflict the existing
// revision is fetched once and the write retried.
func (s *Storage) SaveStack(ctx context.Context, stack *models.Stack) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if stack.Kind == "" {
		stack.Kind = models.DocKindStack
	}

	_, err := s.service.SaveGenericDocument(stack)
	if err != nil && conflict(err) {
		existing, getErr := s.LoadStack(ctx, stack.ID)
		if getErr == nil {
			stack.Rev = existing.Rev
			_, err = s.service.SaveGenericDocument(stack)
		}
	}
	if err != nil {
		return fmt.Errorf("save stack %s: %w", stack.ID, err)
	}
	return nil
}

// LoadStack retrieves a stack by ID. Unknown IDs map to NotFound.
func (s *Storage) LoadStack(ctx context.Context, id string) (*models.Stack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var stack models.Stack
	if err := s.service.GetGenericDocument(id, &stack); err != nil {
		if notFound(err) {
			return nil, models.NewError(models.KindNotFound, "stack %s not registered", id)
		}
		return nil, fmt.Errorf("get stack %s: %w", id, err)
	}
	if stack.Kind != models.DocKindStack {
		return nil, models.NewError(models.KindNotFound, "stack %s not registered", id)
	}
	return &stack, nil
}

// DeleteStack deletes a stack record by ID and revision. Running containers
// are left alone; teardown is an explicit down.
func (s *Storage) DeleteStack(ctx context.Context, id, rev string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.service.DeleteDocument(id, rev); err != nil {
		if notFound(err) {
			return models.NewError(models.KindNotFound, "stack %s not registered", id)
		}
		return fmt.Errorf("delete stack %s: %w", id, err)
	}
	return nil
}

// ListStacks retrieves all stacks matching the given filters.
func (s *Storage) ListStacks(ctx context.Context, filters map[string]interface{}) ([]*models.Stack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	qb := db.NewQueryBuilder().
		Where("kind", "$eq", models.DocKindStack)
	for field, value := range filters {
		qb = qb.And().Where(field, "$eq", value)
	}
	query := qb.Build()

	s.debugLog("DEBUG: ListStacks query selector: %+v", query.Selector)

	stacks, err := db.FindTyped[models.Stack](s.service, query)
	if err != nil {
		return nil, fmt.Errorf("list stacks: %w", err)
	}

	result := make([]*models.Stack, len(stacks))
	for i := range stacks {
		result[i] = &stacks[i]
	}
	return result, nil
}

// ListStacksByHost retrieves all stacks registered on a host.
func (s *Storage) ListStacksByHost(ctx context.Context, hostID string) ([]*models.Stack, error) {
	return s.ListStacks(ctx, map[string]interface{}{"hostId": hostID})
}

// FindStackByProject returns the stack using the project name on the host,
// or (nil, nil) when the name is free.
func (s *Storage) FindStackByProject(ctx context.Context, hostID, project string) (*models.Stack, error) {
	stacks, err := s.ListStacks(ctx, map[string]interface{}{
		"hostId":  hostID,
		"project": project,
	})
	if err != nil {
		return nil, err
	}
	if len(stacks) == 0 {
		return nil, nil
	}
	return stacks[0], nil
}
