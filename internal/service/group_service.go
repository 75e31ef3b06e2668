// Package service implements the business logic on top of storage, keeping
// transport handlers thin. Services own the side effects a mutation implies:
// persisting through the store and signaling live observers through the
// notifier.
package service

import (
	"context"
	"log/slog"

	"github.com/tabsplit/tabsplit/internal/models"
	"github.com/tabsplit/tabsplit/internal/notifier"
	"github.com/tabsplit/tabsplit/internal/storage"
)

// GroupService handles group lifecycle and membership.
type GroupService struct {
	store    storage.Store
	notifier *notifier.Notifier
}

// NewGroupService creates a group service.
func NewGroupService(store storage.Store, n *notifier.Notifier) *GroupService {
	return &GroupService{store: store, notifier: n}
}

// Create makes a new group with an optional initial people list.
func (s *GroupService) Create(ctx context.Context, name string, people []string) (*models.Group, error) {
	group, err := s.store.CreateGroup(ctx, name, people)
	if err != nil {
		return nil, err
	}
	slog.Info("group created", "group_id", group.ID, "slug", group.Slug, "people", len(group.People))
	return group, nil
}

// Get retrieves a group by internal ID.
func (s *GroupService) Get(ctx context.Context, groupID string) (*models.Group, error) {
	return s.store.GetGroup(ctx, groupID)
}

// GetBySlug retrieves a group by its public slug.
func (s *GroupService) GetBySlug(ctx context.Context, slug string) (*models.Group, error) {
	return s.store.GetGroupBySlug(ctx, slug)
}

// List retrieves all groups.
func (s *GroupService) List(ctx context.Context) ([]models.Group, error) {
	return s.store.ListGroups(ctx)
}

// Update applies a partial update to a group. Rename and people replacement
// land in one store transaction, so a half-applied update is never visible.
// People removed here disappear from every roster and assignment they were
// part of.
func (s *GroupService) Update(ctx context.Context, groupID string, in models.GroupUpdate) (*models.Group, error) {
	if in.Name == nil && in.People == nil {
		return s.store.GetGroup(ctx, groupID)
	}
	group, err := s.store.UpdateGroup(ctx, groupID, in)
	if err != nil {
		return nil, err
	}
	slog.Info("group updated", "group_id", groupID, "people", len(group.People))
	s.notifier.Changed(groupID, notifier.Event{Type: notifier.EventRefreshGroup})
	return group, nil
}

// Delete removes a group and everything it owns. Observers still connected
// get one final refresh hint; their next fetch will 404 and the client can
// close out.
func (s *GroupService) Delete(ctx context.Context, groupID string) error {
	if err := s.store.DeleteGroup(ctx, groupID); err != nil {
		return err
	}
	slog.Info("group deleted", "group_id", groupID)
	s.notifier.Changed(groupID, notifier.Event{Type: notifier.EventRefreshGroup})
	return nil
}

// Version returns the group's current version (updated_at, unix nanoseconds).
func (s *GroupService) Version(ctx context.Context, groupID string) (int64, error) {
	return s.store.GroupVersion(ctx, groupID)
}
