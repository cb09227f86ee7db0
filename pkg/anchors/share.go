package anchors

import (
	"context"
	"fmt"

	"github.com/germanamz/mmpa/pkg/events"
)

// Sharer publishes an exported anchor to a community service and returns the
// community ID assigned to it.
type Sharer interface {
	Share(ctx context.Context, exported []byte) (communityID string, err error)
}

// SharerFunc adapts a function to the Sharer interface.
type SharerFunc func(ctx context.Context, exported []byte) (string, error)

// Share calls f(ctx, exported).
func (f SharerFunc) Share(ctx context.Context, exported []byte) (string, error) {
	return f(ctx, exported)
}

// Share exports the anchor and hands it to sharer. On success the anchor is
// marked shared and records the returned community ID.
func (s *Store) Share(ctx context.Context, id string, sharer Sharer) (Anchor, error) {
	data, ok := s.ExportOne(id)
	if !ok {
		return Anchor{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	communityID, err := sharer.Share(ctx, data)
	if err != nil {
		return Anchor{}, fmt.Errorf("anchors: share %s: %w", id, err)
	}

	s.mu.Lock()
	a, ok := s.anchors[id]
	if !ok {
		s.mu.Unlock()
		return Anchor{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	a.IsShared = true
	a.CommunityID = &communityID
	out := a.Clone()
	s.mu.Unlock()

	s.opts.Logger.Info("anchors: shared", "id", id, "community_id", communityID)
	s.opts.Events.Publish(events.Event{Kind: events.AnchorShared, Subject: id, Data: communityID})
	s.persist()

	return out, nil
}
