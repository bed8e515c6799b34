package usecases

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"profilehub/internal/audit"
	"profilehub/internal/connections"
	"profilehub/internal/profiles"
	"profilehub/internal/users"
)

// Connect sends a friend request to friendID. The friendship only exists once
// friendID accepts, or immediately when friendID had already asked userID.
func (s *Service) Connect(ctx context.Context, userID, friendID uint) (connections.State, error) {
	db := s.db.WithContext(ctx)
	if userID == friendID {
		err := invalidInput(connections.ErrSelfConnection.Error())
		s.logOutcome("connect", userID, err)
		return "", err
	}
	if _, err := users.FindByID(db, friendID); err != nil {
		s.logOutcome("connect", userID, err, slog.Uint64("friendID", uint64(friendID)))
		return "", err
	}
	state, err := connections.RequestFriendship(db, userID, friendID)
	if err != nil {
		s.logOutcome("connect", userID, err, slog.Uint64("friendID", uint64(friendID)))
		return "", err
	}

	action := audit.ActionConnectionRequested
	if state == connections.StateConnected {
		action = audit.ActionConnectionAdded
	}
	s.record(ctx, userID, action, map[string]any{"friend_id": friendID})
	s.logOutcome("connect", userID, nil,
		slog.Uint64("friendID", uint64(friendID)),
		slog.String("state", string(state)))
	return state, nil
}

// AcceptConnection accepts the pending request requesterID sent to userID.
func (s *Service) AcceptConnection(ctx context.Context, userID, requesterID uint) error {
	if err := connections.Accept(s.db.WithContext(ctx), userID, requesterID); err != nil {
		s.logOutcome("accept_connection", userID, err, slog.Uint64("requesterID", uint64(requesterID)))
		return err
	}
	s.record(ctx, userID, audit.ActionConnectionAdded, map[string]any{"friend_id": requesterID})
	s.logOutcome("accept_connection", userID, nil, slog.Uint64("requesterID", uint64(requesterID)))
	return nil
}

// DeclineConnection rejects the pending request requesterID sent to userID.
func (s *Service) DeclineConnection(ctx context.Context, userID, requesterID uint) error {
	if err := connections.Decline(s.db.WithContext(ctx), userID, requesterID); err != nil {
		s.logOutcome("decline_connection", userID, err, slog.Uint64("requesterID", uint64(requesterID)))
		return err
	}
	s.record(ctx, userID, audit.ActionConnectionDeclined, map[string]any{"requester_id": requesterID})
	s.logOutcome("decline_connection", userID, nil, slog.Uint64("requesterID", uint64(requesterID)))
	return nil
}

// ListConnectionRequests returns the requests waiting for userID to answer.
func (s *Service) ListConnectionRequests(ctx context.Context, userID uint) ([]connections.Request, error) {
	reqs, err := connections.ListIncoming(s.db.WithContext(ctx), userID)
	if err != nil {
		s.logOutcome("list_connection_requests", userID, err)
		return nil, err
	}
	return reqs, nil
}

// Disconnect removes a friendship in both directions and withdraws pending requests.
func (s *Service) Disconnect(ctx context.Context, userID, friendID uint) error {
	if err := connections.Remove(s.db.WithContext(ctx), userID, friendID); err != nil {
		s.logOutcome("disconnect", userID, err, slog.Uint64("friendID", uint64(friendID)))
		return err
	}
	s.record(ctx, userID, audit.ActionConnectionRemoved, map[string]any{"friend_id": friendID})
	s.logOutcome("disconnect", userID, nil, slog.Uint64("friendID", uint64(friendID)))
	return nil
}

// ListConnections returns the profiles of the user's friends as a friend sees them.
// Friends who never opened their profile are skipped.
func (s *Service) ListConnections(ctx context.Context, userID uint) ([]*profiles.Profile, error) {
	ids, err := connections.ListFriends(s.db.WithContext(ctx), userID)
	if err != nil {
		s.logOutcome("list_connections", userID, err)
		return nil, err
	}

	out := make([]*profiles.Profile, 0, len(ids))
	for _, id := range ids {
		p, err := s.repo.FindByUserID(ctx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, profiles.View(p, profiles.RelationFriend))
	}
	return out, nil
}
