package session

import (
	"context"
	"fmt"
)

// IsBlockedUser reports whether the fiscal code is on the blocklist. It is
// consulted before creating a session and before honoring any session-scoped
// request; blocking a user mid-session takes effect on the next check rather
// than by evicting already-issued tokens.
func (s *Store) IsBlockedUser(ctx context.Context, fiscalCode string) (blocked bool, err error) {
	if err := s.begin(); err != nil {
		return false, err
	}
	defer func() { s.end("is_blocked", err) }()

	blocked, err = s.replica.SIsMember(ctx, blockedUsersKey, fiscalCode).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return blocked, nil
}

// BlockUser adds the fiscal code to the blocklist. Membership is independent
// of any session's TTL.
func (s *Store) BlockUser(ctx context.Context, fiscalCode string) (err error) {
	if err := s.begin(); err != nil {
		return err
	}
	defer func() { s.end("block", err) }()

	if err := s.primary.SAdd(ctx, blockedUsersKey, fiscalCode).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	return nil
}

// UnblockUser removes the fiscal code from the blocklist.
func (s *Store) UnblockUser(ctx context.Context, fiscalCode string) (err error) {
	if err := s.begin(); err != nil {
		return err
	}
	defer func() { s.end("unblock", err) }()

	if err := s.primary.SRem(ctx, blockedUsersKey, fiscalCode).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	return nil
}
