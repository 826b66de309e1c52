package records

import (
	"context"
	"strings"
)

const (
	flagTrue  = "true"
	flagFalse = "false"
)

// IsAuthenticated reports whether the stored flag equals "true".
func (s *Store) IsAuthenticated(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadAuthenticated(ctx)
}

// SetAuthenticated stores the session flag.
func (s *Store) SetAuthenticated(ctx context.Context, authenticated bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeAuthenticated(ctx, authenticated)
}

// CurrentUser returns the profile captured at sign-in, or nil.
func (s *Store) CurrentUser(ctx context.Context) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadCurrentUser(ctx)
}

// SetCurrentUser records user as the current user, merges it into the profile
// and raises the session flag. A user without a region keeps the region
// already on the profile. The persisted profile is returned.
//
// The flag is written last: a failure on the way leaves the client signed out.
func (s *Store) SetCurrentUser(ctx context.Context, user Profile) (Profile, error) {
	if strings.TrimSpace(user.DID) == "" {
		return Profile{}, invalid("did", "must not be empty")
	}
	if !user.Region.Valid() {
		return Profile{}, invalid("region", "must be between 0 and 6")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	patch := PatchFrom(user)
	if user.Region == RegionNone {
		patch.Region = nil
	}
	profile, err := s.mergeProfile(ctx, patch)
	if err != nil {
		return Profile{}, err
	}
	user.Region = profile.Region
	if err := s.writeDocument(ctx, KeyCurrentUser, user); err != nil {
		return Profile{}, s.fail(opSession, "current_user_write_failed", err)
	}
	if err := s.writeAuthenticated(ctx, true); err != nil {
		return Profile{}, err
	}
	s.logger.Info("student signed in")
	return profile, nil
}

// Logout clears the session flag and forgets the current user. The profile
// and every other collection stay in place.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeAuthenticated(ctx, false); err != nil {
		return err
	}
	if err := s.kv.Delete(ctx, s.key(KeyCurrentUser)); err != nil {
		return s.fail(opSession, "current_user_delete_failed", err)
	}
	return nil
}

func (s *Store) loadAuthenticated(ctx context.Context) (bool, error) {
	raw, found, err := s.readRaw(ctx, KeyAuthenticated)
	if err != nil {
		return false, s.fail(opSession, "read_failed", err)
	}
	return found && strings.TrimSpace(string(raw)) == flagTrue, nil
}

func (s *Store) writeAuthenticated(ctx context.Context, authenticated bool) error {
	value := flagFalse
	if authenticated {
		value = flagTrue
	}
	if err := s.kv.Put(ctx, s.key(KeyAuthenticated), []byte(value)); err != nil {
		return s.fail(opSession, "write_failed", err)
	}
	return nil
}

func (s *Store) loadCurrentUser(ctx context.Context) (*Profile, error) {
	var user Profile
	found, err := s.readDocument(ctx, KeyCurrentUser, &user)
	if err != nil {
		return nil, s.fail(opSession, "read_failed", err)
	}
	if !found {
		return nil, nil
	}
	return &user, nil
}
