package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/team-channel/internal/channel"
	"github.com/example/team-channel/internal/persistence"
)

// IsTeamMember reports whether the user belongs to the team.
func (s *Store) IsTeamMember(ctx context.Context, teamID, userID string) (bool, error) {
	_, err := s.TeamRole(ctx, teamID, userID)
	if errors.Is(err, persistence.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// TeamRole returns the member's role, or ErrNotFound for non-members.
func (s *Store) TeamRole(ctx context.Context, teamID, userID string) (channel.TeamRole, error) {
	var role channel.TeamRole
	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		role, err = teamRoleTx(tx, teamID, userID)
		return err
	})
	if err != nil {
		return "", err
	}
	return role, nil
}

// AddTeam registers a team.
func (s *Store) AddTeam(ctx context.Context, id, name string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO teams (id, name) VALUES (?, ?)`, id, name)
	return mapError(err)
}

// AddUser registers a user.
func (s *Store) AddUser(ctx context.Context, id, displayName string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (id, display_name) VALUES (?, ?)`, id, displayName)
	return mapError(err)
}

// AddTeamMember enrolls a user in a team with the given role.
func (s *Store) AddTeamMember(ctx context.Context, teamID, userID string, role channel.TeamRole) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO team_members (team_id, user_id, role) VALUES (?, ?, ?)`,
		teamID, userID, string(role))
	return mapError(err)
}

func teamRoleTx(tx *sql.Tx, teamID, userID string) (channel.TeamRole, error) {
	var role string
	err := tx.QueryRow(`
		SELECT role
		FROM team_members
		WHERE team_id = ? AND user_id = ?`,
		teamID, userID,
	).Scan(&role)
	if err != nil {
		return "", mapError(err)
	}
	return channel.TeamRole(role), nil
}
