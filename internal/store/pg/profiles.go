package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tradeboard.org/internal/profile"
)

// ProfileByUserID loads the profile keyed to a provider identity.
func (s *Store) ProfileByUserID(ctx context.Context, userID string) (profile.Profile, error) {
	var (
		p       profile.Profile
		rawRole string
	)
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, email, full_name, role, is_active, created_at, updated_at
		from profiles
		where user_id = $1
	`, userID).Scan(&p.ID, &p.UserID, &p.Email, &p.FullName, &rawRole, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return profile.Profile{}, profile.ErrNotFound
	}
	if err != nil {
		return profile.Profile{}, err
	}
	role, err := profile.ParseRole(rawRole)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("profile %s: %w", p.ID, err)
	}
	p.Role = role
	return p, nil
}

// ListClientsWithProfiles returns every client joined with its owning
// profile, filtered to role = client, ordered by company name.
func (s *Store) ListClientsWithProfiles(ctx context.Context) ([]profile.ClientListing, error) {
	rows, err := s.db.QueryContext(ctx, `
		select c.id, c.profile_id, c.company_name, c.contact_name, c.contact_email,
		       coalesce(c.phone, ''), c.created_at, p.email
		from clients c
		join profiles p on p.id = c.profile_id
		where p.role = 'client'
		order by c.company_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []profile.ClientListing
	for rows.Next() {
		var c profile.ClientListing
		if err := rows.Scan(&c.ID, &c.ProfileID, &c.CompanyName, &c.ContactName,
			&c.ContactEmail, &c.Phone, &c.CreatedAt, &c.AccountEmail); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
