package resolver

import (
	"context"
	"fmt"

	"github.com/pitchsync/pitchsync/internal/nameparse"
)

// FindOrCreateClub follows the same find-or-create-on-canonical-name shape
// as teams and events. The validation pipeline does not call it, and
// TransformBundle has no club-name function.
func (r *Resolver) FindOrCreateClub(ctx context.Context, rawName string) (*Club, error) {
	canonical := nameparse.Canonicalize(rawName)
	if canonical == "" {
		return nil, nil
	}
	if cached, ok := r.clubCache[canonical]; ok {
		return cached, nil
	}

	club, err := r.lookupClub(ctx, canonical)
	if err != nil {
		return nil, err
	}
	if club == nil {
		club, err = r.createClub(ctx, rawName, canonical)
		if err != nil {
			if isUniqueViolation(err) {
				club, err = r.lookupClub(ctx, canonical)
				if err != nil {
					return nil, err
				}
			} else {
				return nil, err
			}
		}
	}

	r.clubCache[canonical] = club
	return club, nil
}

func (r *Resolver) lookupClub(ctx context.Context, canonicalName string) (*Club, error) {
	var c Club
	err := r.pool.QueryRow(ctx, `SELECT id, display_name, canonical_name FROM clubs WHERE canonical_name = $1`, canonicalName).
		Scan(&c.ID, &c.DisplayName, &c.CanonicalName)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup club: %w", err)
	}
	return &c, nil
}

func (r *Resolver) createClub(ctx context.Context, displayName, canonicalName string) (*Club, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO clubs (display_name, canonical_name) VALUES ($1,$2) RETURNING id`,
		displayName, canonicalName,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create club: %w", err)
	}
	return &Club{ID: id, DisplayName: displayName, CanonicalName: canonicalName}, nil
}
