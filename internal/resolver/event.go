package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// FindOrCreateEvent resolves an adapter-reported event to a canonical
// league or tournament row. If sourceEventID is present, lookup is by
// (source_event_id, source_platform); otherwise by case-insensitive name.
// Type is league if typeHint is "league" or the name contains "league",
// else tournament.
func (r *Resolver) FindOrCreateEvent(ctx context.Context, sourceEventID, eventName, typeHint, sourcePlatform, state string) (*EventRef, error) {
	key := eventCacheKey{sourceEventID: sourceEventID, sourcePlatform: sourcePlatform, name: eventName}
	if cached, ok := r.eventCache[key]; ok {
		return cached, nil
	}

	isLeague := typeHint == "league" || strings.Contains(strings.ToLower(eventName), "league")

	var ref *EventRef
	var err error
	if sourceEventID != "" {
		ref, err = r.lookupEventBySource(ctx, sourceEventID, sourcePlatform, isLeague)
	} else {
		ref, err = r.lookupEventByName(ctx, eventName, isLeague)
	}
	if err != nil {
		return nil, err
	}

	if ref == nil {
		ref, err = r.createEvent(ctx, sourceEventID, eventName, sourcePlatform, state, isLeague)
		if err != nil {
			return nil, err
		}
	}

	r.eventCache[key] = ref
	return ref, nil
}

func (r *Resolver) lookupEventBySource(ctx context.Context, sourceEventID, sourcePlatform string, isLeague bool) (*EventRef, error) {
	table := eventTable(isLeague)
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM `+table+` WHERE source_event_id = $1 AND source_platform = $2`,
		sourceEventID, sourcePlatform,
	).Scan(&id)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup event by source: %w", err)
	}
	return &EventRef{ID: id, IsLeague: isLeague}, nil
}

func (r *Resolver) lookupEventByName(ctx context.Context, name string, isLeague bool) (*EventRef, error) {
	table := eventTable(isLeague)
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM `+table+` WHERE lower(name) = lower($1)`, name).Scan(&id)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup event by name: %w", err)
	}
	return &EventRef{ID: id, IsLeague: isLeague}, nil
}

// createEvent inserts a new league or tournament. Tournaments require
// start_date/end_date; an unknown value is filled with today's date as a
// placeholder, flagged with data_flags=placeholder_dates so downstream
// consumers can distinguish a real date from a stand-in.
func (r *Resolver) createEvent(ctx context.Context, sourceEventID, eventName, sourcePlatform, state string, isLeague bool) (*EventRef, error) {
	seasonID, err := r.currentSeasonID(ctx)
	if err != nil {
		return nil, err
	}

	var id int64
	if isLeague {
		err = r.pool.QueryRow(ctx, `
			INSERT INTO leagues (name, state, season_id, source_event_id, source_platform)
			VALUES ($1,$2,$3,NULLIF($4,''),$5)
			RETURNING id`,
			eventName, nonEmptyOr(state, "Unknown"), seasonID, sourceEventID, sourcePlatform,
		).Scan(&id)
	} else {
		today := time.Now().UTC().Truncate(24 * time.Hour)
		err = r.pool.QueryRow(ctx, `
			INSERT INTO tournaments (name, state, season_id, source_event_id, source_platform, start_date, end_date, data_flags)
			VALUES ($1,$2,$3,NULLIF($4,''),$5,$6,$6,ARRAY['placeholder_dates'])
			RETURNING id`,
			eventName, nonEmptyOr(state, "Unknown"), seasonID, sourceEventID, sourcePlatform, today,
		).Scan(&id)
	}
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return &EventRef{ID: id, IsLeague: isLeague}, nil
}

func (r *Resolver) currentSeasonID(ctx context.Context) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM seasons WHERE is_current LIMIT 1`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("lookup current season: %w", err)
	}
	return id, nil
}

func eventTable(isLeague bool) string {
	if isLeague {
		return "leagues"
	}
	return "tournaments"
}

func nonEmptyOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
