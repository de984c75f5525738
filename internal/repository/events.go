package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/event-planner/internal/attendance"
	"github.com/Shivanand-hulikatti/event-planner/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

const eventSelect = `
SELECT e.id::text, e.title, e.description, e.category, e.city, e.longitude, e.latitude, e.address,
       e.start_time, e.end_time, e.max_attendees, e.current_attendees, e.is_published, e.is_cancelled,
       e.created_at, e.updated_at,
       u.id::text, u.display_name, u.email, u.city
  FROM events e
  JOIN users u ON u.id = e.created_by`

// EventRepository handles persistence for events and their attendance roster.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

var _ attendance.Store = (*EventRepository)(nil)

// Create inserts a new event and returns it with the owner profile joined.
func (r *EventRepository) Create(ctx context.Context, ev *model.Event) (*model.Event, error) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	ev.CreatedAt, ev.UpdatedAt = now, now

	_, err := r.db.Exec(ctx,
		`INSERT INTO events (id, title, description, category, city, longitude, latitude, address,
		                     start_time, end_time, max_attendees, current_attendees, created_by,
		                     is_published, is_cancelled, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		ev.ID, ev.Title, ev.Description, string(ev.Category), ev.City, ev.Location.Longitude(), ev.Location.Latitude(),
		ev.Address, ev.StartTime, ev.EndTime, ev.MaxAttendees, ev.CurrentAttendees, ev.CreatedBy.ID,
		ev.IsPublished, ev.IsCancelled, ev.CreatedAt, ev.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return r.GetByID(ctx, ev.ID)
}

// GetByID returns a single event with its attendance records, or NotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	return getEvent(ctx, r.db, id, false)
}

// IsRegistered reports whether userID holds a registered record for eventID.
func (r *EventRepository) IsRegistered(ctx context.Context, eventID, userID string) (bool, error) {
	if !validID(eventID) || !validID(userID) {
		return false, nil
	}
	var registered bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM event_attendees
		    WHERE event_id = $1 AND user_id = $2 AND status = 'registered')`,
		eventID, userID,
	).Scan(&registered)
	if err != nil {
		return false, fmt.Errorf("check registration: %w", err)
	}
	return registered, nil
}

// List returns published, non-cancelled events matching f, ordered by start
// time, plus the total number of matches.
func (r *EventRepository) List(ctx context.Context, f model.EventFilter) ([]model.Event, int, error) {
	conds := []string{"e.is_published", "NOT e.is_cancelled"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.City != nil {
		conds = append(conds, `e.city ILIKE `+arg(likePattern(*f.City))+` ESCAPE '\'`)
	}
	if f.Category != nil {
		conds = append(conds, "e.category = "+arg(string(*f.Category)))
	}
	if f.Upcoming {
		conds = append(conds, "e.start_time >= "+arg(f.Now))
	}
	if f.Search != nil {
		p := arg(likePattern(*f.Search))
		conds = append(conds, `(e.title ILIKE `+p+` ESCAPE '\' OR e.description ILIKE `+p+` ESCAPE '\')`)
	}

	where := " WHERE " + strings.Join(conds, " AND ")
	return r.page(ctx, where, "e.start_time ASC, e.id", args, f.Page)
}

// ListByOwner returns every event created by ownerID regardless of state,
// newest first.
func (r *EventRepository) ListByOwner(ctx context.Context, ownerID string, p model.Page) ([]model.Event, int, error) {
	if !validID(ownerID) {
		return []model.Event{}, 0, nil
	}
	return r.page(ctx, " WHERE e.created_by = $1", "e.created_at DESC, e.id", []any{ownerID}, p)
}

// ListRegistered returns non-cancelled events userID is registered for,
// ordered by start time.
func (r *EventRepository) ListRegistered(ctx context.Context, userID string, p model.Page) ([]model.Event, int, error) {
	if !validID(userID) {
		return []model.Event{}, 0, nil
	}
	where := ` WHERE NOT e.is_cancelled AND EXISTS (
	   SELECT 1 FROM event_attendees a
	    WHERE a.event_id = e.id AND a.user_id = $1 AND a.status = 'registered')`
	return r.page(ctx, where, "e.start_time ASC, e.id", []any{userID}, p)
}

// page runs the count and the page query concurrently.
func (r *EventRepository) page(ctx context.Context, where, order string, args []any, p model.Page) ([]model.Event, int, error) {
	var (
		events []model.Event
		total  int
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := r.db.QueryRow(gctx, `SELECT count(*) FROM events e`+where, args...).Scan(&total)
		if err != nil {
			return fmt.Errorf("count events: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		n := len(args)
		pageArgs := append(append([]any{}, args...), p.Limit, p.Offset())
		sql := eventSelect + where +
			" ORDER BY " + order +
			" LIMIT $" + strconv.Itoa(n+1) + " OFFSET $" + strconv.Itoa(n+2)

		rows, err := r.db.Query(gctx, sql, pageArgs...)
		if err != nil {
			return fmt.Errorf("list events: %w", err)
		}
		defer rows.Close()

		events = []model.Event{}
		for rows.Next() {
			ev, err := scanEvent(rows)
			if err != nil {
				return err
			}
			events = append(events, *ev)
		}
		return rows.Err()
	})

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// Update applies fn to the locked event and persists its mutable fields.
// Owner, counters and attendance records are not written here except
// current_attendees, which fn may lower when capacity shrinks.
func (r *EventRepository) Update(ctx context.Context, id string, fn func(ev *model.Event) error) (*model.Event, error) {
	var out *model.Event
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		ev, err := getEvent(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE events
			    SET title = $2, description = $3, category = $4, city = $5, longitude = $6, latitude = $7,
			        address = $8, start_time = $9, end_time = $10, max_attendees = $11,
			        current_attendees = $12, is_published = $13, is_cancelled = $14, updated_at = now()
			  WHERE id = $1`,
			ev.ID, ev.Title, ev.Description, string(ev.Category), ev.City, ev.Location.Longitude(), ev.Location.Latitude(),
			ev.Address, ev.StartTime, ev.EndTime, ev.MaxAttendees, ev.CurrentAttendees, ev.IsPublished, ev.IsCancelled,
		)
		if err != nil {
			return fmt.Errorf("update event: %w", err)
		}

		out, err = getEvent(ctx, tx, id, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WithAttendance performs a concurrency-safe attendance change inside one
// transaction.
//
// SELECT ... FOR UPDATE on the event row serialises every register and
// unregister for that event: a second transaction blocks on the lock until
// the first commits, then reads the committed counter. The capacity check,
// the record upsert and the counter write therefore see and produce one
// consistent state, and a failure before COMMIT leaves nothing behind.
func (r *EventRepository) WithAttendance(ctx context.Context, eventID, userID string, fn attendance.MutateFunc) (*model.Event, error) {
	if !validID(userID) {
		return nil, errUserNotFound
	}

	var out *model.Event
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		ev, err := lockEventRow(ctx, tx, eventID)
		if err != nil {
			return err
		}

		var rec *model.Attendance
		var existing model.Attendance
		var status string
		err = tx.QueryRow(ctx,
			`SELECT user_id::text, status, registered_at
			   FROM event_attendees
			  WHERE event_id = $1 AND user_id = $2
			  FOR UPDATE`,
			eventID, userID,
		).Scan(&existing.UserID, &status, &existing.RegisteredAt)
		switch {
		case err == nil:
			existing.Status = model.AttendanceStatus(status)
			rec = &existing
		case !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("lock attendance: %w", err)
		}

		rec, err = fn(ev, rec)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO event_attendees (event_id, user_id, status, registered_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (event_id, user_id)
			 DO UPDATE SET status = EXCLUDED.status, registered_at = EXCLUDED.registered_at`,
			eventID, userID, string(rec.Status), rec.RegisteredAt,
		)
		if err != nil {
			return fmt.Errorf("upsert attendance: %w", err)
		}

		_, err = tx.Exec(ctx,
			`UPDATE events SET current_attendees = $2, updated_at = now() WHERE id = $1`,
			eventID, ev.CurrentAttendees,
		)
		if err != nil {
			return fmt.Errorf("update attendee count: %w", err)
		}

		out, err = getEvent(ctx, tx, eventID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// lockEventRow loads the event row without its roster and holds FOR UPDATE.
func lockEventRow(ctx context.Context, q querier, id string) (*model.Event, error) {
	if !validID(id) {
		return nil, errEventNotFound
	}
	ev, err := scanEvent(q.QueryRow(ctx, eventSelect+` WHERE e.id = $1 FOR UPDATE OF e`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errEventNotFound
		}
		return nil, err
	}
	return ev, nil
}

// getEvent loads an event with its attendance records in roster order.
func getEvent(ctx context.Context, q querier, id string, lock bool) (*model.Event, error) {
	if !validID(id) {
		return nil, errEventNotFound
	}
	sql := eventSelect + ` WHERE e.id = $1`
	if lock {
		sql += ` FOR UPDATE OF e`
	}
	ev, err := scanEvent(q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errEventNotFound
		}
		return nil, err
	}

	rows, err := q.Query(ctx,
		`SELECT user_id::text, status, registered_at
		   FROM event_attendees
		  WHERE event_id = $1
		  ORDER BY seq`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	defer rows.Close()

	ev.Attendees = []model.Attendance{}
	for rows.Next() {
		var a model.Attendance
		var status string
		if err := rows.Scan(&a.UserID, &status, &a.RegisteredAt); err != nil {
			return nil, fmt.Errorf("scan attendee: %w", err)
		}
		a.Status = model.AttendanceStatus(status)
		ev.Attendees = append(ev.Attendees, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	return ev, nil
}

func scanEvent(row pgx.Row) (*model.Event, error) {
	var (
		e         model.Event
		category  string
		lng, lat  float64
		maxAttend *int32
	)
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &category, &e.City, &lng, &lat, &e.Address,
		&e.StartTime, &e.EndTime, &maxAttend, &e.CurrentAttendees, &e.IsPublished, &e.IsCancelled,
		&e.CreatedAt, &e.UpdatedAt,
		&e.CreatedBy.ID, &e.CreatedBy.DisplayName, &e.CreatedBy.Email, &e.CreatedBy.City,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}
	e.Category = model.Category(category)
	e.Location = model.NewPoint(lng, lat)
	if maxAttend != nil {
		n := int(*maxAttend)
		e.MaxAttendees = &n
	}
	return &e, nil
}
