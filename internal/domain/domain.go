package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// --- Model types ---

// Direction is a vote direction.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Valid reports whether the direction is one of up/down.
func (d Direction) Valid() bool {
	return d == DirectionUp || d == DirectionDown
}

// User is an authenticated identity, persisted in PostgreSQL.
type User struct {
	ID          uuid.UUID `db:"id"`
	Email       string    `db:"email"`
	DisplayName string    `db:"display_name"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Restaurant is a proposed restaurant with its current vote tallies.
// Tallies are recomputed from the vote ledgers on every read, never cached.
type Restaurant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Upvotes   int64     `json:"upvotes"`
	Downvotes int64     `json:"downvotes"`

	// The viewer's own contributions to this restaurant's ledgers.
	// Zero when the list is fetched without an identity.
	UserUpvotes   int64 `json:"userUpvotes"`
	UserDownvotes int64 `json:"userDownvotes"`

	CreatedBy uuid.UUID `json:"-"`
	CreatedAt time.Time `json:"-"`
}

// NetScore is the restaurant's upvotes minus downvotes.
func (r Restaurant) NetScore() int64 {
	return r.Upvotes - r.Downvotes
}

// Budget is a user's running vote totals across all restaurants.
type Budget struct {
	Upvotes   int64 `json:"upvotes"`
	Downvotes int64 `json:"downvotes"`
}

// Listing is the read-side view: all restaurants plus the viewer's budget.
type Listing struct {
	Restaurants []Restaurant `json:"restaurants"`
	Budget      Budget       `json:"budget"`
}

// ChangeEvent is broadcast to connected clients after a successful mutation.
// Origin carries the connection id of the client that caused the change so
// its own listener can skip the redundant refetch.
type ChangeEvent struct {
	Event   string `json:"event"`
	Message string `json:"message"`
	Origin  string `json:"origin,omitempty"`
}

const ChangeEventName = "restaurants-updated"

// --- Interfaces ---

// VoteStore abstracts the Redis-backed counter store. Cast and Retract are
// atomic units: the quota/ledger check and the paired increment of the
// ledger entry and the budget counter commit together or not at all.
type VoteStore interface {
	// CastVote increments the (restaurant, direction, user) ledger entry and
	// the user's budget counter by one, unless the budget is already at cap.
	// Returns ErrQuotaExceeded (with no mutation) when the cap is reached.
	CastVote(ctx context.Context, restaurantID uuid.UUID, userID uuid.UUID, dir Direction, cap int64) (Budget, error)

	// RetractVote decrements both counters by one. Returns ErrNothingToRetract
	// (with no mutation) when the ledger entry is zero or absent.
	RetractVote(ctx context.Context, restaurantID uuid.UUID, userID uuid.UUID, dir Direction) (Budget, error)

	CreateRestaurant(ctx context.Context, r Restaurant) error
	ListRestaurants(ctx context.Context, viewerID uuid.UUID) ([]Restaurant, error)
	GetBudget(ctx context.Context, userID uuid.UUID) (Budget, error)

	// ResetVotes wipes all vote ledgers and budgets. Development only.
	ResetVotes(ctx context.Context) (int64, error)
}

// EventPublisher pushes change notifications to connected clients.
// Fire-and-forget: callers treat failures as non-fatal.
type EventPublisher interface {
	PublishChanged(ctx context.Context, event ChangeEvent) error
}

// UserRepository abstracts user persistence.
type UserRepository interface {
	Upsert(ctx context.Context, email, displayName string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
}
