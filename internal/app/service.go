package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/Gwagwa94/Votooveto/internal/domain"
	"github.com/Gwagwa94/Votooveto/internal/metrics"
)

// ErrInvalidName rejects blank restaurant names.
var ErrInvalidName = errors.New("restaurant name is required")

// publishTimeout bounds the best-effort notification so a slow broker can
// never hold a request open. The mutation has already committed by then.
const publishTimeout = 2 * time.Second

// Caps holds the per-user vote budget limits.
type Caps struct {
	Upvotes   int64
	Downvotes int64
}

func (c Caps) forDirection(dir domain.Direction) int64 {
	if dir == domain.DirectionUp {
		return c.Upvotes
	}
	return c.Downvotes
}

// Service implements the vote accounting rules on top of the counter store.
type Service struct {
	store     domain.VoteStore
	publisher domain.EventPublisher
	clock     clockwork.Clock
	caps      Caps
}

func NewService(store domain.VoteStore, publisher domain.EventPublisher, clock clockwork.Clock, caps Caps) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		clock:     clock,
		caps:      caps,
	}
}

// Caps returns the configured per-user vote limits.
func (s *Service) Caps() Caps {
	return s.caps
}

// List returns all restaurants with tallies summed from the vote ledgers,
// plus the viewer's budget. viewerID may be uuid.Nil for anonymous viewers,
// who get a zero budget and no per-restaurant contributions.
//
// Ordering: net score descending; ties break by ascending id so repeated
// calls with no intervening mutation return an identical ordering.
func (s *Service) List(ctx context.Context, viewerID uuid.UUID) (*domain.Listing, error) {
	restaurants, err := s.store.ListRestaurants(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list restaurants: %w", err)
	}

	sort.Slice(restaurants, func(i, j int) bool {
		ni, nj := restaurants[i].NetScore(), restaurants[j].NetScore()
		if ni != nj {
			return ni > nj
		}
		return restaurants[i].ID.String() < restaurants[j].ID.String()
	})

	var budget domain.Budget
	if viewerID != uuid.Nil {
		budget, err = s.store.GetBudget(ctx, viewerID)
		if err != nil {
			return nil, fmt.Errorf("failed to load viewer budget: %w", err)
		}
	}

	return &domain.Listing{Restaurants: restaurants, Budget: budget}, nil
}

// Create stores a new restaurant with zero tallies and notifies clients.
func (s *Service) Create(ctx context.Context, actorID uuid.UUID, name, url string) (*domain.Restaurant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}

	restaurant := domain.Restaurant{
		ID:        uuid.New(),
		Name:      name,
		URL:       strings.TrimSpace(url),
		CreatedBy: actorID,
		CreatedAt: s.clock.Now(),
	}

	if err := s.store.CreateRestaurant(ctx, restaurant); err != nil {
		return nil, fmt.Errorf("failed to create restaurant: %w", err)
	}
	metrics.RestaurantsCreatedTotal.Inc()

	s.notify(domain.ChangeEvent{
		Event:   domain.ChangeEventName,
		Message: fmt.Sprintf("New restaurant added: %s", restaurant.Name),
	})

	return &restaurant, nil
}

// Vote casts (delta +1) or retracts (delta -1) a single vote unit. The
// ledger entry and the budget counter move together as one atomic unit in
// the store; quota and retractability checks happen inside that unit, so
// concurrent requests cannot race past the caps.
//
// Returns the post-mutation budget. origin, when non-empty, names the
// connection that triggered the change so its own listener is skipped.
func (s *Service) Vote(ctx context.Context, actorID, restaurantID uuid.UUID, dir domain.Direction, delta int, origin string) (domain.Budget, error) {
	var (
		budget domain.Budget
		err    error
	)
	switch delta {
	case 1:
		budget, err = s.store.CastVote(ctx, restaurantID, actorID, dir, s.caps.forDirection(dir))
	case -1:
		budget, err = s.store.RetractVote(ctx, restaurantID, actorID, dir)
	default:
		return domain.Budget{}, fmt.Errorf("delta must be +1 or -1, got %d", delta)
	}

	if err != nil {
		metrics.VotesTotal.WithLabelValues(string(dir), voteOutcome(err)).Inc()
		return budget, err
	}
	metrics.VotesTotal.WithLabelValues(string(dir), "accepted").Inc()

	s.notify(domain.ChangeEvent{
		Event:   domain.ChangeEventName,
		Message: fmt.Sprintf("Vote updated for %s", restaurantID),
		Origin:  origin,
	})

	return budget, nil
}

// ResetVotes wipes vote state. The HTTP layer restricts this to development.
func (s *Service) ResetVotes(ctx context.Context) (int64, error) {
	deleted, err := s.store.ResetVotes(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to reset votes: %w", err)
	}

	s.notify(domain.ChangeEvent{
		Event:   domain.ChangeEventName,
		Message: "Vote state reset",
	})

	return deleted, nil
}

// notify publishes a change event. Failures are logged and swallowed: the
// mutation already committed, clients recover on their next fetch.
func (s *Service) notify(event domain.ChangeEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := s.publisher.PublishChanged(ctx, event); err != nil {
		slog.Warn("Failed to publish change event", "event", event.Event, "error", err)
	}
}

func voteOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, domain.ErrNothingToRetract):
		return "nothing_to_retract"
	default:
		return "error"
	}
}
