package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Gwagwa94/Votooveto/internal/domain"
)

const opTimeout = 3 * time.Second

// Key schema, kept stable so existing deployments keep their data:
//
//	restaurants:ids          SET   restaurant ids
//	restaurant:{id}          HASH  name, url, created_by, created_at
//	votes:{id}:{up|down}     HASH  user id -> contribution count (ledger)
//	user:votes:{userID}      HASH  ups, downs (budget)
const restaurantsSetKey = "restaurants:ids"

func restaurantKey(id uuid.UUID) string {
	return "restaurant:" + id.String()
}

func ledgerKey(id uuid.UUID, dir domain.Direction) string {
	return "votes:" + id.String() + ":" + string(dir)
}

func budgetKey(userID uuid.UUID) string {
	return "user:votes:" + userID.String()
}

func budgetField(dir domain.Direction) string {
	if dir == domain.DirectionUp {
		return "ups"
	}
	return "downs"
}

// VoteStore implements domain.VoteStore backed by Redis.
type VoteStore struct {
	rdb *goredis.Client
}

func NewVoteStore(rdb *goredis.Client) *VoteStore {
	return &VoteStore{rdb: rdb}
}

var _ domain.VoteStore = (*VoteStore)(nil)

// CastVote runs the cast script: bounded increment of the ledger entry and
// the budget counter in one atomic unit. A missing restaurant id creates a
// fresh ledger hash (upsert semantics).
func (s *VoteStore) CastVote(ctx context.Context, restaurantID, userID uuid.UUID, dir domain.Direction, cap int64) (domain.Budget, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	keys := []string{ledgerKey(restaurantID, dir), budgetKey(userID)}
	result, err := castVoteScript.Run(ctx, s.rdb, keys,
		userID.String(),
		budgetField(dir),
		strconv.FormatInt(cap, 10),
	).Int64Slice()
	if err != nil {
		return domain.Budget{}, fmt.Errorf("cast vote script failed: %w", err)
	}

	budget, ok := parseScriptReply(result)
	if !ok {
		return budget, domain.ErrQuotaExceeded
	}
	return budget, nil
}

// RetractVote runs the retract script: decrements the ledger entry and the
// budget counter together, rejecting when there is nothing to retract.
func (s *VoteStore) RetractVote(ctx context.Context, restaurantID, userID uuid.UUID, dir domain.Direction) (domain.Budget, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	keys := []string{ledgerKey(restaurantID, dir), budgetKey(userID)}
	result, err := retractVoteScript.Run(ctx, s.rdb, keys,
		userID.String(),
		budgetField(dir),
	).Int64Slice()
	if err != nil {
		return domain.Budget{}, fmt.Errorf("retract vote script failed: %w", err)
	}

	budget, ok := parseScriptReply(result)
	if !ok {
		return budget, domain.ErrNothingToRetract
	}
	return budget, nil
}

func parseScriptReply(reply []int64) (domain.Budget, bool) {
	if len(reply) != 3 {
		return domain.Budget{}, false
	}
	return domain.Budget{Upvotes: reply[1], Downvotes: reply[2]}, reply[0] == 1
}

// CreateRestaurant registers the id and stores the details in one
// transaction. Tallies start at zero implicitly: no ledger entries exist.
func (s *VoteStore) CreateRestaurant(ctx context.Context, r domain.Restaurant) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	pipe := s.rdb.TxPipeline()
	pipe.SAdd(ctx, restaurantsSetKey, r.ID.String())
	pipe.HSet(ctx, restaurantKey(r.ID), map[string]any{
		"name":       r.Name,
		"url":        r.URL,
		"created_by": r.CreatedBy.String(),
		"created_at": r.CreatedAt.UTC().Format(time.RFC3339),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create restaurant: %w", err)
	}
	return nil
}

// ListRestaurants loads every restaurant and sums its ledgers per direction.
// When viewerID is non-nil, the viewer's own contributions are read from the
// same ledger hashes. Ordering is left to the caller.
func (s *VoteStore) ListRestaurants(ctx context.Context, viewerID uuid.UUID) ([]domain.Restaurant, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	ids, err := s.rdb.SMembers(ctx, restaurantsSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list restaurant ids: %w", err)
	}

	type restaurantCmds struct {
		id      uuid.UUID
		details *goredis.MapStringStringCmd
		ups     *goredis.MapStringStringCmd
		downs   *goredis.MapStringStringCmd
	}

	cmds := make([]restaurantCmds, 0, len(ids))
	pipe := s.rdb.Pipeline()
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue // stray member, ignore
		}
		cmds = append(cmds, restaurantCmds{
			id:      id,
			details: pipe.HGetAll(ctx, restaurantKey(id)),
			ups:     pipe.HGetAll(ctx, ledgerKey(id, domain.DirectionUp)),
			downs:   pipe.HGetAll(ctx, ledgerKey(id, domain.DirectionDown)),
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to load restaurants: %w", err)
	}

	viewer := ""
	if viewerID != uuid.Nil {
		viewer = viewerID.String()
	}

	restaurants := make([]domain.Restaurant, 0, len(cmds))
	for _, c := range cmds {
		details := c.details.Val()
		ups := c.ups.Val()
		downs := c.downs.Val()

		r := domain.Restaurant{
			ID:        c.id,
			Name:      details["name"],
			URL:       details["url"],
			Upvotes:   sumHashValues(ups),
			Downvotes: sumHashValues(downs),
		}
		if r.Name == "" {
			r.Name = "Unknown"
		}
		if createdBy, err := uuid.Parse(details["created_by"]); err == nil {
			r.CreatedBy = createdBy
		}
		if createdAt, err := time.Parse(time.RFC3339, details["created_at"]); err == nil {
			r.CreatedAt = createdAt
		}
		if viewer != "" {
			r.UserUpvotes = parseCount(ups[viewer])
			r.UserDownvotes = parseCount(downs[viewer])
		}
		restaurants = append(restaurants, r)
	}

	return restaurants, nil
}

// GetBudget reads the user's global vote totals. Missing hash means a user
// who has never voted: a zero budget.
func (s *VoteStore) GetBudget(ctx context.Context, userID uuid.UUID) (domain.Budget, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	vals, err := s.rdb.HMGet(ctx, budgetKey(userID), "ups", "downs").Result()
	if err != nil {
		return domain.Budget{}, fmt.Errorf("failed to get budget: %w", err)
	}

	var budget domain.Budget
	if v, ok := vals[0].(string); ok {
		budget.Upvotes = parseCount(v)
	}
	if v, ok := vals[1].(string); ok {
		budget.Downvotes = parseCount(v)
	}
	return budget, nil
}

// ResetVotes deletes every vote ledger and every budget hash, returning the
// number of keys removed. Restaurants themselves are kept. Development only;
// the HTTP layer guards the endpoint by environment.
func (s *VoteStore) ResetVotes(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	ids, err := s.rdb.SMembers(ctx, restaurantsSetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list restaurant ids: %w", err)
	}

	keys := make([]string, 0, len(ids)*2)
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		keys = append(keys, ledgerKey(id, domain.DirectionUp), ledgerKey(id, domain.DirectionDown))
	}

	var cursor uint64
	for {
		batch, next, err := s.rdb.Scan(ctx, cursor, "user:votes:*", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to scan budget keys: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	if len(keys) == 0 {
		return 0, nil
	}

	deleted, err := s.rdb.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to delete vote keys: %w", err)
	}
	return deleted, nil
}

// sumHashValues adds up all counter fields of a ledger hash. Corrupt
// entries count as zero.
func sumHashValues(hash map[string]string) int64 {
	var sum int64
	for _, v := range hash {
		sum += parseCount(v)
	}
	return sum
}

func parseCount(v string) int64 {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
