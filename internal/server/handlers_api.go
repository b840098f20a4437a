package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Gwagwa94/Votooveto/internal/app"
	"github.com/Gwagwa94/Votooveto/internal/domain"
	apperrors "github.com/Gwagwa94/Votooveto/internal/errors"
)

func (s *Server) handleListRestaurants(c echo.Context) error {
	ctx := c.Request().Context()

	listing, err := s.app.List(ctx, contextUserID(c))
	if err != nil {
		return apperrors.StoreUnavailableError("failed to load restaurants", err)
	}

	if err := c.JSON(http.StatusOK, listing); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

type createRestaurantRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (s *Server) handleCreateRestaurant(c echo.Context) error {
	ctx := c.Request().Context()

	actorID := contextUserID(c)
	if actorID == uuid.Nil {
		return apperrors.UnauthenticatedError("sign in required")
	}

	var req createRestaurantRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	restaurant, err := s.app.Create(ctx, actorID, req.Name, req.URL)
	if errors.Is(err, app.ErrInvalidName) {
		return apperrors.ValidationError("restaurant name is required")
	}
	if err != nil {
		return apperrors.StoreUnavailableError("failed to create restaurant", err)
	}

	if err := c.JSON(http.StatusCreated, map[string]string{"id": restaurant.ID.String()}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

type voteRequest struct {
	RestaurantID string `json:"restaurantId"`
	Direction    string `json:"direction"`
	// Delta is +1 (cast) or -1 (retract). Omitted means +1, which keeps the
	// older cast-only clients working.
	Delta        *int   `json:"delta"`
	ConnectionID string `json:"connectionId"`
}

type voteResponse struct {
	Budget domain.Budget `json:"budget"`
}

func (s *Server) handleVote(c echo.Context) error {
	ctx := c.Request().Context()

	actorID := contextUserID(c)
	if actorID == uuid.Nil {
		return apperrors.UnauthenticatedError("sign in required")
	}

	var req voteRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	restaurantID, err := uuid.Parse(req.RestaurantID)
	if err != nil {
		return apperrors.ValidationError("invalid restaurant id").WithField("restaurant_id", req.RestaurantID)
	}

	dir := domain.Direction(req.Direction)
	if !dir.Valid() {
		return apperrors.ValidationError("direction must be up or down").WithField("direction", req.Direction)
	}

	delta := 1
	if req.Delta != nil {
		delta = *req.Delta
	}
	if delta != 1 && delta != -1 {
		return apperrors.ValidationError("delta must be +1 or -1").WithField("delta", delta)
	}

	budget, err := s.app.Vote(ctx, actorID, restaurantID, dir, delta, req.ConnectionID)
	if errors.Is(err, domain.ErrQuotaExceeded) {
		return apperrors.QuotaError("vote limit reached").
			WithField("direction", string(dir)).
			WithField("restaurant_id", restaurantID.String())
	}
	if errors.Is(err, domain.ErrNothingToRetract) {
		return apperrors.ValidationError("no vote to retract").
			WithField("direction", string(dir)).
			WithField("restaurant_id", restaurantID.String())
	}
	if err != nil {
		return apperrors.StoreUnavailableError("failed to process vote", err)
	}

	if err := c.JSON(http.StatusOK, voteResponse{Budget: budget}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// handleCleanup wipes all vote state. Never available outside development.
func (s *Server) handleCleanup(c echo.Context) error {
	if !s.config.IsDevelopment() {
		return echo.NewHTTPError(http.StatusForbidden, "this action is forbidden in production")
	}

	deleted, err := s.app.ResetVotes(c.Request().Context())
	if err != nil {
		return apperrors.StoreUnavailableError("cleanup failed", err)
	}

	slog.Info("Vote state reset", "deleted_keys", deleted)
	if err := c.JSON(http.StatusOK, map[string]any{"deletedKeys": deleted}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
