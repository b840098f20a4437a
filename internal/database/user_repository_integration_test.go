package database

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Gwagwa94/Votooveto/internal/domain"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	flag.Parse()

	// Skip container setup if running in short mode
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get connection string: %v\n", err)
		os.Exit(1)
	}

	testPool, err = Connect(ctx, connStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to test database: %v\n", err)
		os.Exit(1)
	}

	if err := RunMigrations(ctx, testPool); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	testPool.Close()
	if err := postgresContainer.Terminate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to terminate postgres container: %v\n", err)
	}
	os.Exit(code)
}

func setupUserRepo(t *testing.T) *UserRepo {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	_, err := testPool.Exec(context.Background(), "TRUNCATE users")
	require.NoError(t, err)

	return NewUserRepo(testPool)
}

func TestUserRepoIntegration_UpsertCreates(t *testing.T) {
	repo := setupUserRepo(t)
	ctx := context.Background()

	user, err := repo.Upsert(ctx, "ada@example.com", "Ada")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "Ada", user.DisplayName)
	assert.False(t, user.CreatedAt.IsZero())
}

func TestUserRepoIntegration_UpsertIsIdempotentByEmail(t *testing.T) {
	repo := setupUserRepo(t)
	ctx := context.Background()

	first, err := repo.Upsert(ctx, "grace@example.com", "Grace")
	require.NoError(t, err)

	// Same email keeps the id, refreshes the display name
	second, err := repo.Upsert(ctx, "grace@example.com", "Grace Hopper")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Grace Hopper", second.DisplayName)
}

func TestUserRepoIntegration_GetByID(t *testing.T) {
	repo := setupUserRepo(t)
	ctx := context.Background()

	created, err := repo.Upsert(ctx, "linus@example.com", "Linus")
	require.NoError(t, err)

	found, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "linus@example.com", found.Email)
}

func TestUserRepoIntegration_GetByIDNotFound(t *testing.T) {
	repo := setupUserRepo(t)

	_, err := repo.GetByID(context.Background(), uuid.New())
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}
