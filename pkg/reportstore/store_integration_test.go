//go:build integration

package reportstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/seraphhq/seraph/pkg/investigation"
	"github.com/seraphhq/seraph/pkg/reportstore"
)

// testDSN returns a Postgres DSN, preferring CI's external database
// (CI_DATABASE_URL) over spinning up a local testcontainer, matching the
// teacher's test/util.getOrCreateSharedDatabase fallback order.
func testDSN(t *testing.T) string {
	t.Helper()
	if dsn := os.Getenv("CI_DATABASE_URL"); dsn != "" {
		return dsn
	}

	ctx := context.Background()
	pgContainer, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("seraph_test"),
		postgres.WithUsername("seraph"),
		postgres.WithPassword("seraph"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(context.Background()) })

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestStore_PutThenGetRoundTripsAReport(t *testing.T) {
	ctx := context.Background()
	store, err := reportstore.New(ctx, reportstore.Config{DSN: testDSN(t)})
	require.NoError(t, err)
	t.Cleanup(store.Close)

	report := &investigation.Report{
		RootCauseAnalysis:    "connection pool exhausted under load",
		ImpactAssessment:     "5xx spike on checkout-api for ~4 minutes",
		SuggestedRemediation: []string{"raise max pool size", "add backpressure at the gateway"},
	}

	ref, err := store.Put(ctx, "inc-integration-1", report)
	require.NoError(t, err)
	require.Equal(t, "inc-integration-1", ref)

	got, err := store.Get(ctx, "inc-integration-1")
	require.NoError(t, err)
	require.Equal(t, report.RootCauseAnalysis, got.RootCauseAnalysis)
	require.Equal(t, report.ImpactAssessment, got.ImpactAssessment)
	require.Equal(t, report.SuggestedRemediation, got.SuggestedRemediation)
	require.False(t, got.Unstructured)
}

func TestStore_PutIsIdempotentOnConflict(t *testing.T) {
	ctx := context.Background()
	store, err := reportstore.New(ctx, reportstore.Config{DSN: testDSN(t)})
	require.NoError(t, err)
	t.Cleanup(store.Close)

	first := &investigation.Report{RootCauseAnalysis: "first pass", ImpactAssessment: "x"}
	_, err = store.Put(ctx, "inc-integration-2", first)
	require.NoError(t, err)

	second := &investigation.Report{RootCauseAnalysis: "revised after re-investigation", ImpactAssessment: "y", Unstructured: true}
	_, err = store.Put(ctx, "inc-integration-2", second)
	require.NoError(t, err)

	got, err := store.Get(ctx, "inc-integration-2")
	require.NoError(t, err)
	require.Equal(t, "revised after re-investigation", got.RootCauseAnalysis)
	require.True(t, got.Unstructured)
}

func TestStore_GetUnknownIncidentReturnsError(t *testing.T) {
	ctx := context.Background()
	store, err := reportstore.New(ctx, reportstore.Config{DSN: testDSN(t)})
	require.NoError(t, err)
	t.Cleanup(store.Close)

	_, err = store.Get(ctx, "does-not-exist")
	require.Error(t, err)
}
