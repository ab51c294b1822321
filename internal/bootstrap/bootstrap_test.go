package bootstrap

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srgjo27/eventflow/internal/core/services"
	"github.com/srgjo27/eventflow/internal/platform/config"
)

func TestBuild_MemoryStoreWithoutOptionalCollaborators(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := config.App{
		StoreDriver:         "memory",
		TimeZone:            "UTC",
		IssuanceMaxAttempts: 4,
	}

	app, err := Build(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(app.Close)

	res, err := app.Purchases.IssueAndFulfill(context.Background(), services.IssueInput{
		BuyerID: "demo-buyer",
		EventID: "demo-event",
		BatchID: "demo-batch",
	})
	require.NoError(t, err)
	assert.True(t, res.Delivered, "console mailer accepts every message")
	assert.Equal(t, "To be defined", res.Summary.EventDate)
	assert.Equal(t, "50.00", res.Summary.Price)

	avail, err := app.Availability.Get(context.Background(), "demo-batch")
	require.NoError(t, err)
	assert.Equal(t, 99, avail.Remaining)
}
