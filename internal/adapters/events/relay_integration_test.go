//go:build integration

package events_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"

	"github.com/hammerstack/bidengine/internal/adapters/database"
	"github.com/hammerstack/bidengine/internal/adapters/events"
	"github.com/hammerstack/bidengine/internal/domain/auction"
	infradb "github.com/hammerstack/bidengine/internal/infra/database"
	"github.com/hammerstack/bidengine/internal/testhelpers"
)

// TestRelay_PublishesCommittedBids commits a bid through the postgres ledger
// and expects the relay to deliver its bid.placed event to RabbitMQ.
func TestRelay_PublishesCommittedBids(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	rabbitContainer, err := rabbitmq.Run(ctx,
		"rabbitmq:3.12-management-alpine",
		rabbitmq.WithAdminPassword("password"),
	)
	require.NoError(t, err)
	defer func() {
		if termErr := rabbitContainer.Terminate(ctx); termErr != nil {
			t.Fatalf("failed to terminate container: %s", termErr)
		}
	}()

	amqpURL, err := rabbitContainer.AmqpURL(ctx)
	require.NoError(t, err)

	testDB := testhelpers.NewTestDatabase(t, "../../../migrations")
	defer testDB.Close()
	pool := testDB.Pool

	conn, err := amqp091.Dial(amqpURL)
	require.NoError(t, err)
	defer conn.Close()

	publisher, err := events.NewRabbitMQPublisher(conn)
	require.NoError(t, err)
	defer publisher.Close()

	// Bind a queue before anything is published.
	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()
	queue, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(queue.Name, events.EventTypeBidPlaced, events.DefaultExchange, false, nil))
	deliveries, err := ch.Consume(queue.Name, "", true, true, false, false, nil)
	require.NoError(t, err)

	txManager := infradb.NewPostgresTransactionManager(pool, time.Second)
	outboxRepo := database.NewPostgresOutboxRepository(pool)
	catalog := database.NewPostgresItemCatalog(pool)
	ledger := database.NewPostgresBidLedger(pool, txManager, outboxRepo)

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	relay := events.NewOutboxRelay(outboxRepo, publisher, txManager, 10, 100*time.Millisecond, events.DefaultExchange, logger)

	relayCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		_ = relay.Run(relayCtx)
	}()

	// Commit a bid; its outbox event should flow through the relay.
	itemID := uuid.New()
	now := time.Now()
	require.NoError(t, catalog.CreateItem(ctx, &auction.Item{
		ID: itemID, Title: "Vintage Guitar", StartPrice: decimal.NewFromInt(50),
		ClosesAt: now.Add(time.Hour), CreatedAt: now, UpdatedAt: now,
	}))
	committed, err := ledger.CommitBid(ctx, &auction.Bid{
		ID: uuid.New(), ItemID: itemID, BidderID: "alice", Value: decimal.NewFromInt(100),
	}, decimal.Zero)
	require.NoError(t, err)

	select {
	case delivery := <-deliveries:
		var payload events.BidPlaced
		require.NoError(t, json.Unmarshal(delivery.Body, &payload))
		assert.Equal(t, committed.ID.String(), payload.BidID)
		assert.Equal(t, "alice", payload.BidderID)
		assert.Equal(t, "100", payload.Value)
		assert.False(t, payload.IsAutomatic)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for bid.placed event")
	}
}
