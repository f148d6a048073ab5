// Package database opens the configured backend and hands back a store.Store.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ConnectMongo dials uri and pings the primary, retrying up to attempts
// times with wait between tries.
func ConnectMongo(ctx context.Context, uri string, attempts int, wait time.Duration) (*mongo.Client, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		client, err := dialMongo(ctx, uri)
		if err == nil {
			slog.Info("connected to MongoDB", "attempt", i)
			return client, nil
		}
		lastErr = err
		slog.Warn("MongoDB connection attempt failed", "attempt", i, slog.Any("error", err))

		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("connecting to MongoDB: %w", lastErr)
}

func dialMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// DisconnectMongo closes client. A nil client is a no-op.
func DisconnectMongo(ctx context.Context, client *mongo.Client) error {
	if client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.Disconnect(ctx); err != nil {
		return err
	}
	slog.Info("disconnected from MongoDB")
	return nil
}
