// Package mongostore implements the region catalog, the building footprint
// collections and their summary aggregations on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// RegionsCollection holds the municipality catalog.
const RegionsCollection = "municipalities"

type Client struct {
	cli *mongo.Client
	db  *mongo.Database
}

func Connect(ctx context.Context, uri, dbName string) (*Client, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if dbName == "" {
		return nil, errors.New("mongo database name is required")
	}

	opts := options.Client().ApplyURI(uri).SetAppName("regiontag")
	cli, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cli.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &Client{cli: cli, db: cli.Database(dbName)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.cli.Ping(ctx, readpref.Primary())
}

func (c *Client) Close(ctx context.Context) error {
	return c.cli.Disconnect(ctx)
}

func (c *Client) Database() *mongo.Database { return c.db }
