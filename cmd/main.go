package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"
	"go.mongodb.org/mongo-driver/mongo"

	"stories-service/config"
	"stories-service/logging"
	"stories-service/seed"
	"stories-service/store"
)

const version = "1.0.0"

func main() {
	root := &cli.Command{
		Name:    config.ServiceName,
		Usage:   "Stories API with popularity ranking and a shared response cache",
		Version: version,
		Flags:   config.DatabaseFlags(),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			_, err := logging.New(c.String("log-level"))
			return ctx, err
		},
		Commands: []*cli.Command{
			serveCmd,
			{
				Name:   "create-indexes",
				Usage:  "Create the MongoDB indexes used by the API",
				Action: createIndexes,
			},
			{
				Name:  "seed",
				Usage: "Fill the database with generated users and posts",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "users", Value: 25, Usage: "Number of users"},
					&cli.IntFlag{Name: "posts", Value: 100, Usage: "Number of posts"},
					&cli.IntFlag{Name: "staff-pick-every", Value: 10, Usage: "Mark every nth post as a staff pick"},
					&cli.DurationFlag{Name: "span", Value: 60 * 24 * time.Hour, Usage: "How far back post dates reach"},
				},
				Action: seedDatabase,
			},
		},
		DefaultCommand: serveCmd.Name,
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withDatabase connects to MongoDB for a one-shot command.
func withDatabase(ctx context.Context, c *cli.Command, fn func(ctx context.Context, db *mongo.Database) error) error {
	cfg := config.FromCommand(c)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	client, err := store.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	return fn(ctx, client.Database(cfg.MongoDB))
}

func createIndexes(ctx context.Context, c *cli.Command) error {
	return withDatabase(ctx, c, func(ctx context.Context, db *mongo.Database) error {
		return store.EnsureIndexes(ctx, db, slog.Default())
	})
}

func seedDatabase(ctx context.Context, c *cli.Command) error {
	return withDatabase(ctx, c, func(ctx context.Context, db *mongo.Database) error {
		opts := seed.Options{
			Users:          int(c.Int("users")),
			Posts:          int(c.Int("posts")),
			StaffPickEvery: int(c.Int("staff-pick-every")),
			Span:           c.Duration("span"),
		}
		return seed.Run(ctx, store.NewUserStore(db), store.NewPostStore(db), opts, slog.Default())
	})
}
