package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/urfave/cli/v3"

	"stories-service/logging"
)

const ServiceName = "stories-service"

type Config struct {
	Port           string
	Environment    string
	MongoURI       string
	MongoDB        string
	NATSUrl        string
	RedisURL       string
	JWTSecret      string
	LogLevel       string
	AllowedOrigins []string
	InstanceID     string

	CacheMaxEntries    int
	CacheSweepInterval time.Duration
	QueryTimeout       time.Duration
	SlowResponse       time.Duration

	RateLimit  int
	RateWindow time.Duration

	OTELEndpoint    string
	OTELSampleRatio float64
}

// Production reports whether the service runs with production CORS rules.
func (c *Config) Production() bool {
	return c.Environment == "production"
}

const (
	flagPort               = "port"
	flagEnv                = "env"
	flagMongoURI           = "mongo-uri"
	flagMongoDB            = "mongo-db"
	flagNATSURL            = "nats-url"
	flagRedisURL           = "redis-url"
	flagJWTSecret          = "jwt-secret"
	flagLogLevel           = "log-level"
	flagAllowedOrigins     = "allowed-origins"
	flagInstanceID         = "instance-id"
	flagCacheMaxEntries    = "cache-max-entries"
	flagCacheSweepInterval = "cache-sweep-interval"
	flagQueryTimeout       = "query-timeout"
	flagSlowResponse       = "slow-response"
	flagRateLimit          = "rate-limit"
	flagRateWindow         = "rate-window"
	flagOTELEndpoint       = "otel-endpoint"
	flagOTELSampleRatio    = "otel-sample-ratio"
)

// DatabaseFlags are shared by every command. Each call returns new flags.
func DatabaseFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    flagMongoURI,
			Usage:   "MongoDB connection string",
			Value:   "mongodb://localhost:27017",
			Sources: cli.EnvVars("MONGO_URI", "MONGO_URL"),
		},
		&cli.StringFlag{
			Name:    flagMongoDB,
			Usage:   "MongoDB database name",
			Value:   "stories",
			Sources: cli.EnvVars("MONGO_DB", "DB_NAME"),
		},
		&cli.StringFlag{
			Name:    flagLogLevel,
			Aliases: []string{"l"},
			Usage:   "The level of the logs",
			Value:   "info",
			Validator: func(value string) error {
				if !slices.Contains(logging.Levels, value) {
					return fmt.Errorf("invalid log level: %s, allowed values are: %s", value, logging.Levels)
				}
				return nil
			},
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
	}
}

// ServeFlags configure the HTTP service.
func ServeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    flagPort,
			Aliases: []string{"p"},
			Usage:   "The HTTP listen port",
			Value:   "5000",
			Sources: cli.EnvVars("PORT"),
		},
		&cli.StringFlag{
			Name:    flagEnv,
			Usage:   "Deployment environment: development or production",
			Value:   "development",
			Sources: cli.EnvVars("APP_ENV", "NODE_ENV"),
		},
		&cli.StringFlag{
			Name:    flagNATSURL,
			Aliases: []string{"n"},
			Usage:   "The URL of the NATS server used to share cache invalidations; empty disables it",
			Value:   nats.DefaultURL,
			Sources: cli.EnvVars("NATS_URL"),
		},
		&cli.StringFlag{
			Name:    flagRedisURL,
			Usage:   "Redis URL for shared rate limit counters; empty keeps counters in memory",
			Sources: cli.EnvVars("REDIS_URL"),
		},
		&cli.StringFlag{
			Name:    flagJWTSecret,
			Usage:   "HMAC secret used to verify bearer tokens",
			Sources: cli.EnvVars("JWT_SECRET", "JWT_SECRET_KEY"),
		},
		&cli.StringSliceFlag{
			Name:    flagAllowedOrigins,
			Usage:   "CORS origins allowed in production",
			Value:   []string{"http://localhost:5173", "http://localhost:3000"},
			Sources: cli.EnvVars("ALLOWED_ORIGINS"),
		},
		&cli.StringFlag{
			Name:        flagInstanceID,
			Usage:       "Replica id used to skip our own invalidation messages",
			DefaultText: "random",
			Sources:     cli.EnvVars("INSTANCE_ID", "HOSTNAME"),
		},
		&cli.IntFlag{
			Name:    flagCacheMaxEntries,
			Usage:   "Maximum number of cached responses",
			Value:   100,
			Sources: cli.EnvVars("CACHE_MAX_ENTRIES"),
		},
		&cli.DurationFlag{
			Name:    flagCacheSweepInterval,
			Usage:   "How often expired cache entries are swept",
			Value:   30 * time.Second,
			Sources: cli.EnvVars("CACHE_SWEEP_INTERVAL"),
		},
		&cli.DurationFlag{
			Name:    flagQueryTimeout,
			Usage:   "Deadline for a single database query",
			Value:   10 * time.Second,
			Sources: cli.EnvVars("QUERY_TIMEOUT"),
		},
		&cli.DurationFlag{
			Name:    flagSlowResponse,
			Usage:   "Responses slower than this are logged as warnings",
			Value:   500 * time.Millisecond,
			Sources: cli.EnvVars("SLOW_RESPONSE"),
		},
		&cli.IntFlag{
			Name:    flagRateLimit,
			Usage:   "Requests allowed per client IP per window; 0 disables limiting",
			Value:   100,
			Sources: cli.EnvVars("RATE_LIMIT"),
		},
		&cli.DurationFlag{
			Name:    flagRateWindow,
			Usage:   "Rate limit window",
			Value:   15 * time.Minute,
			Sources: cli.EnvVars("RATE_WINDOW"),
		},
		&cli.StringFlag{
			Name:    flagOTELEndpoint,
			Usage:   "OTLP/HTTP collector endpoint; empty disables tracing",
			Sources: cli.EnvVars("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
		&cli.FloatFlag{
			Name:    flagOTELSampleRatio,
			Usage:   "Fraction of traces sampled",
			Value:   1,
			Sources: cli.EnvVars("OTEL_TRACES_SAMPLER_ARG"),
		},
	}
}

// FromCommand reads every flag known to cmd. Flags the command does not
// declare keep their zero value.
func FromCommand(cmd *cli.Command) *Config {
	return &Config{
		Port:               cmd.String(flagPort),
		Environment:        cmd.String(flagEnv),
		MongoURI:           cmd.String(flagMongoURI),
		MongoDB:            cmd.String(flagMongoDB),
		NATSUrl:            cmd.String(flagNATSURL),
		RedisURL:           cmd.String(flagRedisURL),
		JWTSecret:          cmd.String(flagJWTSecret),
		LogLevel:           cmd.String(flagLogLevel),
		AllowedOrigins:     cmd.StringSlice(flagAllowedOrigins),
		InstanceID:         cmd.String(flagInstanceID),
		CacheMaxEntries:    cmd.Int(flagCacheMaxEntries),
		CacheSweepInterval: cmd.Duration(flagCacheSweepInterval),
		QueryTimeout:       cmd.Duration(flagQueryTimeout),
		SlowResponse:       cmd.Duration(flagSlowResponse),
		RateLimit:          cmd.Int(flagRateLimit),
		RateWindow:         cmd.Duration(flagRateWindow),
		OTELEndpoint:       cmd.String(flagOTELEndpoint),
		OTELSampleRatio:    cmd.Float(flagOTELSampleRatio),
	}
}
