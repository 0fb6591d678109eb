package authcore

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/authcore-io/authcore/internal/jobs"
	"github.com/authcore-io/authcore/internal/metrics"
	"github.com/authcore-io/authcore/jwt"
	"github.com/authcore-io/authcore/password"
	"github.com/authcore-io/authcore/security"
	"github.com/authcore-io/authcore/session"
	"github.com/authcore-io/authcore/verification"
)

// Builder assembles an [Engine]. Config, a [Store] and a redis client are
// required; everything else has a working default.
type Builder struct {
	config    Config
	store     Store
	redis     redis.UniversalClient
	providers []verification.MessageProvider
	sink      AuditSink
	logger    *slog.Logger
	registry  prometheus.Registerer
	jobsOff   bool
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithConfig sets the engine configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithStore sets the repository bundle.
func (b *Builder) WithStore(store Store) *Builder {
	b.store = store
	return b
}

// WithRedis sets the client backing the admission controls.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithMessageProvider registers a verification-code delivery channel. May be
// called once per channel.
func (b *Builder) WithMessageProvider(p verification.MessageProvider) *Builder {
	b.providers = append(b.providers, p)
	return b
}

// WithAuditSink sets the audit destination. Defaults to [NoOpSink].
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsRegistry registers the engine's prometheus instruments on reg.
// Without it the instruments still exist but are not exported.
func (b *Builder) WithMetricsRegistry(reg prometheus.Registerer) *Builder {
	b.registry = reg
	return b
}

// WithoutBackgroundJobs skips starting the cleanup scheduler. Embedders that
// run [Engine.CleanupSessions] and [Engine.CleanupCodes] on their own
// schedule use this.
func (b *Builder) WithoutBackgroundJobs() *Builder {
	b.jobsOff = true
	return b
}

// Build validates the configuration and wires the engine. The returned engine
// owns its background jobs; release them with [Engine.Close].
func (b *Builder) Build() (*Engine, error) {
	if b.store == nil {
		return nil, errors.New("authcore: store required")
	}
	if b.redis == nil {
		return nil, errors.New("authcore: redis client required")
	}

	cfg := b.config
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := b.sink
	if sink == nil {
		sink = NoOpSink{}
	}

	passwordCfg := cfg.Password
	if passwordCfg == (password.Config{}) {
		passwordCfg = password.DefaultConfig()
	}
	hasher, err := password.NewHasher(passwordCfg)
	if err != nil {
		return nil, fmt.Errorf("authcore: build hasher: %w", err)
	}
	strength, err := password.NewEstimator(cfg.MinPasswordScore)
	if err != nil {
		return nil, fmt.Errorf("authcore: build strength estimator: %w", err)
	}

	tokens, err := jwt.NewManager(jwt.Config{
		Secret:   cfg.JWTSecret,
		Lifetime: cfg.JWTLifetime,
		Issuer:   cfg.JWTIssuer,
		Leeway:   cfg.JWTLeeway,
	})
	if err != nil {
		return nil, fmt.Errorf("authcore: build token manager: %w", err)
	}

	sessions, err := session.NewEngine(b.store.Sessions(), session.Config{
		Salt:                   cfg.SessionSalt,
		Lifetime:               cfg.SessionLifetime,
		ActivityUpdateInterval: cfg.ActivityUpdateInterval,
		MaxSessionsPerUser:     cfg.MaxSessionsPerUser,
		RotationEnabled:        !cfg.DisableRotation,
		RotationInterval:       cfg.RotationInterval,
		InvalidRetention:       cfg.InvalidRetention,
		Now:                    cfg.Now,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("authcore: build session engine: %w", err)
	}

	codes, err := verification.NewEngine(b.store.Codes(), b.providers, verification.Config{
		CodeLength:  cfg.VerificationCodeLength,
		Expiration:  cfg.VerificationExpiration,
		Throttle:    cfg.VerificationThrottle,
		MaxAttempts: cfg.VerificationMaxAttempts,
		Now:         cfg.Now,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("authcore: build verification engine: %w", err)
	}

	rateCfg := cfg.RateLimit
	rateCfg.Now = cfg.Now
	replayCfg := cfg.Replay
	replayCfg.Now = cfg.Now

	engine := &Engine{
		config:   cfg,
		logger:   logger,
		metrics:  metrics.New(b.registry),
		store:    b.store,
		sessions: sessions,
		codes:    codes,
		hasher:   hasher,
		strength: strength,
		tokens:   tokens,
		brute:    security.NewBruteForceLimiter(b.redis, cfg.BruteForce),
		stuffing: security.NewStuffingDetector(b.redis, cfg.Stuffing),
		rate:     security.NewRateLimiter(b.redis, rateCfg),
		replay:   security.NewReplayGuard(b.redis, replayCfg),
		drift:    security.NewFingerprintComparator(cfg.FingerprintDriftThreshold),
		audit:    newAuditDispatcher(sink, cfg.AuditBufferSize, logger),
		now:      cfg.Now,
	}

	if !b.jobsOff {
		scheduler, err := jobs.NewScheduler(logger)
		if err != nil {
			engine.audit.Close()
			return nil, fmt.Errorf("authcore: build scheduler: %w", err)
		}
		if err := scheduler.AddCleanup("sessions", cfg.CleanupInterval, sessions); err != nil {
			engine.audit.Close()
			return nil, err
		}
		if err := scheduler.AddCleanup("verification_codes", cfg.CleanupInterval, codes); err != nil {
			engine.audit.Close()
			return nil, err
		}
		scheduler.Start()
		engine.scheduler = scheduler
	}

	return engine, nil
}
