package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/authcore-io/authcore/repository"
)

// RiskLevel grades how strongly the recent attempt pattern looks like a
// credential-stuffing campaign.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ChallengeKind names the action the detector recommends.
type ChallengeKind int

const (
	ChallengeNone ChallengeKind = iota
	ChallengeCaptcha
	ChallengeDelay
	ChallengeMFARequired
	ChallengeIPBlock
)

func (c ChallengeKind) String() string {
	switch c {
	case ChallengeNone:
		return "none"
	case ChallengeCaptcha:
		return "captcha"
	case ChallengeDelay:
		return "delay"
	case ChallengeMFARequired:
		return "mfa_required"
	case ChallengeIPBlock:
		return "ip_block"
	default:
		return "unknown"
	}
}

// Challenge is the detector's recommendation. Delay is meaningful for
// ChallengeDelay, Block for ChallengeIPBlock.
type Challenge struct {
	Kind  ChallengeKind
	Delay time.Duration
	Block time.Duration
}

// Assessment is the detector's advisory output. The orchestrator decides
// whether and how to enforce it.
type Assessment struct {
	Risk      RiskLevel
	Challenge Challenge

	// Observed signals, for audit records.
	Attempts         int64
	Failures         int64
	DistinctAccounts int64
}

// StuffingConfig tunes the credential-stuffing detector.
type StuffingConfig struct {
	Window time.Duration

	// Fan-out thresholds: distinct accounts attempted from one source.
	FanoutHigh     int64
	FanoutCritical int64

	// Burst thresholds: total attempts from one source inside the window.
	BurstMedium int64
	BurstHigh   int64

	// FailRatio is the mostly-failed ratio that marks a source suspicious
	// once it has at least MinAttempts observations.
	FailRatio   float64
	MinAttempts int64

	ChallengeDelay time.Duration
	BlockDuration  time.Duration
}

func (c *StuffingConfig) applyDefaults() {
	if c.Window <= 0 {
		c.Window = 10 * time.Minute
	}
	if c.FanoutHigh <= 0 {
		c.FanoutHigh = 10
	}
	if c.FanoutCritical <= 0 {
		c.FanoutCritical = 30
	}
	if c.BurstMedium <= 0 {
		c.BurstMedium = 30
	}
	if c.BurstHigh <= 0 {
		c.BurstHigh = 100
	}
	if c.FailRatio <= 0 || c.FailRatio > 1 {
		c.FailRatio = 0.8
	}
	if c.MinAttempts <= 0 {
		c.MinAttempts = 10
	}
	if c.ChallengeDelay <= 0 {
		c.ChallengeDelay = time.Second
	}
	if c.BlockDuration <= 0 {
		c.BlockDuration = 15 * time.Minute
	}
}

// StuffingDetector watches login attempts per source IP and per ASN and
// grades the pattern: fan-out across many accounts, a mostly-failed ratio,
// and bursts are the campaign signatures it looks for.
type StuffingDetector struct {
	redis  redis.UniversalClient
	config StuffingConfig
}

// NewStuffingDetector returns a detector backed by the given client.
func NewStuffingDetector(redisClient redis.UniversalClient, cfg StuffingConfig) *StuffingDetector {
	cfg.applyDefaults()
	return &StuffingDetector{redis: redisClient, config: cfg}
}

// Attempt is one observed login attempt.
type Attempt struct {
	IP      string
	ASN     string
	Email   string
	Success bool
}

// Record folds one attempt into the per-source windows.
func (d *StuffingDetector) Record(ctx context.Context, attempt Attempt) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	pipe := d.redis.TxPipeline()
	for _, source := range d.sources(attempt.IP, attempt.ASN) {
		attempts := key(tenantID, "stuffing-attempts", source)
		accounts := key(tenantID, "stuffing-accounts", source)
		pipe.Incr(ctx, attempts)
		pipe.Expire(ctx, attempts, d.config.Window)
		pipe.SAdd(ctx, accounts, attempt.Email)
		pipe.Expire(ctx, accounts, d.config.Window)
		if !attempt.Success {
			failures := key(tenantID, "stuffing-failures", source)
			pipe.Incr(ctx, failures)
			pipe.Expire(ctx, failures, d.config.Window)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Assess grades the current window for the given source. fingerprintDrift
// reports that the presented device fingerprint fell below the drift
// threshold; it upgrades the recommended challenge to MFA when the risk is
// already elevated.
func (d *StuffingDetector) Assess(ctx context.Context, ip, asn string, fingerprintDrift bool) (Assessment, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return Assessment{}, err
	}

	worst := Assessment{Risk: RiskLow}
	for _, source := range d.sources(ip, asn) {
		a, err := d.assessSource(ctx, tenantID, source)
		if err != nil {
			return Assessment{}, err
		}
		if a.Risk > worst.Risk {
			worst = a
		} else if worst.Attempts == 0 && a.Attempts > 0 {
			worst = a
		}
	}

	worst.Challenge = d.challengeFor(worst.Risk)

	if fingerprintDrift {
		if worst.Risk < RiskMedium {
			worst.Risk = RiskMedium
		}
		if worst.Challenge.Kind != ChallengeIPBlock {
			worst.Challenge = Challenge{Kind: ChallengeMFARequired}
		}
	}

	return worst, nil
}

func (d *StuffingDetector) assessSource(ctx context.Context, tenantID, source string) (Assessment, error) {
	attempts, err := d.counter(ctx, key(tenantID, "stuffing-attempts", source))
	if err != nil {
		return Assessment{}, err
	}
	failures, err := d.counter(ctx, key(tenantID, "stuffing-failures", source))
	if err != nil {
		return Assessment{}, err
	}
	accounts, err := d.redis.SCard(ctx, key(tenantID, "stuffing-accounts", source)).Result()
	if err != nil {
		return Assessment{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	a := Assessment{
		Attempts:         attempts,
		Failures:         failures,
		DistinctAccounts: accounts,
	}

	var failRatio float64
	if attempts > 0 {
		failRatio = float64(failures) / float64(attempts)
	}
	mostlyFailed := attempts >= d.config.MinAttempts && failRatio >= d.config.FailRatio

	switch {
	case accounts >= d.config.FanoutCritical,
		mostlyFailed && attempts >= d.config.BurstHigh:
		a.Risk = RiskCritical
	case accounts >= d.config.FanoutHigh,
		mostlyFailed && attempts >= d.config.BurstMedium:
		a.Risk = RiskHigh
	case attempts >= d.config.BurstMedium, mostlyFailed:
		a.Risk = RiskMedium
	default:
		a.Risk = RiskLow
	}

	return a, nil
}

func (d *StuffingDetector) challengeFor(risk RiskLevel) Challenge {
	switch risk {
	case RiskCritical:
		return Challenge{Kind: ChallengeIPBlock, Block: d.config.BlockDuration}
	case RiskHigh:
		return Challenge{Kind: ChallengeCaptcha}
	case RiskMedium:
		return Challenge{Kind: ChallengeDelay, Delay: d.config.ChallengeDelay}
	default:
		return Challenge{Kind: ChallengeNone}
	}
}

func (d *StuffingDetector) sources(ip, asn string) []string {
	sources := make([]string, 0, 2)
	if ip != "" {
		sources = append(sources, "ip-"+ip)
	}
	if asn != "" {
		sources = append(sources, "asn-"+asn)
	}
	return sources
}

func (d *StuffingDetector) counter(ctx context.Context, k string) (int64, error) {
	count, err := d.redis.Get(ctx, k).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return count, nil
}
