package security_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/authcore-io/authcore/security"
)

func TestStuffingQuietSourceIsLowRisk(t *testing.T) {
	rdb, _ := newRedis(t)
	detector := security.NewStuffingDetector(rdb, security.StuffingConfig{})
	ctx := tenantCtx("tenant-1")

	for i := 0; i < 3; i++ {
		err := detector.Record(ctx, security.Attempt{IP: "203.0.113.7", Email: "a@b.c", Success: i == 2})
		if err != nil {
			t.Fatalf("Record error: %v", err)
		}
	}

	assessment, err := detector.Assess(ctx, "203.0.113.7", "", false)
	if err != nil {
		t.Fatalf("Assess error: %v", err)
	}
	if assessment.Risk != security.RiskLow {
		t.Fatalf("risk = %v, want low", assessment.Risk)
	}
	if assessment.Challenge.Kind != security.ChallengeNone {
		t.Fatalf("challenge = %v, want none", assessment.Challenge.Kind)
	}
}

func TestStuffingFanoutRaisesRisk(t *testing.T) {
	rdb, _ := newRedis(t)
	detector := security.NewStuffingDetector(rdb, security.StuffingConfig{})
	ctx := tenantCtx("tenant-1")

	for i := 0; i < 12; i++ {
		err := detector.Record(ctx, security.Attempt{
			IP:    "203.0.113.7",
			Email: fmt.Sprintf("victim%d@example.org", i),
		})
		if err != nil {
			t.Fatalf("Record error: %v", err)
		}
	}

	assessment, err := detector.Assess(ctx, "203.0.113.7", "", false)
	if err != nil {
		t.Fatalf("Assess error: %v", err)
	}
	if assessment.Risk != security.RiskHigh {
		t.Fatalf("risk = %v, want high", assessment.Risk)
	}
	if assessment.Challenge.Kind != security.ChallengeCaptcha {
		t.Fatalf("challenge = %v, want captcha", assessment.Challenge.Kind)
	}
	if assessment.DistinctAccounts != 12 {
		t.Fatalf("distinct accounts = %d, want 12", assessment.DistinctAccounts)
	}
}

func TestStuffingWideFanoutIsCritical(t *testing.T) {
	rdb, _ := newRedis(t)
	detector := security.NewStuffingDetector(rdb, security.StuffingConfig{})
	ctx := tenantCtx("tenant-1")

	for i := 0; i < 35; i++ {
		err := detector.Record(ctx, security.Attempt{
			IP:    "203.0.113.7",
			Email: fmt.Sprintf("victim%d@example.org", i),
		})
		if err != nil {
			t.Fatalf("Record error: %v", err)
		}
	}

	assessment, err := detector.Assess(ctx, "203.0.113.7", "", false)
	if err != nil {
		t.Fatalf("Assess error: %v", err)
	}
	if assessment.Risk != security.RiskCritical {
		t.Fatalf("risk = %v, want critical", assessment.Risk)
	}
	if assessment.Challenge.Kind != security.ChallengeIPBlock {
		t.Fatalf("challenge = %v, want ip_block", assessment.Challenge.Kind)
	}
	if assessment.Challenge.Block <= 0 {
		t.Fatal("ip_block challenge must carry a block duration")
	}
}

func TestStuffingMostlyFailedBurst(t *testing.T) {
	rdb, _ := newRedis(t)
	detector := security.NewStuffingDetector(rdb, security.StuffingConfig{})
	ctx := tenantCtx("tenant-1")

	// One account hammered from one source: no fan-out, but a failed burst.
	for i := 0; i < 30; i++ {
		err := detector.Record(ctx, security.Attempt{IP: "203.0.113.7", Email: "a@b.c"})
		if err != nil {
			t.Fatalf("Record error: %v", err)
		}
	}

	assessment, err := detector.Assess(ctx, "203.0.113.7", "", false)
	if err != nil {
		t.Fatalf("Assess error: %v", err)
	}
	if assessment.Risk != security.RiskHigh {
		t.Fatalf("risk = %v, want high", assessment.Risk)
	}
}

func TestStuffingDriftUpgradesChallenge(t *testing.T) {
	rdb, _ := newRedis(t)
	detector := security.NewStuffingDetector(rdb, security.StuffingConfig{})
	ctx := tenantCtx("tenant-1")

	assessment, err := detector.Assess(ctx, "203.0.113.7", "", true)
	if err != nil {
		t.Fatalf("Assess error: %v", err)
	}
	if assessment.Risk != security.RiskMedium {
		t.Fatalf("risk with drift = %v, want medium", assessment.Risk)
	}
	if assessment.Challenge.Kind != security.ChallengeMFARequired {
		t.Fatalf("challenge with drift = %v, want mfa_required", assessment.Challenge.Kind)
	}
}

func TestStuffingASNSignalCounts(t *testing.T) {
	rdb, _ := newRedis(t)
	detector := security.NewStuffingDetector(rdb, security.StuffingConfig{})
	ctx := tenantCtx("tenant-1")

	// Fan-out spread across addresses inside one ASN.
	for i := 0; i < 12; i++ {
		err := detector.Record(ctx, security.Attempt{
			IP:    fmt.Sprintf("203.0.113.%d", i),
			ASN:   "AS64500",
			Email: fmt.Sprintf("victim%d@example.org", i),
		})
		if err != nil {
			t.Fatalf("Record error: %v", err)
		}
	}

	assessment, err := detector.Assess(ctx, "198.51.100.1", "AS64500", false)
	if err != nil {
		t.Fatalf("Assess error: %v", err)
	}
	if assessment.Risk != security.RiskHigh {
		t.Fatalf("risk via ASN = %v, want high", assessment.Risk)
	}
}

func TestStuffingWindowExpires(t *testing.T) {
	rdb, mr := newRedis(t)
	detector := security.NewStuffingDetector(rdb, security.StuffingConfig{})
	ctx := tenantCtx("tenant-1")

	for i := 0; i < 35; i++ {
		err := detector.Record(ctx, security.Attempt{
			IP:    "203.0.113.7",
			Email: fmt.Sprintf("victim%d@example.org", i),
		})
		if err != nil {
			t.Fatalf("Record error: %v", err)
		}
	}

	mr.FastForward(11 * time.Minute)

	assessment, err := detector.Assess(ctx, "203.0.113.7", "", false)
	if err != nil {
		t.Fatalf("Assess error: %v", err)
	}
	if assessment.Risk != security.RiskLow {
		t.Fatalf("risk after window expiry = %v, want low", assessment.Risk)
	}
}
