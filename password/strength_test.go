package password

import "testing"

func TestEstimatorRejectsWeakPasswords(t *testing.T) {
	est, err := NewEstimator(DefaultMinScore)
	if err != nil {
		t.Fatalf("NewEstimator error: %v", err)
	}

	ok, score := est.Acceptable("password", nil)
	if ok {
		t.Fatalf("expected 'password' to be rejected, score=%d", score)
	}

	ok, score = est.Acceptable("P@ssw0rd123ComplexEnough!", nil)
	if !ok {
		t.Fatalf("expected strong password to be accepted, score=%d", score)
	}
}

func TestEstimatorPenalizesUserInputs(t *testing.T) {
	est, err := NewEstimator(DefaultMinScore)
	if err != nil {
		t.Fatalf("NewEstimator error: %v", err)
	}

	withInputs := est.Score("alice.wonderland", []string{"alice.wonderland", "alice"})
	withoutInputs := est.Score("alice.wonderland", nil)

	if withInputs > withoutInputs {
		t.Fatalf("user-derived password must not score higher with inputs: %d > %d", withInputs, withoutInputs)
	}
}

func TestEstimatorBounds(t *testing.T) {
	if _, err := NewEstimator(-1); err == nil {
		t.Fatal("expected error for negative floor")
	}
	if _, err := NewEstimator(5); err == nil {
		t.Fatal("expected error for floor above max score")
	}
	est, err := NewEstimator(3)
	if err != nil {
		t.Fatalf("NewEstimator error: %v", err)
	}
	if est.MinScore() != 3 {
		t.Fatalf("MinScore = %d, want 3", est.MinScore())
	}
}
