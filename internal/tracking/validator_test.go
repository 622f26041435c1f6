package tracking

import (
	"math"
	"testing"
	"time"
)

var fixBase = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func fix(lat, lng float64, at time.Time) LocationPoint {
	return LocationPoint{Lat: lat, Lng: lng, RecordedAt: at}
}

func TestValidatorFirstFixAlwaysAccepted(t *testing.T) {
	v := newValidator(DefaultConfig())
	if got := v.check(fix(-89.9, 179.9, fixBase)); got != RejectionNone {
		t.Fatalf("first fix rejected: %s", got)
	}
}

func TestValidatorMalformedCoordinates(t *testing.T) {
	cases := []struct {
		name     string
		lat, lng float64
	}{
		{"lat above range", 90.0001, 0},
		{"lat below range", -90.0001, 0},
		{"lng above range", 0, 180.5},
		{"lng below range", 0, -180.5},
		{"lat NaN", math.NaN(), 0},
		{"lng NaN", 0, math.NaN()},
	}
	for _, tc := range cases {
		v := newValidator(DefaultConfig())
		if got := v.check(fix(tc.lat, tc.lng, fixBase)); got != RejectMalformed {
			t.Fatalf("%s: got %q, want %q", tc.name, got, RejectMalformed)
		}
	}
}

func TestValidatorMinInterval(t *testing.T) {
	v := newValidator(DefaultConfig())
	if got := v.check(fix(0, 0, fixBase)); got != RejectionNone {
		t.Fatalf("baseline fix rejected: %s", got)
	}
	if got := v.check(fix(0, 0, fixBase.Add(999*time.Millisecond))); got != RejectTooFrequent {
		t.Fatalf("rapid fix: got %q, want %q", got, RejectTooFrequent)
	}
	if got := v.check(fix(0, 0, fixBase.Add(time.Second))); got != RejectionNone {
		t.Fatalf("fix exactly at interval rejected: %s", got)
	}
}

func TestValidatorJumpBoundary(t *testing.T) {
	// 0.00089 deg of latitude is just under 100 m, 0.00091 just over.
	v := newValidator(DefaultConfig())
	if got := v.check(fix(0, 0, fixBase)); got != RejectionNone {
		t.Fatalf("baseline fix rejected: %s", got)
	}
	if got := v.check(fix(0.00089, 0, fixBase.Add(time.Minute))); got != RejectionNone {
		t.Fatalf("hop under threshold rejected: %s", got)
	}
	if got := v.check(fix(0.00089+0.00091, 0, fixBase.Add(2*time.Minute))); got != RejectImplausibleJump {
		t.Fatalf("hop over threshold: got %q, want %q", got, RejectImplausibleJump)
	}
}

func TestValidatorSpeedBoundary(t *testing.T) {
	// Over 10 s, 0.00040 deg of latitude implies about 4.45 m/s and
	// 0.00042 about 4.67 m/s.
	v := newValidator(DefaultConfig())
	if got := v.check(fix(0, 0, fixBase)); got != RejectionNone {
		t.Fatalf("baseline fix rejected: %s", got)
	}
	if got := v.check(fix(0.00040, 0, fixBase.Add(10*time.Second))); got != RejectionNone {
		t.Fatalf("plausible speed rejected: %s", got)
	}
	if got := v.check(fix(0.00040+0.00042, 0, fixBase.Add(20*time.Second))); got != RejectImplausibleSpeed {
		t.Fatalf("implausible speed: got %q, want %q", got, RejectImplausibleSpeed)
	}
}

func TestValidatorRejectionKeepsReference(t *testing.T) {
	v := newValidator(DefaultConfig())
	if got := v.check(fix(0, 0, fixBase)); got != RejectionNone {
		t.Fatalf("baseline fix rejected: %s", got)
	}
	if got := v.check(fix(0, 0, fixBase.Add(400*time.Millisecond))); got != RejectTooFrequent {
		t.Fatalf("rapid fix accepted")
	}
	// 1.2 s after the accepted baseline but only 0.8 s after the rejected
	// fix. Acceptance proves the rejected fix never became the reference.
	if got := v.check(fix(0, 0, fixBase.Add(1200*time.Millisecond))); got != RejectionNone {
		t.Fatalf("fix judged against rejected reference: %s", got)
	}
}

func TestValidatorSeed(t *testing.T) {
	v := newValidator(DefaultConfig())
	ref := fix(0, 0, fixBase)
	v.seed(&ref)

	if got := v.check(fix(0.01, 0, fixBase.Add(time.Hour))); got != RejectImplausibleJump {
		t.Fatalf("seeded reference ignored: %s", got)
	}
	if got := v.check(fix(0.0005, 0, fixBase.Add(time.Hour))); got != RejectionNone {
		t.Fatalf("plausible fix after seed rejected: %s", got)
	}

	v.seed(nil)
	if got := v.check(fix(50, 50, fixBase.Add(2*time.Hour))); got != RejectionNone {
		t.Fatalf("first fix after reset rejected: %s", got)
	}
}
