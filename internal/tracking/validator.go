package tracking

// RejectionReason explains why the validator dropped a location fix.
type RejectionReason string

const (
	RejectionNone          RejectionReason = ""
	RejectMalformed        RejectionReason = "malformed_coordinates"
	RejectTooFrequent      RejectionReason = "too_frequent"
	RejectImplausibleJump  RejectionReason = "implausible_jump"
	RejectImplausibleSpeed RejectionReason = "implausible_speed"
)

// validator is a streaming GPS filter. It keeps only the last accepted fix
// and judges each incoming fix against it, so memory use is constant no
// matter how long the session runs.
type validator struct {
	cfg  Config
	last *LocationPoint
}

func newValidator(cfg Config) *validator {
	return &validator{cfg: cfg}
}

// check returns the reason a fix is unusable, or RejectionNone if the fix
// was accepted and recorded as the new reference point. The first fix of a
// session is always accepted.
func (v *validator) check(p LocationPoint) RejectionReason {
	// Written so NaN coordinates fail the comparison too.
	if !(p.Lat >= -90 && p.Lat <= 90) || !(p.Lng >= -180 && p.Lng <= 180) {
		return RejectMalformed
	}
	if v.last == nil {
		v.accept(p)
		return RejectionNone
	}

	dt := p.RecordedAt.Sub(v.last.RecordedAt)
	if dt < v.cfg.MinFixInterval {
		return RejectTooFrequent
	}

	distM := distanceM(*v.last, p)
	if distM > v.cfg.MaxJumpM {
		return RejectImplausibleJump
	}
	if distM/dt.Seconds() > v.cfg.MaxSpeedMps {
		return RejectImplausibleSpeed
	}

	v.accept(p)
	return RejectionNone
}

func (v *validator) accept(p LocationPoint) {
	cp := p
	v.last = &cp
}

// seed primes the reference point, used when resuming from a crash snapshot
// so the first live fix after recovery is still judged against history.
func (v *validator) seed(p *LocationPoint) {
	if p == nil {
		v.last = nil
		return
	}
	cp := *p
	v.last = &cp
}
