package permits

import (
	"time"
)

// Default SLA cutoffs used whenever no active configuration row can be
// loaded. Releasing a permit must never be blocked by a missing
// configuration.
const (
	DefaultRequestCutoff = "07:30:00"
	DefaultReleaseCutoff = "08:15:00"
)

// SLAWindow holds the two time-of-day cutoffs the delay attribution runs
// against, as HH:MM:SS strings.
type SLAWindow struct {
	RequestCutoff string
	ReleaseCutoff string
}

// DefaultSLAWindow returns the documented fallback cutoffs.
func DefaultSLAWindow() SLAWindow {
	return SLAWindow{
		RequestCutoff: DefaultRequestCutoff,
		ReleaseCutoff: DefaultReleaseCutoff,
	}
}

// Attribution is the outcome of the delay calculation at release time.
type Attribution struct {
	Responsavel     Responsavel
	AtrasoETM       int
	AtrasoPetrobras int
}

// secondsOfDay extracts the wall-clock time-of-day in seconds. Timestamps
// are compared in the server's local time, matching the observed behavior
// of the system this replaces; the SLA timezone column is informational.
func secondsOfDay(t time.Time) int {
	h, m, s := t.Clock()
	return h*3600 + m*60 + s
}

func parseCutoff(value, fallback string) int {
	t, err := time.Parse("15:04:05", value)
	if err != nil {
		t, _ = time.Parse("15:04:05", fallback)
	}
	return secondsOfDay(t)
}

// AttributeDelay assigns responsibility for a delay by comparing the
// request and release times of day against the SLA cutoffs.
//
// A late request (strictly past the request cutoff) makes ETM responsible
// for the full overshoot; only when the request was on time can a late
// release make Petrobras responsible. Exactly at the cutoff second counts
// as on time. The two delay categories are mutually exclusive by
// construction.
func AttributeDelay(requestedAt *time.Time, releasedAt time.Time, window SLAWindow) Attribution {
	if requestedAt == nil {
		return Attribution{Responsavel: ResponsavelSemAtraso}
	}

	requestCutoff := parseCutoff(window.RequestCutoff, DefaultRequestCutoff)
	releaseCutoff := parseCutoff(window.ReleaseCutoff, DefaultReleaseCutoff)

	requestSec := secondsOfDay(*requestedAt)
	releaseSec := secondsOfDay(releasedAt)

	if requestSec > requestCutoff {
		return Attribution{
			Responsavel: ResponsavelETM,
			AtrasoETM:   (requestSec - requestCutoff) / 60,
		}
	}

	if releaseSec > releaseCutoff {
		return Attribution{
			Responsavel:     ResponsavelPetrobras,
			AtrasoPetrobras: (releaseSec - releaseCutoff) / 60,
		}
	}

	return Attribution{Responsavel: ResponsavelSemAtraso}
}
