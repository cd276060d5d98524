package permits

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(hhmmss string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", "2025-03-10 "+hhmmss)
	if err != nil {
		panic(err)
	}
	return t
}

func TestAttributeDelayOnTime(t *testing.T) {
	// Request 07:29:00, release 08:10:00: both inside the window.
	requested := at("07:29:00")
	got := AttributeDelay(&requested, at("08:10:00"), DefaultSLAWindow())

	assert.Equal(t, ResponsavelSemAtraso, got.Responsavel)
	assert.Equal(t, 0, got.AtrasoETM)
	assert.Equal(t, 0, got.AtrasoPetrobras)
}

func TestAttributeDelayLateRequest(t *testing.T) {
	// Request 07:45:00 is 15 minutes past the 07:30:00 cutoff. ETM is
	// responsible regardless of release time.
	requested := at("07:45:00")

	for _, release := range []string{"08:00:00", "09:30:00"} {
		got := AttributeDelay(&requested, at(release), DefaultSLAWindow())
		assert.Equal(t, ResponsavelETM, got.Responsavel)
		assert.Equal(t, 15, got.AtrasoETM)
		assert.Equal(t, 0, got.AtrasoPetrobras)
	}
}

func TestAttributeDelayLateRelease(t *testing.T) {
	// Request on time at 07:20:00, release 08:30:00 is 15 minutes past the
	// 08:15:00 cutoff.
	requested := at("07:20:00")
	got := AttributeDelay(&requested, at("08:30:00"), DefaultSLAWindow())

	assert.Equal(t, ResponsavelPetrobras, got.Responsavel)
	assert.Equal(t, 0, got.AtrasoETM)
	assert.Equal(t, 15, got.AtrasoPetrobras)
}

func TestAttributeDelayExactlyAtCutoffIsOnTime(t *testing.T) {
	// Strict > comparison: the cutoff second itself counts as on time.
	requested := at("07:30:00")
	got := AttributeDelay(&requested, at("08:15:00"), DefaultSLAWindow())

	assert.Equal(t, ResponsavelSemAtraso, got.Responsavel)
	assert.Equal(t, 0, got.AtrasoETM)
	assert.Equal(t, 0, got.AtrasoPetrobras)
}

func TestAttributeDelayMutuallyExclusive(t *testing.T) {
	// Late request and late release: only the ETM category is charged.
	requested := at("07:45:00")
	got := AttributeDelay(&requested, at("09:00:00"), DefaultSLAWindow())

	assert.Equal(t, ResponsavelETM, got.Responsavel)
	assert.Equal(t, 15, got.AtrasoETM)
	assert.Equal(t, 0, got.AtrasoPetrobras)
	assert.False(t, got.AtrasoETM > 0 && got.AtrasoPetrobras > 0)
}

func TestAttributeDelayMissingRequest(t *testing.T) {
	got := AttributeDelay(nil, at("08:30:00"), DefaultSLAWindow())

	assert.Equal(t, ResponsavelSemAtraso, got.Responsavel)
	assert.Equal(t, 0, got.AtrasoETM)
	assert.Equal(t, 0, got.AtrasoPetrobras)
}

func TestAttributeDelayCustomWindow(t *testing.T) {
	window := SLAWindow{RequestCutoff: "06:00:00", ReleaseCutoff: "07:00:00"}
	requested := at("06:20:00")
	got := AttributeDelay(&requested, at("06:30:00"), window)

	assert.Equal(t, ResponsavelETM, got.Responsavel)
	assert.Equal(t, 20, got.AtrasoETM)
}

func TestAttributeDelayUnparsableCutoffUsesDefault(t *testing.T) {
	window := SLAWindow{RequestCutoff: "not-a-time", ReleaseCutoff: "also-bad"}
	requested := at("07:45:00")
	got := AttributeDelay(&requested, at("08:00:00"), window)

	assert.Equal(t, ResponsavelETM, got.Responsavel)
	assert.Equal(t, 15, got.AtrasoETM)
}

func TestHHImprodutivo(t *testing.T) {
	tests := []struct {
		efetivo         int
		atrasoETM       int
		atrasoPetrobras int
		want            int
	}{
		{1, 0, 0, 0},
		{1, 15, 0, 15},
		{1, 0, 20, 20},
		{5, 0, 0, 0},
		{5, 15, 0, 75},
		{5, 0, 20, 100},
		{50, 0, 0, 0},
		{50, 15, 0, 750},
		{50, 0, 20, 1000},
	}

	for _, tt := range tests {
		p := &Permit{EfetivoQtd: tt.efetivo, AtrasoETM: tt.atrasoETM, AtrasoPetrobras: tt.atrasoPetrobras}
		assert.Equal(t, tt.want, p.HHImprodutivo())
	}
}
