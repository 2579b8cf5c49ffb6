package vault

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/hengadev/errsx"
)

const maxLogN = 63

// Validate reports every out-of-range parameter at once. Beyond positivity
// the only ceilings are the ones scrypt itself enforces, so a file written
// with forced high parameters still opens.
func (p KDFParams) Validate() error {
	var errs errsx.Map
	if p.LogN == 0 || p.LogN > maxLogN {
		errs.Set("log2_n", fmt.Errorf("must be between 1 and %d, got %d", maxLogN, p.LogN))
	}
	if p.R == 0 {
		errs.Set("r", fmt.Errorf("must be positive"))
	}
	if p.P == 0 {
		errs.Set("p", fmt.Errorf("must be positive"))
	}
	if err := errs.AsError(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidKDFParams, err)
	}

	rp := uint64(p.R) * uint64(p.P)
	if rp >= 1<<30 {
		errs.Set("r*p", fmt.Errorf("must be below 2^30"))
	} else if 128*rp > math.MaxInt || 256*uint64(p.R) > math.MaxInt || exceeds(128*uint64(p.R), p.LogN, math.MaxInt) {
		errs.Set("memory", fmt.Errorf("128*r*2^log2_n does not fit in memory on this platform"))
	}
	if err := errs.AsError(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidKDFParams, err)
	}
	return nil
}

// ExceedsRecommended is the caller-side policy check: parameters above these
// values can make the file take minutes or gigabytes to open.
func (p KDFParams) ExceedsRecommended() bool {
	return p.LogN > 20 || p.R > 8 || p.P > 1
}

func (p KDFParams) String() string {
	return fmt.Sprintf("log2_n=%d r=%d p=%d", p.LogN, p.R, p.P)
}

// exceeds reports whether v * 2^logN > limit without overflowing.
func exceeds(v uint64, logN uint8, limit uint64) bool {
	if logN >= 64 {
		return v > 0
	}
	hi, lo := bits.Mul64(v, 1<<logN)
	return hi != 0 || lo > limit
}
