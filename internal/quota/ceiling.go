package quota

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Ceiling is the maximum permitted count of a metered action.
// It is either a finite non-negative number or unbounded; the zero value is a
// finite ceiling of 0, the most restrictive entitlement.
type Ceiling struct {
	max       int64
	unbounded bool
}

// Finite returns a ceiling of n. Negative values are clamped to 0.
func Finite(n int64) Ceiling {
	if n < 0 {
		n = 0
	}
	return Ceiling{max: n}
}

// Unbounded returns a ceiling that never denies.
func Unbounded() Ceiling {
	return Ceiling{unbounded: true}
}

// IsUnbounded reports whether the ceiling has no maximum.
func (c Ceiling) IsUnbounded() bool {
	return c.unbounded
}

// Max returns the finite maximum and true, or 0 and false when unbounded.
func (c Ceiling) Max() (int64, bool) {
	if c.unbounded {
		return 0, false
	}
	return c.max, true
}

// Allows reports whether one more use is permitted when used units are
// already consumed. The comparison is strict: a ceiling of N admits exactly
// N consumptions.
func (c Ceiling) Allows(used int64) bool {
	return c.unbounded || used < c.max
}

// Remaining returns the capacity left after used units.
func (c Ceiling) Remaining(used int64) Ceiling {
	if c.unbounded {
		return c
	}
	return Finite(c.max - used)
}

// Ptr returns the maximum as a pointer, nil when unbounded.
// Storage layers use it to bind the ceiling as a nullable SQL parameter.
func (c Ceiling) Ptr() *int64 {
	if c.unbounded {
		return nil
	}
	v := c.max
	return &v
}

func (c Ceiling) String() string {
	if c.unbounded {
		return "unlimited"
	}
	return strconv.FormatInt(c.max, 10)
}

// MarshalJSON encodes an unbounded ceiling as null and a finite one as a number.
func (c Ceiling) MarshalJSON() ([]byte, error) {
	if c.unbounded {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(c.max, 10)), nil
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (c *Ceiling) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = Unbounded()
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid ceiling %s: %w", data, err)
	}
	if n < 0 {
		return fmt.Errorf("invalid ceiling %d: must not be negative", n)
	}
	*c = Finite(n)
	return nil
}
