// Package simtime defines simulated durations.
//
// Simulated time is counted in whole microseconds from the start of a
// simulation run. It is unrelated to wall-clock time.
package simtime

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a span of simulated time in microseconds.
type Duration int64

const (
	Zero        Duration = 0
	Microsecond Duration = 1
	Millisecond          = 1000 * Microsecond
	Second               = 1000 * Millisecond
	Minute               = 60 * Second
	Hour                 = 60 * Minute
	Day                  = 24 * Hour
)

// Micros returns the duration as a microsecond count.
func (d Duration) Micros() int64 { return int64(d) }

// Seconds returns the duration as floating-point seconds.
func (d Duration) Seconds() float64 {
	return float64(d) / float64(Second)
}

// FromSeconds converts floating-point seconds to the nearest microsecond.
func FromSeconds(s float64) Duration {
	if s >= 0 {
		return Duration(s*float64(Second) + 0.5)
	}
	return Duration(s*float64(Second) - 0.5)
}

// IsNegative reports whether d is below zero.
func (d Duration) IsNegative() bool { return d < 0 }

// String formats d using the same units Parse accepts.
func (d Duration) String() string {
	if d == 0 {
		return "0s"
	}
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	var sb strings.Builder
	sb.WriteString(sign)
	if days := d / Day; days > 0 {
		sb.WriteString(strconv.FormatInt(int64(days), 10))
		sb.WriteByte('d')
		d -= days * Day
		if d == 0 {
			return sb.String()
		}
	}
	sb.WriteString(time.Duration(d * 1000).String())
	return sb.String()
}

// Parse reads a duration such as "90s", "1h30m", "250ms", "15us" or "2d12h".
// A bare integer is taken as microseconds.
func Parse(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("simtime: empty duration")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Duration(n), nil
	}

	neg := false
	rest := s
	if rest[0] == '-' || rest[0] == '+' {
		neg = rest[0] == '-'
		rest = rest[1:]
	}

	var total Duration
	if i := strings.IndexByte(rest, 'd'); i > 0 {
		days, err := strconv.ParseInt(rest[:i], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("simtime: invalid day count in %q", s)
		}
		total = Duration(days) * Day
		rest = rest[i+1:]
	}
	if rest != "" {
		td, err := time.ParseDuration(rest)
		if err != nil {
			return 0, fmt.Errorf("simtime: invalid duration %q: %w", s, err)
		}
		if td%time.Microsecond != 0 {
			return 0, fmt.Errorf("simtime: duration %q is finer than a microsecond", s)
		}
		total += Duration(td / time.Microsecond)
	}
	if neg {
		total = -total
	}
	return total, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Duration {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// UnmarshalYAML accepts either a duration string or an integer microsecond count.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("simtime: line %d: duration must be a scalar", node.Line)
	}
	v, err := Parse(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = v
	return nil
}

// Min returns the smaller of a and b.
func Min(a, b Duration) Duration {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b Duration) Duration {
	if a > b {
		return a
	}
	return b
}

// Window is a closed interval [Start, End] of simulated time.
type Window struct {
	Start Duration `json:"start"`
	End   Duration `json:"end"`
}

// Between returns the window [start, end].
func Between(start, end Duration) Window {
	return Window{Start: start, End: end}
}

// Length returns End - Start.
func (w Window) Length() Duration { return w.End - w.Start }

// Contains reports whether t lies within the window.
func (w Window) Contains(t Duration) bool {
	return w.Start <= t && t <= w.End
}

// IsEmpty reports whether the window contains no instant.
func (w Window) IsEmpty() bool { return w.End < w.Start }

func (w Window) String() string {
	return "[" + w.Start.String() + ", " + w.End.String() + "]"
}
