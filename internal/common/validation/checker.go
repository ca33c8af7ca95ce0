package validation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"canvas-gateway/internal/common/errors"
)

// Checker collects setting problems. Each method records at most one
// problem and returns the Checker for chaining; Err reports them all.
type Checker struct {
	problems []string
}

func NewChecker() *Checker {
	return &Checker{}
}

// Tags runs the `validate` struct tags of s.
func (c *Checker) Tags(s interface{}) *Checker {
	c.problems = append(c.problems, tagProblems(s)...)
	return c
}

// Required flags a blank value.
func (c *Checker) Required(name, value string) *Checker {
	if strings.TrimSpace(value) == "" {
		c.add("%s is required", name)
	}
	return c
}

// Port flags anything but an integer in 1..65535.
func (c *Checker) Port(name, value string) *Checker {
	if n, err := strconv.Atoi(value); err != nil || n < 1 || n > 65535 {
		c.add("%s must be a valid port number between 1 and 65535", name)
	}
	return c
}

// Positive flags anything but an integer above zero.
func (c *Checker) Positive(name, value string) *Checker {
	if n, err := strconv.ParseInt(value, 10, 64); err != nil || n < 1 {
		c.add("%s must be a positive number", name)
	}
	return c
}

// Between flags anything but an integer in lo..hi.
func (c *Checker) Between(name, value string, lo, hi int) *Checker {
	if n, err := strconv.Atoi(value); err != nil || n < lo || n > hi {
		c.add("%s must be a number between %d and %d", name, lo, hi)
	}
	return c
}

// Duration flags anything time.ParseDuration rejects or that is not positive.
func (c *Checker) Duration(name, value, example string) *Checker {
	if d, err := time.ParseDuration(value); err != nil || d <= 0 {
		c.add("%s must be a positive duration (e.g., '%s')", name, example)
	}
	return c
}

// Check records err when it is non-nil.
func (c *Checker) Check(err error) *Checker {
	if err != nil {
		c.problems = append(c.problems, err.Error())
	}
	return c
}

// When runs fn only if cond holds.
func (c *Checker) When(cond bool, fn func() error) *Checker {
	if cond {
		c.Check(fn())
	}
	return c
}

// Problems lists what was recorded so far.
func (c *Checker) Problems() []string {
	return c.problems
}

// Err returns nil, or a ConfigError naming every problem.
func (c *Checker) Err() error {
	switch len(c.problems) {
	case 0:
		return nil
	case 1:
		return errors.ConfigError(c.problems[0])
	default:
		return errors.ConfigError("invalid configuration: " + strings.Join(c.problems, "; "))
	}
}

func (c *Checker) add(format string, args ...interface{}) {
	c.problems = append(c.problems, fmt.Sprintf(format, args...))
}
