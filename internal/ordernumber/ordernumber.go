// Package ordernumber allocates human-readable order numbers of the form
// YYMMDD#### where #### restarts at 0001 every calendar day.
package ordernumber

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	prefixLayout = "060102"
	prefixLen    = len(prefixLayout)
	sequenceLen  = 4

	// MaxSequence is the last sequence number available per day.
	MaxSequence = 9999
)

var (
	ErrSequenceExhausted = errors.New("order number sequence exhausted for the day")
	ErrMalformed         = errors.New("malformed order number")
)

// Store looks up the highest existing order number for a date prefix.
// Satisfied by *database.Queries; returns pgx.ErrNoRows when the day has no orders yet.
type Store interface {
	GetLastOrderNumber(ctx context.Context, prefix string) (string, error)
}

// Prefix returns the YYMMDD date prefix for t.
func Prefix(t time.Time) string {
	return t.Format(prefixLayout)
}

// Format joins a prefix and a sequence into a full order number.
func Format(prefix string, seq int) string {
	return fmt.Sprintf("%s%0*d", prefix, sequenceLen, seq)
}

// Sequence extracts the daily sequence from a full order number.
func Sequence(number string) (int, error) {
	if len(number) != prefixLen+sequenceLen {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, number)
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", ErrMalformed, number)
		}
	}
	seq, err := strconv.Atoi(number[prefixLen:])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, number)
	}
	return seq, nil
}

// Next returns the number following last within prefix. An empty last
// starts the day at 0001.
func Next(prefix, last string) (string, error) {
	if last == "" {
		return Format(prefix, 1), nil
	}
	if last[:min(len(last), prefixLen)] != prefix {
		return "", fmt.Errorf("%w: %q does not start with %q", ErrMalformed, last, prefix)
	}
	seq, err := Sequence(last)
	if err != nil {
		return "", err
	}
	if seq >= MaxSequence {
		return "", fmt.Errorf("%w: prefix %s", ErrSequenceExhausted, prefix)
	}
	return Format(prefix, seq+1), nil
}

// Generator produces candidate order numbers from the current date in a fixed location.
// Uniqueness is not guaranteed here; callers insert and retry on conflict.
type Generator struct {
	loc *time.Location
	now func() time.Time
}

// NewGenerator returns a Generator using loc for the calendar date.
// A nil loc falls back to time.Local.
func NewGenerator(loc *time.Location) *Generator {
	if loc == nil {
		loc = time.Local
	}
	return &Generator{loc: loc, now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Location returns the timezone used to derive the date prefix.
func (g *Generator) Location() *time.Location {
	return g.loc
}

// Next reads the day's highest number from store and returns the successor.
func (g *Generator) Next(ctx context.Context, store Store) (string, error) {
	prefix := Prefix(g.now().In(g.loc))

	last, err := store.GetLastOrderNumber(ctx, prefix)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("get last order number: %w", err)
		}
		last = ""
	}
	return Next(prefix, last)
}
