package trackingcode

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/BearBump/LogiTrack/internal/models"
	"github.com/pkg/errors"
)

const (
	Prefix = "LT"

	minSuffix = 100_000_000
	maxSuffix = 999_999_999

	DefaultMaxAttempts       = 10
	DefaultMaxInsertAttempts = 3
)

type Rand interface {
	Intn(n int) int
}

// Checker reports whether a code is already taken by a stored order.
type Checker interface {
	TrackingCodeExists(ctx context.Context, code string) (bool, error)
}

type Generator struct {
	checker Checker
	r       Rand

	maxAttempts       int
	maxInsertAttempts int
}

func New(checker Checker, r Rand) *Generator {
	if r == nil {
		r = globalRand{}
	}
	return &Generator{
		checker:           checker,
		r:                 r,
		maxAttempts:       DefaultMaxAttempts,
		maxInsertAttempts: DefaultMaxInsertAttempts,
	}
}

func (g *Generator) WithLimits(maxAttempts, maxInsertAttempts int) *Generator {
	if maxAttempts > 0 {
		g.maxAttempts = maxAttempts
	}
	if maxInsertAttempts > 0 {
		g.maxInsertAttempts = maxInsertAttempts
	}
	return g
}

// Generate draws codes until one is not taken by an existing order.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	for i := 0; i < g.maxAttempts; i++ {
		code := g.draw()
		exists, err := g.checker.TrackingCodeExists(ctx, code)
		if err != nil {
			return "", models.NewPersistenceError("check tracking code", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", models.NewPersistenceError("generate tracking code",
		fmt.Errorf("no free code after %d attempts", g.maxAttempts))
}

// Assign generates a code and hands it to insert. A uniqueness violation raised by
// insert (a concurrent writer took the code after the check) is retried with a new code.
func (g *Generator) Assign(ctx context.Context, insert func(code string) error) (string, error) {
	for i := 0; i < g.maxInsertAttempts; i++ {
		code, err := g.Generate(ctx)
		if err != nil {
			return "", err
		}
		err = insert(code)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, models.ErrDuplicateTrackingCode) {
			return "", err
		}
	}
	return "", models.NewPersistenceError("insert order",
		fmt.Errorf("tracking code collided %d times", g.maxInsertAttempts))
}

func (g *Generator) draw() string {
	return Format(minSuffix + g.r.Intn(maxSuffix-minSuffix+1))
}

func Format(n int) string {
	return fmt.Sprintf("%s%09d", Prefix, n)
}

// globalRand uses the package-level source, which is safe for concurrent use.
type globalRand struct{}

func (globalRand) Intn(n int) int { return rand.Intn(n) }
