package instance

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/psantana5/shopbench/pkg/models"
)

// FileLoader reads instances from a data directory
type FileLoader struct {
	Root string

	// Spread bounds the relative perturbation of each processing time in a
	// stochastic realization: factor drawn from [1-Spread, 1+Spread].
	Spread float64
	// Seed of realization r is Seed+r.
	Seed int64
}

// NewFileLoader creates a loader rooted at dir
func NewFileLoader(root string, spread float64, seed int64) *FileLoader {
	return &FileLoader{Root: root, Spread: spread, Seed: seed}
}

// Path resolves an instance identifier against the data root
func (l *FileLoader) Path(id string) string {
	rel := strings.TrimLeft(filepath.FromSlash(id), string(filepath.Separator))
	return filepath.Join(l.Root, rel)
}

// Load reads the deterministic environment of an instance
func (l *FileLoader) Load(id string) (*models.Environment, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("instance identifier is empty")
	}
	path := l.Path(id)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open instance %s: %w", path, err)
	}
	defer f.Close()

	env, err := Parse(id, FormatOf(id), f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse instance %s: %w", path, err)
	}
	return env, nil
}

// LoadStochastic returns n independent realizations of an instance
func (l *FileLoader) LoadStochastic(id string, n int) ([]*models.Environment, error) {
	if n <= 0 {
		return nil, fmt.Errorf("number of realizations must be > 0 (got %d)", n)
	}
	nominal, err := l.Load(id)
	if err != nil {
		return nil, err
	}
	return Realize(nominal, n, l.Spread, l.Seed), nil
}

// Realize samples n perturbed copies of env. Every processing time d becomes
// round(d * U[1-spread, 1+spread]), at least 1 for d > 0.
func Realize(env *models.Environment, n int, spread float64, seed int64) []*models.Environment {
	envs := make([]*models.Environment, n)
	for r := 0; r < n; r++ {
		rng := rand.New(rand.NewSource(seed + int64(r)))
		realization := env.Clone()
		realization.Realization = r
		for _, op := range realization.Operations() {
			for i := range op.Alternatives {
				op.Alternatives[i].Duration = perturb(op.Alternatives[i].Duration, spread, rng)
			}
		}
		envs[r] = realization
	}
	return envs
}

func perturb(d int, spread float64, rng *rand.Rand) int {
	if d <= 0 || spread <= 0 {
		return d
	}
	factor := 1 - spread + 2*spread*rng.Float64()
	v := int(math.Round(float64(d) * factor))
	if v < 1 {
		v = 1
	}
	return v
}
