package instance

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/psantana5/shopbench/pkg/models"
)

// ErrParse is returned for malformed instance files
var ErrParse = errors.New("malformed instance")

// Format identifies an instance file layout
type Format string

const (
	FormatJobShop  Format = "jsp"
	FormatFlowShop Format = "fsp"
	FormatFlexible Format = "fjsp"
	FormatSetup    Format = "fjsp_sdst"
)

// FormatOf picks the file layout from an instance identifier
func FormatOf(id string) Format {
	lower := strings.ToLower(id)
	switch {
	case strings.Contains(lower, "fjsp_sdst"):
		return FormatSetup
	case strings.Contains(lower, "fjsp"), strings.HasSuffix(lower, ".fjs"):
		return FormatFlexible
	case strings.Contains(strings.ReplaceAll(lower, "fjsp", ""), "fsp"):
		return FormatFlowShop
	default:
		return FormatJobShop
	}
}

// tokens reads every integer of r, skipping blank and '#' comment lines
type tokens struct {
	values []float64
	pos    int
	header int // number of fields on the first data line
}

func readTokens(r io.Reader) (*tokens, error) {
	t := &tokens{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if t.header == 0 {
			t.header = len(fields)
		}
		for _, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %q is not a number", ErrParse, line, field)
			}
			t.values = append(t.values, v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read instance: %w", err)
	}
	return t, nil
}

func (t *tokens) next(what string) (int, error) {
	if t.pos >= len(t.values) {
		return 0, fmt.Errorf("%w: unexpected end of file reading %s", ErrParse, what)
	}
	v := t.values[t.pos]
	t.pos++
	if v != float64(int(v)) {
		return 0, fmt.Errorf("%w: %s must be an integer (got %v)", ErrParse, what, v)
	}
	return int(v), nil
}

func (t *tokens) positive(what string) (int, error) {
	v, err := t.next(what)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("%w: %s must be > 0 (got %d)", ErrParse, what, v)
	}
	return v, nil
}

// Parse decodes an instance in the given format
func Parse(name string, format Format, r io.Reader) (*models.Environment, error) {
	t, err := readTokens(r)
	if err != nil {
		return nil, err
	}

	var env *models.Environment
	switch format {
	case FormatJobShop:
		env, err = parseJobShop(name, t)
	case FormatFlowShop:
		env, err = parseFlowShop(name, t)
	case FormatFlexible:
		env, err = parseFlexible(name, t)
	case FormatSetup:
		env, err = parseFlexible(name, t)
		if err == nil {
			err = parseSetupTimes(env, t)
		}
	default:
		return nil, fmt.Errorf("unknown instance format %q", format)
	}
	if err != nil {
		return nil, err
	}

	if err := env.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return env, nil
}

// n m, then n rows of m (machine duration) pairs, machines 0-based
func parseJobShop(name string, t *tokens) (*models.Environment, error) {
	jobs, err := t.positive("job count")
	if err != nil {
		return nil, err
	}
	machines, err := t.positive("machine count")
	if err != nil {
		return nil, err
	}

	data := make([][][]models.Alternative, jobs)
	for j := 0; j < jobs; j++ {
		for o := 0; o < machines; o++ {
			m, err := t.next(fmt.Sprintf("machine of job %d op %d", j, o))
			if err != nil {
				return nil, err
			}
			d, err := t.next(fmt.Sprintf("duration of job %d op %d", j, o))
			if err != nil {
				return nil, err
			}
			data[j] = append(data[j], []models.Alternative{{Machine: m, Duration: d}})
		}
	}
	return models.NewEnvironment(name, machines, data), nil
}

// n m, then n rows of m durations in machine order
func parseFlowShop(name string, t *tokens) (*models.Environment, error) {
	jobs, err := t.positive("job count")
	if err != nil {
		return nil, err
	}
	machines, err := t.positive("machine count")
	if err != nil {
		return nil, err
	}

	data := make([][][]models.Alternative, jobs)
	for j := 0; j < jobs; j++ {
		for m := 0; m < machines; m++ {
			d, err := t.next(fmt.Sprintf("duration of job %d on machine %d", j, m))
			if err != nil {
				return nil, err
			}
			data[j] = append(data[j], []models.Alternative{{Machine: m, Duration: d}})
		}
	}
	return models.NewEnvironment(name, machines, data), nil
}

// Brandimarte layout: n m [avg], then per job k { a (machine duration)*a }*k,
// machines 1-based
func parseFlexible(name string, t *tokens) (*models.Environment, error) {
	jobs, err := t.positive("job count")
	if err != nil {
		return nil, err
	}
	machines, err := t.positive("machine count")
	if err != nil {
		return nil, err
	}
	// the header may carry the average number of machines per operation
	if t.header > 2 {
		t.pos += t.header - 2
	}

	data := make([][][]models.Alternative, jobs)
	for j := 0; j < jobs; j++ {
		ops, err := t.positive(fmt.Sprintf("operation count of job %d", j))
		if err != nil {
			return nil, err
		}
		for o := 0; o < ops; o++ {
			k, err := t.positive(fmt.Sprintf("alternative count of job %d op %d", j, o))
			if err != nil {
				return nil, err
			}
			alts := make([]models.Alternative, 0, k)
			for a := 0; a < k; a++ {
				m, err := t.next(fmt.Sprintf("machine of job %d op %d", j, o))
				if err != nil {
					return nil, err
				}
				d, err := t.next(fmt.Sprintf("duration of job %d op %d", j, o))
				if err != nil {
					return nil, err
				}
				alts = append(alts, models.Alternative{Machine: m - 1, Duration: d})
			}
			data[j] = append(data[j], alts)
		}
	}
	return models.NewEnvironment(name, machines, data), nil
}

// one T x T matrix per machine, T = total operations
func parseSetupTimes(env *models.Environment, t *tokens) error {
	n := env.NumOperations()
	setup := make([][][]int, env.NumMachines)
	for m := range setup {
		setup[m] = make([][]int, n)
		for i := 0; i < n; i++ {
			setup[m][i] = make([]int, n)
			for j := 0; j < n; j++ {
				v, err := t.next(fmt.Sprintf("setup time on machine %d (%d,%d)", m, i, j))
				if err != nil {
					return err
				}
				if v < 0 {
					return fmt.Errorf("%w: setup time on machine %d (%d,%d) must be >= 0", ErrParse, m, i, j)
				}
				setup[m][i][j] = v
			}
		}
	}
	env.Setup = setup
	return nil
}
