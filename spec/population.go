package spec

import "strconv"

// SamplingMethod is the closed set of sampling strategies.
type SamplingMethod string

const (
	SampleRandom     SamplingMethod = "random"
	SampleStratified SamplingMethod = "stratified"
	SampleSystematic SamplingMethod = "systematic"
)

func (m SamplingMethod) valid() bool {
	switch m {
	case SampleRandom, SampleStratified, SampleSystematic:
		return true
	default:
		return false
	}
}

// Sampling is an optional strategy rendered as a TABLESAMPLE clause on the
// final pipeline rowset in the row-level query's FROM clause, so the sample
// is drawn before the WHERE clause's population filters and exception
// predicates are applied.
type Sampling struct {
	Method           SamplingMethod `json:"method"`
	SampleSize       *int           `json:"sample_size,omitempty"`
	SamplePercentage *float64       `json:"sample_percentage,omitempty"`
	RandomSeed       *int64         `json:"random_seed,omitempty"`
	Justification    string         `json:"justification"`
}

func (s *Sampling) validate(path string) error {
	if s == nil {
		return nil
	}
	if !s.Method.valid() {
		return invalid(path+".method", "method %q is not recognized", s.Method)
	}
	if s.Justification == "" {
		return invalid(path+".justification", "justification must be non-empty")
	}
	hasSize := s.SampleSize != nil
	hasPct := s.SamplePercentage != nil
	if hasSize == hasPct {
		return invalid(path, "exactly one of sample_size or sample_percentage must be set")
	}
	if hasSize && *s.SampleSize <= 0 {
		return invalid(path+".sample_size", "sample_size must be > 0")
	}
	if hasPct && (*s.SamplePercentage <= 0 || *s.SamplePercentage > 100) {
		return invalid(path+".sample_percentage", "sample_percentage must be within (0, 100]")
	}
	return nil
}

// Population describes the base dataset, the ordered pipeline of steps
// applied to it, and an optional sampling strategy.
type Population struct {
	BaseDataset string    `json:"base_dataset"`
	Steps       []Step    `json:"steps"`
	Sampling    *Sampling `json:"sampling,omitempty"`
}

func (p Population) validate(path string) error {
	if p.BaseDataset == "" {
		return invalid(path+".base_dataset", "base_dataset must be non-empty")
	}

	seen := map[string]bool{}
	knownDatasets := map[string]bool{p.BaseDataset: true}
	for i, step := range p.Steps {
		stepPath := stepPathAt(path, i, step.StepID)
		if step.StepID == "" {
			return invalid(stepPath, "step_id must be non-empty")
		}
		if seen[step.StepID] {
			return invalid(stepPath, "duplicate step_id %q", step.StepID)
		}
		seen[step.StepID] = true

		if j, ok := step.Action.(JoinLeft); ok {
			if !knownDatasets[j.LeftDataset] {
				return invalid(stepPath+".left_dataset", "left_dataset %q is not the base dataset or introduced by a prior step", j.LeftDataset)
			}
			knownDatasets[step.StepID] = true
		}
	}

	return p.Sampling.validate(path + ".sampling")
}

func stepPathAt(path string, i int, stepID string) string {
	if stepID == "" {
		return path + ".steps[" + strconv.Itoa(i) + "]"
	}
	return path + ".steps[" + stepID + "]"
}
