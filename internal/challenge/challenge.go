// Package challenge loads challenge documents and checks them before they are
// offered for judging.
package challenge

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"sqljudge/internal/fixture"
	"sqljudge/internal/schema"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Difficulty levels.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Challenge is a complete judging task: schema, sample data shown to the
// solver, hidden test cases and the reference solution.
type Challenge struct {
	Title          string                   `json:"title" yaml:"title"`
	Description    string                   `json:"description" yaml:"description"`
	Difficulty     string                   `json:"difficulty" yaml:"difficulty"`
	Topics         []string                 `json:"topics" yaml:"topics"`
	Schema         schema.Definition        `json:"schema_definition" yaml:"schema_definition"`
	SampleData     map[string][]fixture.Row `json:"sample_data" yaml:"sample_data"`
	ExpectedOutput []fixture.Row            `json:"expected_output" yaml:"expected_output"`
	SolutionQuery  string                   `json:"solution_query" yaml:"solution_query"`
	TestCases      []fixture.Fixture        `json:"test_cases" yaml:"test_cases"`
	Hints          []string                 `json:"hints" yaml:"hints"`
}

// Load reads a challenge from a JSON or YAML file, chosen by extension.
func Load(path string) (Challenge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Challenge{}, errors.Wrap(err, "read challenge")
	}
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	c, err := Decode(data, format)
	if err != nil {
		return Challenge{}, errors.Wrapf(err, "decode %s", path)
	}
	return c, nil
}

// Decode parses a challenge document. Easy challenges never carry hints.
func Decode(data []byte, format string) (Challenge, error) {
	var c Challenge
	switch format {
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&c); err != nil {
			return Challenge{}, err
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &c); err != nil {
			return Challenge{}, err
		}
	default:
		return Challenge{}, errors.Errorf("unknown challenge format %q", format)
	}
	c.Difficulty = strings.ToLower(strings.TrimSpace(c.Difficulty))
	if c.Difficulty == DifficultyEasy {
		c.Hints = nil
	}
	return c, nil
}

// Sample returns the sample data as a fixture, named "sample".
func (c Challenge) Sample() fixture.Fixture {
	return fixture.Fixture{Name: "sample", InputData: c.SampleData, ExpectedOutput: c.ExpectedOutput}
}
