package pipeline

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/taxroll-cli/internal/model"
)

// Summary is the YAML run report written next to the output file.
type Summary struct {
	User        string              `yaml:"user,omitempty"`
	InputFile   string              `yaml:"input_file"`
	OutputFile  string              `yaml:"output_file"`
	GeneratedAt time.Time           `yaml:"generated_at"`
	Stats       model.PipelineStats `yaml:"stats"`
}

// WriteSummary serializes the summary to path as YAML.
func WriteSummary(path string, s Summary) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return eris.Wrap(err, "pipeline: marshal summary")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "pipeline: write summary %s", path)
	}
	return nil
}
