package usecase

import (
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/cistat/pkg/domain"
	"github.com/m-mizutani/cistat/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/xeipuuv/gojsonschema"
)

const reportSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "required": ["category", "path", "html_url", "jobs", "total_runs", "latest_run"],
    "properties": {
      "id": {"type": "integer"},
      "category": {"enum": ["CI / Testing", "Build / Deploy", "Code Quality / Security", "Other"]},
      "path": {"type": "string"},
      "html_url": {"type": "string"},
      "total_runs": {"type": "integer", "minimum": 0},
      "latest_run": {
        "oneOf": [
          {"type": "null"},
          {
            "type": "object",
            "required": ["conclusion", "created_at", "html_url"],
            "properties": {
              "conclusion": {"type": ["string", "null"]},
              "created_at": {"type": "string"},
              "html_url": {"type": "string"}
            }
          }
        ]
      },
      "jobs": {
        "type": "object",
        "additionalProperties": {
          "type": "object",
          "required": ["runs", "fails", "skips", "urls", "results", "run_nums"],
          "properties": {
            "runs": {"type": "integer", "minimum": 0},
            "fails": {"type": "integer", "minimum": 0},
            "skips": {"type": "integer", "minimum": 0},
            "urls": {"type": "array", "items": {"type": "string"}},
            "results": {"type": "array", "items": {"enum": ["Pass", "Fail", "Skip"]}},
            "run_nums": {"type": "array", "items": {"type": "integer"}}
          }
        }
      }
    }
  }
}`

var reportSchemaLoader = gojsonschema.NewStringLoader(reportSchema)

// SchemaValidationError lists the violations of a report document.
type SchemaValidationError struct {
	Errors []string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("schema validation failed with %d error(s): %v", len(e.Errors), e.Errors)
}

// DecodeReport validates data against the report schema and decodes it. Stat
// sequences of unequal length are rejected as well, since the schema cannot
// express that.
func DecodeReport(data []byte) (model.Report, error) {
	result, err := gojsonschema.Validate(reportSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, domain.ErrStore.Wrap(goerr.Wrap(err, "failed to validate report"))
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, e := range result.Errors() {
			errs[i] = e.String()
		}
		return nil, domain.ErrStore.Wrap(&SchemaValidationError{Errors: errs})
	}

	var report model.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, domain.ErrStore.Wrap(goerr.Wrap(err, "failed to decode report"))
	}

	for name, wf := range report {
		for job, s := range wf.Jobs {
			if len(s.Results) != s.Runs || len(s.URLs) != s.Runs || len(s.RunNums) != s.Runs || s.Fails+s.Skips > s.Runs {
				return nil, domain.ErrStore.Wrap(goerr.New("inconsistent job statistics",
					goerr.V("workflow", name),
					goerr.V("job", job),
				))
			}
		}
	}
	return report, nil
}
