package usecase

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/m-mizutani/cistat/pkg/domain"
	"github.com/m-mizutani/cistat/pkg/domain/interfaces"
	"github.com/m-mizutani/cistat/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
)

// FileReportStore keeps the latest report as a JSON file.
type FileReportStore struct {
	path string
}

func NewFileReportStore(path string) interfaces.ReportStore {
	if path == "" {
		path = model.DefaultReportPath
	}
	return &FileReportStore{path: path}
}

// Save writes the report to a temporary file and renames it over the target,
// so readers never observe a partial report.
func (s *FileReportStore) Save(ctx context.Context, report model.Report) error {
	data, err := EncodeReport(report)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return domain.ErrStore.Wrap(err)
	}

	tmp, err := os.CreateTemp(dir, ".cistat-report-*")
	if err != nil {
		return domain.ErrStore.Wrap(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return domain.ErrStore.Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return domain.ErrStore.Wrap(err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return domain.ErrStore.Wrap(goerr.Wrap(err, "failed to replace report", goerr.V("path", s.path)))
	}

	return nil
}

func (s *FileReportStore) Load(ctx context.Context) (model.Report, error) {
	data, err := os.ReadFile(s.path) // #nosec G304 - path is given by configuration
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrReportNotFound.Wrap(err)
		}
		return nil, domain.ErrStore.Wrap(err)
	}
	return DecodeReport(data)
}

// EncodeReport serializes a report as indented JSON with a trailing newline.
func EncodeReport(report model.Report) ([]byte, error) {
	if report == nil {
		report = model.Report{}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal report")
	}
	return append(data, '\n'), nil
}
