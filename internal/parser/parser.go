// Package parser translates declarative scan requests into batch
// descriptors understood by the orchestrator.
package parser

import (
	"fmt"
	"path/filepath"

	"github.com/CZERTAINLY/fossrun/internal/model"
)

const defaultMode = "all"

// Parse returns the batch for req. The result is deterministic and
// depends on req only.
func Parse(req model.Request) (model.Batch, error) {
	cfg := req.Config
	var batch model.Batch

	switch req.Type {
	case model.RequestAnalyze:
		batch.Mode = append([]string(nil), cfg.Mode...)
		if len(batch.Mode) == 0 {
			batch.Mode = []string{defaultMode}
		}
		for idx, s := range cfg.Subjects {
			if s.Path == "" {
				return model.Batch{}, fmt.Errorf("%w: subject %d has empty path", model.ErrInvalidRequest, idx)
			}
			switch s.Type {
			case model.SubjectDir, model.SubjectFile:
				batch.Paths = append(batch.Paths, s.Path)
			case model.SubjectWorkspace, model.SubjectLink:
				batch.Workspaces = append(batch.Workspaces, s.Path)
			default:
				return model.Batch{}, fmt.Errorf("%w: subject %d has unsupported type %q", model.ErrInvalidRequest, idx, s.Type)
			}
		}
		if len(batch.Paths) == 0 && len(batch.Workspaces) == 0 {
			batch.Paths = []string{model.NoSubject}
		}
	case model.RequestCompare:
		if len(cfg.Subjects) == 0 {
			return model.Batch{}, fmt.Errorf("%w: compare needs at least one report", model.ErrInvalidRequest)
		}
		batch.Mode = []string{model.ModeCompare}
		for idx, s := range cfg.Subjects {
			if s.Path == "" {
				return model.Batch{}, fmt.Errorf("%w: subject %d has empty path", model.ErrInvalidRequest, idx)
			}
			batch.Paths = append(batch.Paths, s.Path)
		}
	default:
		return model.Batch{}, fmt.Errorf("%w: unsupported type %q", model.ErrInvalidRequest, req.Type)
	}

	batch.Flags = flags(cfg)
	return batch, nil
}

func flags(cfg model.RequestConfig) []string {
	var ret []string
	if cfg.OutputFormat != "" {
		ret = append(ret, "-f", cfg.OutputFormat)
	}
	switch {
	case cfg.OutputPath != "" && cfg.OutputFileName != "":
		ret = append(ret, "-o", filepath.Join(cfg.OutputPath, cfg.OutputFileName))
	case cfg.OutputPath != "":
		ret = append(ret, "-o", cfg.OutputPath)
	case cfg.OutputFileName != "":
		ret = append(ret, "-o", cfg.OutputFileName)
	}
	return ret
}
