package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"supplier-pricing/internal/types"
)

// FileSink stores failure artifacts under dir. An artifact keyed
// "<fingerprint>/<step>-attempt-<n>" produces a .png screenshot, an .html
// DOM snapshot and a .json manifest with that prefix.
type FileSink struct {
	dir    string
	logger types.Logger
}

// NewFileSink creates a sink rooted at dir
func NewFileSink(dir string, logger types.Logger) *FileSink {
	return &FileSink{dir: dir, logger: logger}
}

// Dir returns the artifact root
func (s *FileSink) Dir() string {
	return s.dir
}

// Emit writes the artifact files
func (s *FileSink) Emit(ctx context.Context, artifact types.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if artifact.Key == "" {
		return fmt.Errorf("artifact has no key")
	}
	base := filepath.Join(s.dir, filepath.FromSlash(artifact.Key))
	if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}

	if len(artifact.Screenshot) > 0 {
		if err := os.WriteFile(base+".png", artifact.Screenshot, 0o644); err != nil {
			return fmt.Errorf("write screenshot: %w", err)
		}
	}
	if artifact.DOM != "" {
		if err := os.WriteFile(base+".html", []byte(artifact.DOM), 0o644); err != nil {
			return fmt.Errorf("write DOM snapshot: %w", err)
		}
	}

	manifest, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}
	if err := os.WriteFile(base+".json", manifest, 0o644); err != nil {
		return fmt.Errorf("write artifact manifest: %w", err)
	}

	s.logger.Infof("[%s] failure artifact saved to %s", artifact.Supplier, base)
	return nil
}
