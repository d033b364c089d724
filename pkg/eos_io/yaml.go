/* pkg/eos_io/yaml.go */

package eos_io

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// MarshalYAML encodes in with two-space indentation.
func MarshalYAML(in interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(in); err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteYAML marshals in and writes it atomically with the given mode.
// It returns false without touching the file when the content is unchanged.
func WriteYAML(ctx context.Context, filePath string, in interface{}, perm os.FileMode) (bool, error) {
	logger := otelzap.Ctx(ctx)
	logger.Debug("Writing YAML file", zap.String("path", filePath))

	data, err := MarshalYAML(in)
	if err != nil {
		logger.Error("Failed to marshal YAML", zap.Error(err))
		return false, err
	}

	if FileHasContent(filePath, data) {
		logger.Debug("YAML file already up to date", zap.String("path", filePath))
		return false, nil
	}

	if err := WriteFileAtomic(ctx, filePath, data, perm); err != nil {
		logger.Error("Failed to write YAML file",
			zap.String("path", filePath),
			zap.Error(err))
		return false, fmt.Errorf("failed to write YAML file: %w", err)
	}
	return true, nil
}
