package model

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// LoadMetadata reads a model_metadata.json file.
func LoadMetadata(path string) (*Metadata, error) {
	metaFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read metadata: %v", ErrConfig, err)
	}

	var metadata Metadata
	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return nil, fmt.Errorf("%w: failed to parse metadata: %v", ErrConfig, err)
	}
	if metadata.InputName == "" {
		metadata.InputName = "input"
	}
	if metadata.OutputName == "" {
		metadata.OutputName = "output"
	}
	if NumElements(metadata.InputShape) <= 0 || NumElements(metadata.OutputShape) <= 0 {
		return nil, fmt.Errorf("%w: metadata %s has empty input or output shape", ErrConfig, path)
	}
	return &metadata, nil
}

// LoadLabels reads one class name per line, trimming surrounding whitespace.
// Trailing blank lines are dropped; interior blank lines are kept so indices
// stay aligned with the model output.
func LoadLabels(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read labels: %v", ErrConfig, err)
	}

	var labels []string
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		labels = append(labels, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to scan labels: %v", ErrConfig, err)
	}
	for len(labels) > 0 && labels[len(labels)-1] == "" {
		labels = labels[:len(labels)-1]
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: label file %s is empty", ErrConfig, path)
	}
	return labels, nil
}
