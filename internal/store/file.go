package store

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pfrederiksen/civic-events/internal/event"
)

//go:embed data/events.yaml data/fallback.yaml
var defaults embed.FS

const (
	defaultEventsFile   = "data/events.yaml"
	defaultFallbackFile = "data/fallback.yaml"
)

// FileRepository reads datasets from YAML or JSON files. An empty path
// selects the dataset built into the binary.
type FileRepository struct {
	eventsPath   string
	fallbackPath string
}

// NewFile creates a FileRepository. Paths may start with ~/.
func NewFile(eventsPath, fallbackPath string) (*FileRepository, error) {
	ep, err := expandHome(eventsPath)
	if err != nil {
		return nil, err
	}
	fp, err := expandHome(fallbackPath)
	if err != nil {
		return nil, err
	}
	return &FileRepository{eventsPath: ep, fallbackPath: fp}, nil
}

// Load reads and validates the canonical event collection.
func (r *FileRepository) Load(ctx context.Context) (event.Collection, error) {
	data, name, err := r.read(r.eventsPath, defaultEventsFile)
	if err != nil {
		return event.Collection{}, err
	}

	var ds Dataset
	if err := decode(name, data, &ds); err != nil {
		return event.Collection{}, fmt.Errorf("parsing events %s: %w", name, err)
	}
	return collect(ds)
}

// Fallback reads and validates the curated fallback items.
func (r *FileRepository) Fallback(ctx context.Context) ([]event.NewsItem, error) {
	data, name, err := r.read(r.fallbackPath, defaultFallbackFile)
	if err != nil {
		return nil, err
	}

	var ds FallbackDataset
	if err := decode(name, data, &ds); err != nil {
		return nil, fmt.Errorf("parsing fallback %s: %w", name, err)
	}
	return checkFallback(ds.Items)
}

func (r *FileRepository) read(path, builtin string) ([]byte, string, error) {
	if path == "" {
		data, err := defaults.ReadFile(builtin)
		if err != nil {
			return nil, "", fmt.Errorf("reading built-in %s: %w", builtin, err)
		}
		return data, builtin, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", path, err)
	}
	return data, path, nil
}

// decode picks the format from the file extension; anything but .json is YAML.
// Unknown fields are rejected so typos in curated data do not pass silently.
func decode(name string, data []byte, v any) error {
	if strings.EqualFold(filepath.Ext(name), ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(v)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(v)
}

// expandHome expands a leading ~/ to the user's home directory.
func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}
