// Package storage keeps simulation runs on disk, one directory per run:
//
//	<base>/<run id>/metadata.json   run configuration and outcome
//	<base>/<run id>/track.log       checkpoint log, one line per step
//	<base>/<run id>/track.log.zst   the same log once archived
//	<base>/<run id>/props.csv       averaged thermodynamic properties
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/san-kum/moldyn/internal/config"
)

const (
	metadataFile = "metadata.json"
	trackFile    = "track.log"
	archiveFile  = "track.log.zst"
	propsFile    = "props.csv"
)

// Run states recorded in RunMetadata.Status.
const (
	StatusRunning     = "running"
	StatusCompleted   = "completed"
	StatusInterrupted = "interrupted"
	StatusFailed      = "failed"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Timestamp time.Time          `json:"timestamp"`
	Config    config.Config      `json:"config"`
	Particles int                `json:"particles"`
	StepCount int                `json:"step_count"`
	Time      float64            `json:"time"`
	Extents   []float64          `json:"extents,omitempty"`
	Status    string             `json:"status"`
	Error     string             `json:"error,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

// Create makes a new run directory for cfg and writes its initial metadata.
func (s *Store) Create(cfg *config.Config) (*RunMetadata, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}

	now := time.Now()
	base := fmt.Sprintf("%s_%s", cfg.Name, now.Format("20060102-150405"))
	id := base
	for n := 2; ; n++ {
		err := os.Mkdir(filepath.Join(s.baseDir, id), 0755)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, err
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}

	meta := &RunMetadata{
		ID:        id,
		Timestamp: now,
		Config:    *cfg,
		Status:    StatusRunning,
	}
	if err := s.SaveMetadata(meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

func (s *Store) TrackPath(runID string) string {
	return filepath.Join(s.baseDir, runID, trackFile)
}

func (s *Store) SaveMetadata(meta *RunMetadata) error {
	metaFile, err := os.Create(filepath.Join(s.RunDir(meta.ID), metadataFile))
	if err != nil {
		return err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return err
	}
	return metaFile.Close()
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.RunDir(runID), metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("storage: %s: %w", runID, err)
	}
	return &meta, nil
}

// List returns the metadata of every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].Timestamp.Equal(runs[j].Timestamp) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}
