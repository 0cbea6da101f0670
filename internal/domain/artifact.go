package domain

import (
	"errors"
	"strings"
	"time"
)

// Artifact is a typed output produced by a pipeline step. The content
// body lives in the object store under ObjectKey; the row carries
// metadata only.
type Artifact struct {
	ID           string
	RunID        string
	StepKey      string
	ArtifactType string
	Format       string
	Title        string
	ObjectKey    string
	EvidenceRefs []string
	Version      int
	CreatedAt    time.Time
}

func (a Artifact) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return errors.New("artifact id is required")
	}
	if strings.TrimSpace(a.RunID) == "" {
		return errors.New("run id is required")
	}
	if strings.TrimSpace(a.ArtifactType) == "" {
		return errors.New("artifact type is required")
	}
	if strings.TrimSpace(a.Format) == "" {
		return errors.New("format is required")
	}
	if strings.TrimSpace(a.Title) == "" {
		return errors.New("title is required")
	}
	if strings.TrimSpace(a.ObjectKey) == "" {
		return errors.New("object key is required")
	}
	if a.Version < 1 {
		return errors.New("version must be >= 1")
	}
	return nil
}
