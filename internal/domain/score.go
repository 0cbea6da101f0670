package domain

import (
	"errors"
	"strings"
	"time"
)

// IdeaScore is one rubric evaluation of a candidate idea within a run.
type IdeaScore struct {
	ID            string
	RunID         string
	IdeaKey       string
	RubricVersion string
	Dimensions    Metadata
	Weights       Metadata
	OverallScore  float64
	Unknowns      []string
	CreatedAt     time.Time
}

func (s IdeaScore) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("score id is required")
	}
	if strings.TrimSpace(s.RunID) == "" {
		return errors.New("run id is required")
	}
	if strings.TrimSpace(s.IdeaKey) == "" {
		return errors.New("idea key is required")
	}
	if strings.TrimSpace(s.RubricVersion) == "" {
		return errors.New("rubric version is required")
	}
	return nil
}
