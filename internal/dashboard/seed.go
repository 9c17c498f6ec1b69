package dashboard

import (
	"context"
	"time"

	"github.com/deliverable-studio/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var seedProjects = []struct {
	title      string
	discipline string
	sub        models.Subsections
	review     bool
	age        time.Duration
}{
	{"Effects of Light on Plant Growth", "Biology", models.Subsections{Report: true, Slides: true, Gallery: true}, false, 72 * time.Hour},
	{"Urban Heat Islands", "Environmental Science", models.Subsections{Report: true}, false, 48 * time.Hour},
	{"Bridge Load Testing", "Civil Engineering", models.Subsections{Report: true, Slides: true}, true, 24 * time.Hour},
	{"Market Trends in Renewable Energy", "Economics", models.Subsections{}, false, time.Hour},
}

// Seed fills an empty store with example projects. It returns how many were added.
func (s *Store) Seed(ctx context.Context) (int, error) {
	existing, err := s.List(ctx, "")
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := s.now()
	for _, sp := range seedProjects {
		progress := Progress(sp.sub)
		status := DeriveStatus(progress, "")
		if sp.review && progress < 100 {
			status = models.ProjectStatusReview
		}
		ts := now.Add(-sp.age)
		p := models.Project{
			ID:          uuid.New().String(),
			Title:       sp.title,
			Discipline:  sp.discipline,
			Status:      status,
			Progress:    progress,
			Subsections: sp.sub,
			CreatedAt:   ts,
			UpdatedAt:   ts,
		}
		if err := s.insert(ctx, p); err != nil {
			return 0, err
		}
	}
	s.logger.Info("seeded dashboard", zap.Int("projects", len(seedProjects)))
	return len(seedProjects), nil
}
