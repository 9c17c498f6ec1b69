// Package dashboard keeps the project list shown on the dashboard in an
// in-memory DuckDB database.
package dashboard

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/deliverable-studio/backend/internal/models"
	"github.com/google/uuid"
	"github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned for unknown project IDs.
	ErrNotFound = errors.New("project not found")
	// ErrInvalid is returned for malformed project input.
	ErrInvalid = errors.New("invalid project")
)

const schema = `
	CREATE TABLE IF NOT EXISTS projects (
		id          VARCHAR PRIMARY KEY,
		title       VARCHAR NOT NULL,
		discipline  VARCHAR NOT NULL,
		status      VARCHAR NOT NULL,
		progress    INTEGER NOT NULL,
		report      BOOLEAN NOT NULL,
		slides      BOOLEAN NOT NULL,
		gallery     BOOLEAN NOT NULL,
		created_at  TIMESTAMP NOT NULL,
		updated_at  TIMESTAMP NOT NULL
	)
`

const selectColumns = `id, title, discipline, status, progress, report, slides, gallery, created_at, updated_at`

// NewProject is the input for Create.
type NewProject struct {
	Title      string `json:"title"`
	Discipline string `json:"discipline"`
}

// Store is the dashboard project list.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
	logger  *zap.Logger
	now     func() time.Time
}

// NewStore opens an in-memory database. Nothing survives Close.
func NewStore(logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	connector, err := duckdb.NewConnector("", func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a draft project.
func (s *Store) Create(ctx context.Context, in NewProject) (models.Project, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.Project{}, fmt.Errorf("%w: title is required", ErrInvalid)
	}

	now := s.now()
	p := models.Project{
		ID:         uuid.New().String(),
		Title:      title,
		Discipline: strings.TrimSpace(in.Discipline),
		Status:     models.ProjectStatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.insert(ctx, p); err != nil {
		return models.Project{}, err
	}
	return p, nil
}

func (s *Store) insert(ctx context.Context, p models.Project) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (`+selectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Discipline, string(p.Status), p.Progress,
		p.Subsections.Report, p.Subsections.Slides, p.Subsections.Gallery,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

// Get returns one project.
func (s *Store) Get(ctx context.Context, id string) (models.Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Project{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, err
}

// List returns projects, most recently updated first. An empty status
// returns every project.
func (s *Store) List(ctx context.Context, status models.ProjectStatus) ([]models.Project, error) {
	query := `SELECT ` + selectColumns + ` FROM projects`
	var args []any
	if status != "" {
		if !status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalid, status)
		}
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY updated_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProgress stores the subsection flags and recomputes progress and
// status. Each completed subsection is worth a third.
func (s *Store) UpdateProgress(ctx context.Context, id string, sub models.Subsections) (models.Project, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	p, err := s.Get(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	p.Subsections = sub
	p.Progress = Progress(sub)
	p.Status = DeriveStatus(p.Progress, p.Status)
	p.UpdatedAt = s.now()

	if err := s.update(ctx, p); err != nil {
		return models.Project{}, err
	}
	return p, nil
}

// SetStatus sets the status explicitly, e.g. to move a project into review.
func (s *Store) SetStatus(ctx context.Context, id string, status models.ProjectStatus) (models.Project, error) {
	if !status.Valid() {
		return models.Project{}, fmt.Errorf("%w: unknown status %q", ErrInvalid, status)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	p, err := s.Get(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	p.Status = status
	p.UpdatedAt = s.now()
	if err := s.update(ctx, p); err != nil {
		return models.Project{}, err
	}
	return p, nil
}

func (s *Store) update(ctx context.Context, p models.Project) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE projects
		SET status = ?, progress = ?, report = ?, slides = ?, gallery = ?, updated_at = ?
		WHERE id = ?`,
		string(p.Status), p.Progress, p.Subsections.Report, p.Subsections.Slides, p.Subsections.Gallery,
		p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return nil
}

// Delete removes a project.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Progress returns the completion percentage for the subsection flags.
func Progress(sub models.Subsections) int {
	done := 0
	for _, ok := range []bool{sub.Report, sub.Slides, sub.Gallery} {
		if ok {
			done++
		}
	}
	return int(math.Round(float64(done) * 100 / 3))
}

// DeriveStatus maps progress to a status. A project in review stays in
// review until it is complete.
func DeriveStatus(progress int, current models.ProjectStatus) models.ProjectStatus {
	switch {
	case progress >= 100:
		return models.ProjectStatusCompleted
	case progress <= 0:
		return models.ProjectStatusDraft
	case current == models.ProjectStatusReview:
		return models.ProjectStatusReview
	default:
		return models.ProjectStatusInProgress
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (models.Project, error) {
	var p models.Project
	var status string
	err := row.Scan(
		&p.ID, &p.Title, &p.Discipline, &status, &p.Progress,
		&p.Subsections.Report, &p.Subsections.Slides, &p.Subsections.Gallery,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("failed to read project: %w", err)
	}
	p.Status = models.ProjectStatus(status)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}
