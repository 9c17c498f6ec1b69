package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/deliverable-studio/backend/internal/export"
	"github.com/deliverable-studio/backend/internal/generate"
	"github.com/deliverable-studio/backend/internal/intake"
	"github.com/deliverable-studio/backend/internal/media"
	"github.com/deliverable-studio/backend/internal/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const cliUser = "cli"

type exportOptions struct {
	projectFile string
	idea        string
	subject     string
	discipline  string
	mediaDir    string
	format      string
	outDir      string
}

func newExportCmd(a *app) *cobra.Command {
	opts := &exportOptions{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render a deliverable from a project file and a media directory",
		Example: `  studio export --project project.json --media ./figures --format pdf
  studio export --idea "soil moisture sensing" --subject Agronomy --format pptx --out ./out`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.export(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.projectFile, "project", "", "project JSON file (title, abstract, sections)")
	f.StringVar(&opts.idea, "idea", "", "project idea used to generate content when --project is not given")
	f.StringVar(&opts.subject, "subject", "", "subject used for generation and captions")
	f.StringVar(&opts.discipline, "discipline", "", "discipline used for generation and captions")
	f.StringVar(&opts.mediaDir, "media", "", "directory of images to include")
	f.StringVarP(&opts.format, "format", "f", "pdf", "output format: pdf, pptx or png")
	f.StringVarP(&opts.outDir, "out", "o", "", "output directory (default is <data dir>/exports)")
	return cmd
}

func (a *app) export(cmd *cobra.Command, opts *exportOptions) error {
	ctx := cmd.Context()
	logger := a.logger

	format, err := export.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	brief := generate.Brief{Idea: opts.idea, Subject: opts.subject, Discipline: opts.discipline}
	project, err := loadProject(ctx, opts.projectFile, brief)
	if err != nil {
		return err
	}

	p, err := newPipeline(a.cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	ws := p.workspaces.Create(cliUser, project)
	defer p.workspaces.Delete(ws.ID)
	if opts.subject != "" || opts.idea != "" {
		if err := p.workspaces.SetBrief(ws.ID, brief); err != nil {
			return err
		}
	}

	if opts.mediaDir != "" {
		files, err := readMediaDir(opts.mediaDir, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		if err := ingest(ctx, p, ws.ID, files, cmd.ErrOrStderr()); err != nil {
			return err
		}
	}

	out, err := export.DefaultRegistry().Render(ctx, format, export.Input{
		Project: ws.Project(),
		Media:   ws.Gallery.Items(),
		Resolve: func(ctx context.Context, m models.MediaFile) ([]byte, error) {
			return p.storage.Fetch(ctx, m.Src)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to export %s: %w", format, err)
	}

	outDir := opts.outDir
	if outDir == "" {
		outDir = filepath.Join(a.cfg.GetDataDir(), "exports")
	}
	path, err := writeOutput(outDir, out)
	if err != nil {
		return err
	}

	logger.Debug("export written", zap.String("path", path), zap.Int("bytes", len(out.Data)))
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%d pages)\n", path, out.Pages)
	return nil
}

// loadProject reads the project file, or generates content from the brief
// when no file is given.
func loadProject(ctx context.Context, path string, brief generate.Brief) (models.ProjectData, error) {
	if path == "" {
		if brief.Idea == "" {
			return models.ProjectData{}, errors.New("either --project or --idea is required")
		}
		return generate.TemplateGenerator{}.Generate(ctx, brief)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return models.ProjectData{}, fmt.Errorf("failed to read project file: %w", err)
	}
	var project models.ProjectData
	if err := json.Unmarshal(data, &project); err != nil {
		return models.ProjectData{}, fmt.Errorf("failed to parse project file %s: %w", path, err)
	}
	return project, nil
}

// readMediaDir loads the image files of dir in name order. Files without an
// accepted image extension are reported to w and left out of the batch, so
// they do not count against the gallery capacity.
func readMediaDir(dir string, w io.Writer) ([]media.Candidate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read media directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var files []media.Candidate
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if !media.HasAcceptedExtension(entry.Name()) {
			fmt.Fprintf(w, "skipped %s: not an image file\n", entry.Name())
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, media.Candidate{
			Name:     entry.Name(),
			MimeType: http.DetectContentType(data),
			Size:     int64(len(data)),
			Data:     data,
		})
	}
	return files, nil
}

// ingest runs one intake batch and waits for it. Rejected files are
// reported to w and do not fail the export.
func ingest(ctx context.Context, p *pipeline, workspaceID string, files []media.Candidate, w io.Writer) error {
	if len(files) == 0 {
		return nil
	}
	job, err := p.intake.Start(ctx, workspaceID, cliUser, files)
	if err != nil {
		return fmt.Errorf("failed to add media: %w", err)
	}

	if err := waitJob(ctx, p.intake, job.ID); err != nil {
		return err
	}

	final, ok := p.intake.Get(job.ID)
	if !ok {
		return fmt.Errorf("intake job %s disappeared", job.ID)
	}
	if final.Status != intake.StatusComplete {
		return fmt.Errorf("intake failed: %s", final.Error)
	}
	for _, f := range final.Files {
		if f.Stage == intake.StageRejected {
			fmt.Fprintf(w, "skipped %s: %s\n", f.FileName, f.Reason)
		}
	}
	return nil
}

func waitJob(ctx context.Context, m *intake.Manager, jobID string) error {
	events, unsubscribe, ok := m.Subscribe(jobID)
	if !ok {
		return nil
	}
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, open := <-events:
			if !open {
				return nil
			}
		}
	}
}

// writeOutput writes the rendered file through a temp file so a failed
// write never leaves a partial deliverable behind.
func writeOutput(dir string, out *export.Output) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(out.Data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	path := filepath.Join(dir, out.FileName)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return path, nil
}
