package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/burka/podpulse/internal/quota"
	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
)

// exportRows caps the chart and analysis rows of one export.
const exportRows = 1000

// ExportService serves data downloads. Export is not metered but is only
// open to paid plans.
type ExportService struct {
	guard   *quota.Guard
	content ContentStore
}

// NewExportService creates a new ExportService.
func NewExportService(guard *quota.Guard, content ContentStore) *ExportService {
	return &ExportService{guard: guard, content: content}
}

// exportTable is one export in both encodings.
type exportTable struct {
	name    string
	header  []string
	rows    [][]string
	records any
}

// Export handles GET /v1/export
func (s *ExportService) Export(ctx context.Context, input *ExportInput) (*ExportOutput, error) {
	userID, ok := GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	snap, err := s.guard.Limits(ctx, userID)
	if err != nil {
		return nil, quotaError(err)
	}
	if !snap.Plan.CanExport() {
		return nil, planRequiredError(snap, "Data export requires a paid plan.")
	}

	var table exportTable
	switch input.Type {
	case "charts":
		table, err = s.charts(ctx, userID)
	case "analyses":
		table, err = s.analyses(ctx, userID)
	default:
		table, err = s.podcasts(ctx, userID)
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to export data", err)
	}

	out := &ExportOutput{
		ContentDisposition: fmt.Sprintf(`attachment; filename="%s.%s"`, table.name, input.Format),
	}
	if input.Format == "json" {
		out.ContentType = "application/json"
		out.Body, err = json.MarshalIndent(table.records, "", "  ")
	} else {
		out.ContentType = "text/csv; charset=utf-8"
		out.Body, err = encodeCSV(table.header, table.rows)
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to encode export", err)
	}
	return out, nil
}

func (s *ExportService) podcasts(ctx context.Context, userID uuid.UUID) (exportTable, error) {
	podcasts, err := s.content.ListTrackedPodcasts(ctx, userID)
	if err != nil {
		return exportTable{}, err
	}

	records := make([]TrackedPodcast, 0, len(podcasts))
	rows := make([][]string, 0, len(podcasts))
	for _, p := range podcasts {
		r := newTrackedPodcast(p)
		records = append(records, r)
		rows = append(rows, []string{r.PodcastID, r.Source, r.Title, r.CreatedAt})
	}
	return exportTable{
		name:    "tracked-podcasts",
		header:  []string{"podcast_id", "source", "title", "tracked_at"},
		rows:    rows,
		records: records,
	}, nil
}

// ExportChartRow is a chart observation of a tracked podcast.
type ExportChartRow struct {
	ChartPosition
	Title string `json:"title"`
}

func (s *ExportService) charts(ctx context.Context, userID uuid.UUID) (exportTable, error) {
	tracked, err := s.content.ListTrackedPodcasts(ctx, userID)
	if err != nil {
		return exportTable{}, err
	}
	titles := make(map[string]string, len(tracked))
	for _, p := range tracked {
		titles[p.Source+":"+p.PodcastID] = p.Title
	}

	positions, err := s.content.ListTrackedChartPositions(ctx, userID, exportRows)
	if err != nil {
		return exportTable{}, err
	}

	records := make([]ExportChartRow, 0, len(positions))
	rows := make([][]string, 0, len(positions))
	for _, p := range positions {
		r := ExportChartRow{ChartPosition: newChartPosition(p), Title: titles[p.Source+":"+p.PodcastID]}
		records = append(records, r)
		rows = append(rows, []string{
			r.PodcastID, r.Title, r.Source, r.Country, r.Category, strconv.Itoa(r.Position), r.CapturedAt,
		})
	}
	return exportTable{
		name:    "chart-positions",
		header:  []string{"podcast_id", "title", "source", "country", "category", "position", "captured_at"},
		rows:    rows,
		records: records,
	}, nil
}

func (s *ExportService) analyses(ctx context.Context, userID uuid.UUID) (exportTable, error) {
	analyses, err := s.content.ListAnalyses(ctx, userID, exportRows)
	if err != nil {
		return exportTable{}, err
	}

	records := make([]Analysis, 0, len(analyses))
	rows := make([][]string, 0, len(analyses))
	for _, a := range analyses {
		r := newAnalysis(a)
		records = append(records, r)
		rows = append(rows, []string{r.ID, r.Kind, r.Subject, r.Result, r.CreatedAt})
	}
	return exportTable{
		name:    "ai-analyses",
		header:  []string{"id", "kind", "subject", "result", "created_at"},
		rows:    rows,
		records: records,
	}, nil
}

// encodeCSV writes header and rows. Cells that a spreadsheet would run as a
// formula are prefixed with a quote.
func encodeCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, row := range rows {
		safe := make([]string, len(row))
		for i, cell := range row {
			safe[i] = csvCell(cell)
		}
		if err := w.Write(safe); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func csvCell(v string) string {
	if v != "" && strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return "'" + v
	}
	return v
}
