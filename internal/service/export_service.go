package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/studyloop/lernplan-api/internal/models"
	appErrors "github.com/studyloop/lernplan-api/pkg/errors"
	"github.com/studyloop/lernplan-api/pkg/export"
	"github.com/studyloop/lernplan-api/pkg/jobs"
	"github.com/studyloop/lernplan-api/pkg/storage"
)

// Export kinds and statuses.
const (
	ExportKindWeekPDF  = "week_pdf"
	ExportKindTopicCSV = "topic_csv"

	ExportStatusPending = "pending"
	ExportStatusReady   = "ready"
	ExportStatusFailed  = "failed"
)

// ExportRecord tracks one requested export through the job queue.
type ExportRecord struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	Status    string     `json:"status"`
	File      string     `json:"file,omitempty"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`

	// job parameters
	StartDate string `json:"startDate,omitempty"`
	PlanID    string `json:"planId,omitempty"`
}

var germanWeekdays = map[time.Weekday]string{
	time.Monday:    "Montag",
	time.Tuesday:   "Dienstag",
	time.Wednesday: "Mittwoch",
	time.Thursday:  "Donnerstag",
	time.Friday:    "Freitag",
	time.Saturday:  "Samstag",
	time.Sunday:    "Sonntag",
}

// ExportService renders weekly plans and topic lists into downloadable
// files. Rendering runs on the jobs queue; records track the outcome.
type ExportService struct {
	mu      sync.Mutex
	records map[string]ExportRecord
	queue   *jobs.Queue

	blocks   *BlockService
	sessions *SessionService
	plans    *PlanService
	store    *storage.LocalStorage
	signer   *storage.SignedURLSigner
	pdf      *export.PDFExporter
	csv      *export.CSVExporter
	logger   *zap.Logger
}

// NewExportService constructs the export service. Attach the jobs queue with
// AttachQueue before requesting exports.
func NewExportService(blocks *BlockService, sessions *SessionService, plans *PlanService, store *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger) *ExportService {
	return &ExportService{
		records:  make(map[string]ExportRecord),
		blocks:   blocks,
		sessions: sessions,
		plans:    plans,
		store:    store,
		signer:   signer,
		pdf:      export.NewPDFExporter(),
		csv:      export.NewCSVExporter(),
		logger:   logger,
	}
}

// AttachQueue wires the queue whose handler is HandleJob.
func (s *ExportService) AttachQueue(queue *jobs.Queue) {
	s.queue = queue
}

// RequestWeekPDF enqueues a PDF export of the week starting at startDate.
func (s *ExportService) RequestWeekPDF(startDate string) (*ExportRecord, error) {
	if _, err := time.Parse(models.DateLayout, startDate); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid week start date")
	}
	return s.enqueue(ExportRecord{Kind: ExportKindWeekPDF, StartDate: startDate})
}

// RequestTopicCSV enqueues a CSV export of one plan's topic hierarchy.
func (s *ExportService) RequestTopicCSV(planID string) (*ExportRecord, error) {
	if _, err := s.plans.Get(planID); err != nil {
		return nil, err
	}
	return s.enqueue(ExportRecord{Kind: ExportKindTopicCSV, PlanID: planID})
}

// Get returns the state of one export.
func (s *ExportService) Get(id string) (*ExportRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	return &record, nil
}

// Download validates a signed token and opens the exported file.
func (s *ExportService) Download(token string) (*os.File, string, error) {
	exportID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid download token")
	}

	s.mu.Lock()
	record, ok := s.records[exportID]
	s.mu.Unlock()
	if !ok || record.Status != ExportStatusReady {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export not available")
	}

	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export file missing")
	}
	return file, relPath, nil
}

// HandleJob renders one queued export. Registered as the queue handler.
func (s *ExportService) HandleJob(ctx context.Context, job jobs.Job) error {
	s.mu.Lock()
	record, ok := s.records[job.ID]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	var data []byte
	var filename string
	var err error
	switch record.Kind {
	case ExportKindWeekPDF:
		data, err = s.renderWeekPDF(record.StartDate)
		filename = fmt.Sprintf("week-%s-%s.pdf", record.StartDate, record.ID)
	case ExportKindTopicCSV:
		data, err = s.renderTopicCSV(record.PlanID)
		filename = fmt.Sprintf("topics-%s.csv", record.ID)
	default:
		err = fmt.Errorf("unknown export kind %q", record.Kind)
	}
	if err == nil {
		_, err = s.store.Save(filename, data)
	}

	var token string
	var expiresAt time.Time
	if err == nil {
		token, expiresAt, err = s.signer.Generate(record.ID, filename)
	}

	s.mu.Lock()
	record = s.records[job.ID]
	if err != nil {
		record.Status = ExportStatusFailed
		record.Error = err.Error()
	} else {
		record.Status = ExportStatusReady
		record.File = filename
		record.Token = token
		record.ExpiresAt = &expiresAt
	}
	s.records[job.ID] = record
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("export failed",
			zap.String("exportId", job.ID),
			zap.String("kind", record.Kind),
			zap.Error(err))
		return err
	}
	s.logger.Info("export ready",
		zap.String("exportId", job.ID),
		zap.String("file", filename))
	return nil
}

// CleanupFiles drops exported files older than the TTL.
func (s *ExportService) CleanupFiles(ttl time.Duration) {
	deleted, err := s.store.CleanupOlderThan(ttl)
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Info("stale exports removed", zap.Int("count", len(deleted)))
	}
}

func (s *ExportService) enqueue(record ExportRecord) (*ExportRecord, error) {
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "export queue not running")
	}

	record.ID = models.NewID()
	record.Status = ExportStatusPending
	record.CreatedAt = time.Now().UTC()

	s.mu.Lock()
	s.records[record.ID] = record
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: record.ID, Type: record.Kind}); err != nil {
		s.mu.Lock()
		record.Status = ExportStatusFailed
		record.Error = err.Error()
		s.records[record.ID] = record
		s.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "enqueue export")
	}
	return &record, nil
}

// renderWeekPDF projects seven days of blocks and sessions into a printable
// week, blocks ordered by position before the day's sessions.
func (s *ExportService) renderWeekPDF(startDate string) ([]byte, error) {
	start, err := time.Parse(models.DateLayout, startDate)
	if err != nil {
		return nil, err
	}
	endDate := start.AddDate(0, 0, 6).Format(models.DateLayout)

	blocks, err := s.blocks.ListRange(startDate, endDate)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListRange(startDate, endDate)
	if err != nil {
		return nil, err
	}

	week := export.WeekPlan{Title: fmt.Sprintf("Lernplan %s", startDate)}
	for i := 0; i < 7; i++ {
		day := start.AddDate(0, 0, i)
		date := day.Format(models.DateLayout)
		planDay := export.PlanDay{Date: date, Weekday: germanWeekdays[day.Weekday()]}

		for _, block := range blocks[date] {
			note := block.Rechtsgebiet
			if block.Unterrechtsgebiet != "" {
				note = fmt.Sprintf("%s / %s", block.Rechtsgebiet, block.Unterrechtsgebiet)
			}
			planDay.Entries = append(planDay.Entries, export.PlanEntry{
				Slot:      fmt.Sprintf("Block %d", block.Position),
				BlockType: block.BlockType,
				Title:     block.Title,
				Note:      note,
			})
		}
		for _, sess := range sessions[date] {
			planDay.Entries = append(planDay.Entries, export.PlanEntry{
				Slot:      fmt.Sprintf("%s-%s", sess.StartTime, sess.EndTime),
				BlockType: sess.BlockType,
				Title:     sess.Title,
			})
		}
		week.Days = append(week.Days, planDay)
	}

	return s.pdf.RenderWeek(week)
}

// renderTopicCSV flattens one plan into rows, hidden chapters blanked.
func (s *ExportService) renderTopicCSV(planID string) ([]byte, error) {
	plan, err := s.plans.Get(planID)
	if err != nil {
		return nil, err
	}

	var rows []export.TopicRow
	for _, rg := range plan.Rechtsgebiete {
		for _, urg := range rg.Unterrechtsgebiete {
			for _, kap := range urg.Kapitel {
				kapName := kap.Name
				if kap.Hidden {
					kapName = ""
				}
				for _, thema := range kap.Themen {
					if len(thema.Aufgaben) == 0 {
						rows = append(rows, export.TopicRow{
							Rechtsgebiet:      rg.Name,
							Unterrechtsgebiet: urg.Name,
							Kapitel:           kapName,
							Thema:             thema.Name,
							Completed:         thema.Completed,
						})
						continue
					}
					for _, aufgabe := range thema.Aufgaben {
						rows = append(rows, export.TopicRow{
							Rechtsgebiet:      rg.Name,
							Unterrechtsgebiet: urg.Name,
							Kapitel:           kapName,
							Thema:             thema.Name,
							Aufgabe:           aufgabe.Text,
							Completed:         aufgabe.Completed,
						})
					}
				}
			}
		}
	}

	return s.csv.RenderTopicList(rows)
}
