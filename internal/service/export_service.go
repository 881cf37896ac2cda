package service

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
	"github.com/noah-isme/sma-timetable-api/pkg/storage"
)

type fileStorage interface {
	Save(relPath string, data []byte) (string, error)
	Read(relPath string) ([]byte, error)
	DeleteDir(relDir string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type urlSigner interface {
	Generate(ownerID, relPath string) (string, time.Time, error)
	Parse(token string) (ownerID, relPath string, expiresAt time.Time, err error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	MaxAge    time.Duration
}

// TimetableDocument is one week of one class, ready to be rendered.
type TimetableDocument struct {
	RunID     string
	Version   int
	TermID    string
	Grade     string
	ClassID   string
	ClassName string
	Week      int
	Calendar  timetable.Calendar
	Slots     []models.TimetableSlot
	Subjects  map[string]string
	Teachers  map[string]string
}

// ExportFile is a rendered timetable.
type ExportFile struct {
	Filename     string
	ContentType  string
	Format       string
	RelativePath string
	Data         []byte
}

// ExportService renders class timetables and keeps the files for signed downloads.
type ExportService struct {
	storage fileStorage
	signer  urlSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(storage fileStorage, signer urlSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 72 * time.Hour
	}
	return &ExportService{storage: storage, signer: signer, logger: logger, cfg: cfg}
}

// Render builds the period-by-day grid, encodes it and stores the file under the run.
func (s *ExportService) Render(doc TimetableDocument, format string) (*ExportFile, error) {
	parsed, err := export.ParseFormat(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported export format")
	}
	payload, err := export.Render(parsed, BuildDataset(doc))
	if err != nil {
		return nil, fmt.Errorf("render timetable: %w", err)
	}
	filename := fmt.Sprintf("%s_v%d_w%02d.%s", sanitizeFilename(doc.ClassName), doc.Version, doc.Week, parsed.Extension())
	relPath, err := s.storage.Save(path.Join(doc.RunID, filename), payload)
	if err != nil {
		return nil, fmt.Errorf("store timetable export: %w", err)
	}
	return &ExportFile{
		Filename:     filename,
		ContentType:  parsed.ContentType(),
		Format:       string(parsed),
		RelativePath: relPath,
		Data:         payload,
	}, nil
}

// Link signs a stored export.
func (s *ExportService) Link(runID, relPath, format string) (*dto.ExportLinkResponse, error) {
	token, expiresAt, err := s.signer.Generate(runID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &dto.ExportLinkResponse{
		URL:       fmt.Sprintf("%s/timetables/exports/%s", prefix, token),
		Token:     token,
		Format:    format,
		ExpiresAt: expiresAt,
	}, nil
}

// Download validates a token and loads the stored file.
func (s *ExportService) Download(token string) (*ExportFile, error) {
	runID, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Wrap(err, appErrors.ErrExpired.Code, appErrors.ErrExpired.Status, "download link expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid download link")
	}
	if !strings.HasPrefix(relPath, runID+"/") {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	data, err := s.storage.Read(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export is no longer available")
	}
	filename := path.Base(relPath)
	format, _ := export.ParseFormat(strings.TrimPrefix(path.Ext(filename), "."))
	return &ExportFile{
		Filename:     filename,
		ContentType:  format.ContentType(),
		Format:       string(format),
		RelativePath: relPath,
		Data:         data,
	}, nil
}

// DeleteRun removes every stored export of a run.
func (s *ExportService) DeleteRun(runID string) error {
	return s.storage.DeleteDir(runID)
}

// Cleanup removes files older than ttl (the configured max age when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.MaxAge
	}
	return s.storage.CleanupOlderThan(ttl)
}

// BuildDataset lays a class week out as one row per period and one column per day.
// A break row is inserted after the lunch period.
func BuildDataset(doc TimetableDocument) export.Dataset {
	byDay := make(map[int]map[int]models.TimetableSlot)
	maxPeriod := 0
	var days []int
	for _, slot := range doc.Slots {
		if byDay[slot.DayOfWeek] == nil {
			byDay[slot.DayOfWeek] = make(map[int]models.TimetableSlot)
			days = append(days, slot.DayOfWeek)
		}
		byDay[slot.DayOfWeek][slot.Period] = slot
		if slot.Period > maxPeriod {
			maxPeriod = slot.Period
		}
	}
	sort.Ints(days)

	headers := []string{"Period"}
	for _, day := range days {
		headers = append(headers, dayIndexToName(day))
	}

	rows := make([]map[string]string, 0, maxPeriod+1)
	for period := 1; period <= maxPeriod; period++ {
		row := map[string]string{"Period": strconv.Itoa(period)}
		for _, day := range days {
			slot, ok := byDay[day][period]
			if !ok {
				row[dayIndexToName(day)] = ""
				continue
			}
			row[dayIndexToName(day)] = cellLabel(slot, doc.Subjects, doc.Teachers)
		}
		rows = append(rows, row)
		if doc.Calendar.LunchBreakAfter > 0 && period == doc.Calendar.LunchBreakAfter && period < maxPeriod {
			breakRow := map[string]string{"Period": "Break"}
			for _, day := range days {
				breakRow[dayIndexToName(day)] = "Lunch"
			}
			rows = append(rows, breakRow)
		}
	}

	return export.Dataset{
		Title:    fmt.Sprintf("Timetable %s", doc.ClassName),
		Subtitle: fmt.Sprintf("Grade %s, week %d, version %d", doc.Grade, doc.Week, doc.Version),
		Headers:  headers,
		Rows:     rows,
	}
}

func cellLabel(slot models.TimetableSlot, subjects, teachers map[string]string) string {
	teacher := nameOf(teachers, slot.TeacherID)
	switch timetable.AssignmentKind(slot.Kind) {
	case timetable.KindFixed:
		label := "Class meeting"
		if slot.SpecialType != nil && timetable.SpecialType(*slot.SpecialType) == timetable.SpecialFlagCeremony {
			label = "Flag ceremony"
		}
		return withTeacher(label, teacher)
	case timetable.KindRegular:
		label := nameOf(subjects, slot.SubjectID)
		if slot.DoubleHalf != nil {
			label += " (double)"
		}
		return withTeacher(label, teacher)
	default:
		return withTeacher("Self study", teacher)
	}
}

func nameOf(names map[string]string, id *string) string {
	if id == nil {
		return ""
	}
	if name, ok := names[*id]; ok && name != "" {
		return name
	}
	return *id
}

func withTeacher(label, teacher string) string {
	if teacher == "" {
		return label
	}
	return fmt.Sprintf("%s - %s", label, teacher)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "class"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func asExportError(err error) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export timetable")
}
