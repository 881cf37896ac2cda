package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/events"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

// JobTypeGenerate identifies background timetable generation jobs.
const JobTypeGenerate = "timetable.generate"

const generatorAlgorithm = "greedy_v1"

type timetableRunRepository interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, run *models.TimetableRun) error
	List(ctx context.Context, filter repository.TimetableRunFilter) ([]models.TimetableRun, int, error)
	FindByID(ctx context.Context, id string) (*models.TimetableRun, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableStatus, meta types.JSONText) error
	ArchivePublished(ctx context.Context, exec sqlx.ExtContext, termID, grade, exceptID string) (int64, error)
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type timetableSlotRepository interface {
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, slots []models.TimetableSlot) error
	ListByRun(ctx context.Context, runID string, filter models.TimetableSlotFilter) ([]models.TimetableSlot, error)
	ListCommitments(ctx context.Context, termID, excludeGrade string) ([]models.TeacherCommitment, error)
	DeleteByRun(ctx context.Context, exec sqlx.ExtContext, runID string) error
}

type gradeGenerator interface {
	Generate(in timetable.GradeInput) (*timetable.GradeResult, error)
	GenerateGrades(ctx context.Context, grades []timetable.GradeInput, concurrency int) ([]*timetable.GradeResult, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type timetableExporter interface {
	Render(doc TimetableDocument, format string) (*ExportFile, error)
	Link(runID, relPath, format string) (*dto.ExportLinkResponse, error)
	Download(token string) (*ExportFile, error)
	DeleteRun(runID string) error
}

// TimetableConfig carries generation defaults.
type TimetableConfig struct {
	ProposalTTL      time.Duration
	GradeConcurrency int
	Calendar         timetable.Calendar
	Limits           timetable.Limits
}

// runMeta is stored as JSON on each saved run.
type runMeta struct {
	ProposalID  string                `json:"proposalId"`
	Algorithm   string                `json:"algorithm"`
	Calendar    timetable.Calendar    `json:"calendar"`
	Summary     dto.ViolationSummary  `json:"summary"`
	Violations  []timetable.Violation `json:"violations"`
	Classes     map[string]string     `json:"classes"`
	Subjects    map[string]string     `json:"subjects"`
	Teachers    map[string]string     `json:"teachers"`
	Forced      bool                  `json:"forced"`
	GeneratedAt time.Time             `json:"generatedAt"`
}

type generatePayload struct {
	Request dto.GenerateTimetableRequest
	Actor   string
}

// TimetableService generates, stores and publishes grade timetables.
type TimetableService struct {
	roster    *rosterLoader
	runs      timetableRunRepository
	slots     timetableSlotRepository
	generator gradeGenerator
	tx        txProvider
	store     *documentStore
	exporter  timetableExporter
	publisher events.Publisher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       TimetableConfig
	queue     jobEnqueuer
	now       func() time.Time
}

// NewTimetableService wires timetable dependencies.
func NewTimetableService(
	roster rosterRepository,
	prefs teacherPreferenceRepository,
	runs timetableRunRepository,
	slots timetableSlotRepository,
	generator gradeGenerator,
	tx txProvider,
	cache *CacheService,
	exporter timetableExporter,
	publisher events.Publisher,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if generator == nil {
		generator = timetable.NewCoordinator(nil, logger.Named("timetable"))
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if cfg.GradeConcurrency <= 0 {
		cfg.GradeConcurrency = 1
	}
	return &TimetableService{
		roster:    newRosterLoader(roster, prefs, logger),
		runs:      runs,
		slots:     slots,
		generator: generator,
		tx:        tx,
		store:     newDocumentStore(cache, logger),
		exporter:  exporter,
		publisher: publisher,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// AttachQueue enables asynchronous generation through the given worker queue.
func (s *TimetableService) AttachQueue(queue jobEnqueuer) {
	s.queue = queue
}

// Generate builds one proposal per requested grade and caches them for review.
func (s *TimetableService) Generate(ctx context.Context, req dto.GenerateTimetableRequest, actor string) (*dto.GenerateTimetableResponse, error) {
	if err := s.validateGenerate(req); err != nil {
		return nil, err
	}
	cal := s.calendarFor(req.Calendar)
	if err := cal.Normalize().Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid calendar")
	}
	limits := s.cfg.Limits
	if req.MaxPerDay > 0 {
		limits.MaxPerDay = req.MaxPerDay
	}
	if req.MaxPerWeek > 0 {
		limits.MaxPerWeek = req.MaxPerWeek
	}

	rosters := make([]*gradeRoster, 0, len(req.Grades))
	for _, grade := range req.Grades {
		roster, err := s.roster.Load(ctx, grade, cal, limits)
		if err != nil {
			return nil, err
		}
		if !req.IgnorePublished {
			if err := s.blockCommitments(ctx, req.TermID, roster); err != nil {
				return nil, err
			}
		}
		rosters = append(rosters, roster)
	}

	results, err := s.runGrades(ctx, rosters)
	if err != nil {
		s.metrics.RecordGenerationFailure()
		if errors.Is(err, timetable.ErrInvalidInput) {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "timetable input rejected")
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate timetable")
	}

	resp := &dto.GenerateTimetableResponse{Proposals: make([]dto.TimetableProposal, 0, len(results))}
	for i, result := range results {
		proposal := s.buildProposal(req.TermID, actor, rosters[i], result)
		if err := s.store.Save(ctx, proposalKeyPrefix+proposal.ProposalID, proposal, s.cfg.ProposalTTL); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cache timetable proposal")
		}
		s.publish(ctx, events.TypeTimetableGenerated, proposal.ProposalID, map[string]any{
			"proposalId": proposal.ProposalID,
			"termId":     proposal.TermID,
			"grade":      proposal.Grade,
			"summary":    proposal.Summary,
		})
		s.logger.Info("timetable proposal generated",
			zap.String("proposal_id", proposal.ProposalID),
			zap.String("term_id", proposal.TermID),
			zap.String("grade", proposal.Grade),
			zap.Int("classes", len(proposal.Classes)),
			zap.Int("critical", proposal.Summary.Critical),
			zap.Int("high", proposal.Summary.High),
			zap.Int("medium", proposal.Summary.Medium),
		)
		resp.Proposals = append(resp.Proposals, proposal)
	}
	return resp, nil
}

// GenerateAsync queues a generation request and returns the job handle.
func (s *TimetableService) GenerateAsync(ctx context.Context, req dto.GenerateTimetableRequest, actor string) (*dto.GenerateJob, error) {
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "background generation is disabled")
	}
	if err := s.validateGenerate(req); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	job := dto.GenerateJob{
		ID:        uuid.NewString(),
		Status:    dto.GenerateJobQueued,
		TermID:    req.TermID,
		Grades:    req.Grades,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.saveJob(ctx, &job); err != nil {
		return nil, err
	}
	err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: JobTypeGenerate, Payload: generatePayload{Request: req, Actor: actor}})
	if err != nil {
		job.Status = dto.GenerateJobFailed
		job.Error = err.Error()
		_ = s.saveJob(ctx, &job)
		s.metrics.RecordJob(string(job.Status))
		if errors.Is(err, jobs.ErrQueueFull) {
			return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "generation queue is full, retry later")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to queue timetable generation")
	}
	return &job, nil
}

// HandleJob executes a queued generation. Client errors are final; server errors
// are returned so the queue retries them.
func (s *TimetableService) HandleJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(generatePayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
	}
	state := dto.GenerateJob{ID: job.ID, TermID: payload.Request.TermID, Grades: payload.Request.Grades, CreatedAt: job.Enqueued}
	if _, err := s.store.Load(ctx, jobKeyPrefix+job.ID, &state); err != nil {
		s.logger.Warn("failed to load job state", zap.String("job_id", job.ID), zap.Error(err))
	}
	state.Status = dto.GenerateJobRunning
	state.Error = ""
	_ = s.saveJob(ctx, &state)

	resp, err := s.Generate(ctx, payload.Request, payload.Actor)
	if err != nil {
		state.Status = dto.GenerateJobFailed
		state.Error = err.Error()
		_ = s.saveJob(ctx, &state)
		if appErr := appErrors.FromError(err); appErr.Status < http.StatusInternalServerError {
			s.metrics.RecordJob(string(state.Status))
			return nil
		}
		return err
	}

	state.Status = dto.GenerateJobCompleted
	state.ProposalIDs = make([]string, 0, len(resp.Proposals))
	for _, proposal := range resp.Proposals {
		state.ProposalIDs = append(state.ProposalIDs, proposal.ProposalID)
	}
	s.metrics.RecordJob(string(state.Status))
	return s.saveJob(ctx, &state)
}

// GetJob returns the current state of a background generation.
func (s *TimetableService) GetJob(ctx context.Context, id string) (*dto.GenerateJob, error) {
	var job dto.GenerateJob
	found, err := s.store.Load(ctx, jobKeyPrefix+id, &job)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load generation job")
	}
	if !found {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "generation job not found or expired")
	}
	return &job, nil
}

// GetProposal returns a cached proposal.
func (s *TimetableService) GetProposal(ctx context.Context, id string) (*dto.TimetableProposal, error) {
	var proposal dto.TimetableProposal
	found, err := s.store.Load(ctx, proposalKeyPrefix+id, &proposal)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable proposal")
	}
	if !found {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	return &proposal, nil
}

// Save persists a proposal as a new run version, replicating the template over every week.
func (s *TimetableService) Save(ctx context.Context, req dto.SaveTimetableRequest, actor string) (*dto.SaveTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid save timetable payload")
	}
	proposal, err := s.GetProposal(ctx, req.ProposalID)
	if err != nil {
		return nil, err
	}
	if proposal.Summary.Critical > 0 {
		if req.Publish {
			return nil, appErrors.Clone(appErrors.ErrConflict, "proposals with critical violations cannot be published")
		}
		if !req.Force {
			return nil, appErrors.Clone(appErrors.ErrConflict, "proposal has critical violations; set force to keep it as a draft")
		}
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	meta, err := json.Marshal(s.metaFor(proposal, req.Force))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode timetable metadata")
	}
	record := &models.TimetableRun{
		TermID:     proposal.TermID,
		Grade:      proposal.Grade,
		Status:     models.TimetableStatusDraft,
		ProposalID: proposal.ProposalID,
		TotalWeeks: proposal.Calendar.TotalWeeks,
		Meta:       types.JSONText(meta),
	}
	if actor != "" {
		record.CreatedBy = &actor
	}
	slots := slotModels(proposal)

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.runs.CreateVersioned(ctx, tx, record); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable run")
		return nil, err
	}
	for i := range slots {
		slots[i].RunID = record.ID
	}
	if err = s.slots.InsertBatch(ctx, tx, slots); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist timetable slots")
		return nil, err
	}

	var archived int64
	if req.Publish {
		if archived, err = s.runs.ArchivePublished(ctx, tx, record.TermID, record.Grade, record.ID); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive previous timetable")
			return nil, err
		}
		if err = s.runs.UpdateStatus(ctx, tx, record.ID, models.TimetableStatusPublished, nil); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish timetable")
			return nil, err
		}
		record.Status = models.TimetableStatusPublished
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable transaction")
		return nil, err
	}

	s.store.Delete(ctx, proposalKeyPrefix+req.ProposalID)
	s.metrics.AddSavedSlots(len(slots))
	s.publish(ctx, events.TypeTimetableSaved, record.ID, runEventPayload(record))
	if record.Status == models.TimetableStatusPublished {
		s.publish(ctx, events.TypeTimetablePublished, record.ID, runEventPayload(record))
	}
	s.logger.Info("timetable saved",
		zap.String("run_id", record.ID),
		zap.String("grade", record.Grade),
		zap.Int("version", record.Version),
		zap.String("status", string(record.Status)),
		zap.Int("slots", len(slots)),
	)

	return &dto.SaveTimetableResponse{
		RunID:     record.ID,
		Version:   record.Version,
		Status:    string(record.Status),
		SlotCount: len(slots),
		Archived:  archived,
	}, nil
}

// List returns stored runs of a term.
func (s *TimetableService) List(ctx context.Context, query dto.TimetableListQuery) ([]models.TimetableRun, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable query")
	}
	filter := repository.TimetableRunFilter{
		TermID:   query.TermID,
		Grade:    query.Grade,
		Status:   models.TimetableStatus(query.Status),
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	runs, total, err := s.runs.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetables")
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	size := query.PageSize
	if size < 1 {
		size = 20
	}
	return runs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// GetSlots returns stored slots of a run.
func (s *TimetableService) GetSlots(ctx context.Context, runID string, query dto.SlotQuery) ([]models.TimetableSlot, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot query")
	}
	if _, err := s.findRun(ctx, runID); err != nil {
		return nil, err
	}
	slots, err := s.slots.ListByRun(ctx, runID, models.TimetableSlotFilter{ClassID: query.ClassID, Week: query.Week})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable slots")
	}
	return slots, nil
}

// Publish promotes a draft run, archiving the previously published run of its grade.
func (s *TimetableService) Publish(ctx context.Context, runID string) (*models.TimetableRun, error) {
	record, err := s.findRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if record.Status != models.TimetableStatusDraft {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only draft timetables can be published")
	}
	var meta runMeta
	if len(record.Meta) > 0 {
		if unmarshalErr := json.Unmarshal(record.Meta, &meta); unmarshalErr != nil {
			return nil, appErrors.Wrap(unmarshalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode timetable metadata")
		}
	}
	if meta.Summary.Critical > 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "timetables with critical violations cannot be published")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = s.runs.ArchivePublished(ctx, tx, record.TermID, record.Grade, record.ID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive previous timetable")
		return nil, err
	}
	if err = s.runs.UpdateStatus(ctx, tx, record.ID, models.TimetableStatusPublished, nil); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish timetable")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable transaction")
		return nil, err
	}

	now := s.now().UTC()
	record.Status = models.TimetableStatusPublished
	record.PublishedAt = &now
	s.publish(ctx, events.TypeTimetablePublished, record.ID, runEventPayload(record))
	return record, nil
}

// Archive retires a published run.
func (s *TimetableService) Archive(ctx context.Context, runID string) (*models.TimetableRun, error) {
	record, err := s.findRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if record.Status != models.TimetableStatusPublished {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only published timetables can be archived")
	}
	if err := s.runs.UpdateStatus(ctx, nil, record.ID, models.TimetableStatusArchived, nil); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive timetable")
	}
	record.Status = models.TimetableStatusArchived
	return record, nil
}

// Delete removes a draft run with its slots and stored exports.
func (s *TimetableService) Delete(ctx context.Context, runID string) error {
	record, err := s.findRun(ctx, runID)
	if err != nil {
		return err
	}
	if record.Status != models.TimetableStatusDraft {
		return appErrors.Clone(appErrors.ErrConflict, "only draft timetables can be deleted")
	}
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = s.slots.DeleteByRun(ctx, tx, runID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable slots")
		return err
	}
	if err = s.runs.Delete(ctx, tx, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
			return err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable transaction")
		return err
	}

	if s.exporter != nil {
		if exportErr := s.exporter.DeleteRun(runID); exportErr != nil {
			s.logger.Warn("failed to remove stored exports", zap.String("run_id", runID), zap.Error(exportErr))
		}
	}
	s.publish(ctx, events.TypeTimetableDeleted, runID, runEventPayload(record))
	return nil
}

// Export renders one week of a class timetable.
func (s *TimetableService) Export(ctx context.Context, runID string, query dto.ExportQuery) (*ExportFile, error) {
	doc, err := s.document(ctx, runID, query)
	if err != nil {
		return nil, err
	}
	file, err := s.exporter.Render(*doc, query.Format)
	if err != nil {
		return nil, asExportError(err)
	}
	return file, nil
}

// ExportLink renders and stores an export, returning a signed download link.
func (s *TimetableService) ExportLink(ctx context.Context, runID string, query dto.ExportQuery) (*dto.ExportLinkResponse, error) {
	file, err := s.Export(ctx, runID, query)
	if err != nil {
		return nil, err
	}
	link, err := s.exporter.Link(runID, file.RelativePath, file.Format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export link")
	}
	return link, nil
}

// Download resolves a signed export token.
func (s *TimetableService) Download(token string) (*ExportFile, error) {
	if s.exporter == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "exports are disabled")
	}
	return s.exporter.Download(token)
}

func (s *TimetableService) document(ctx context.Context, runID string, query dto.ExportQuery) (*TimetableDocument, error) {
	if s.exporter == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "exports are disabled")
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export query")
	}
	record, err := s.findRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	week := query.Week
	if week == 0 {
		week = 1
	}
	if record.TotalWeeks > 0 && week > record.TotalWeeks {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("week must be between 1 and %d", record.TotalWeeks))
	}
	var meta runMeta
	if len(record.Meta) > 0 {
		if err := json.Unmarshal(record.Meta, &meta); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode timetable metadata")
		}
	}
	slots, err := s.slots.ListByRun(ctx, runID, models.TimetableSlotFilter{ClassID: query.ClassID, Week: week})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable slots")
	}
	if len(slots) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class is not part of this timetable")
	}
	className := meta.Classes[query.ClassID]
	if className == "" {
		className = query.ClassID
	}
	return &TimetableDocument{
		RunID:     record.ID,
		Version:   record.Version,
		TermID:    record.TermID,
		Grade:     record.Grade,
		ClassID:   query.ClassID,
		ClassName: className,
		Week:      week,
		Calendar:  meta.Calendar,
		Slots:     slots,
		Subjects:  meta.Subjects,
		Teachers:  meta.Teachers,
	}, nil
}

func (s *TimetableService) validateGenerate(req dto.GenerateTimetableRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}
	seen := make(map[string]struct{}, len(req.Grades))
	for _, grade := range req.Grades {
		if _, dup := seen[grade]; dup {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("grade %s requested twice", grade))
		}
		seen[grade] = struct{}{}
	}
	return nil
}

func (s *TimetableService) calendarFor(override *dto.CalendarOverride) timetable.Calendar {
	cal := s.cfg.Calendar
	if override == nil {
		return cal
	}
	if override.TeachingDaysPerWeek > 0 {
		cal.TeachingDaysPerWeek = override.TeachingDaysPerWeek
	}
	if override.PeriodsPerDay > 0 {
		cal.PeriodsPerDay = override.PeriodsPerDay
	}
	if len(override.DayLengths) > 0 {
		cal.DayLengths = override.DayLengths
	}
	if override.CeremonyDay > 0 {
		cal.CeremonyDay = override.CeremonyDay
	}
	if override.CeremonyPeriod > 0 {
		cal.CeremonyPeriod = override.CeremonyPeriod
	}
	if override.ClassMeetingDay > 0 {
		cal.ClassMeetingDay = override.ClassMeetingDay
	}
	if override.ClassMeetingPeriod > 0 {
		cal.ClassMeetingPeriod = override.ClassMeetingPeriod
	}
	if override.LunchBreakAfter > 0 {
		cal.LunchBreakAfter = override.LunchBreakAfter
	}
	if override.TotalWeeks > 0 {
		cal.TotalWeeks = override.TotalWeeks
	}
	return cal
}

// blockCommitments marks periods already taught in published timetables of other
// grades as unavailable.
func (s *TimetableService) blockCommitments(ctx context.Context, termID string, roster *gradeRoster) error {
	commitments, err := s.slots.ListCommitments(ctx, termID, roster.Input.Grade)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load published commitments")
	}
	if len(commitments) == 0 {
		return nil
	}
	byTeacher := make(map[string][]timetable.Slot)
	for _, c := range commitments {
		byTeacher[c.TeacherID] = append(byTeacher[c.TeacherID], timetable.Slot{Day: c.Day, Period: c.Period})
	}
	for i := range roster.Input.Teachers {
		teacher := &roster.Input.Teachers[i]
		teacher.Unavailable = append(teacher.Unavailable, byTeacher[teacher.ID]...)
	}
	return nil
}

// runGrades schedules grades in parallel when their rosters are disjoint, otherwise
// in request order with earlier bookings blocking later grades.
func (s *TimetableService) runGrades(ctx context.Context, rosters []*gradeRoster) ([]*timetable.GradeResult, error) {
	inputs := make([]timetable.GradeInput, len(rosters))
	for i, roster := range rosters {
		inputs[i] = roster.Input
	}

	if len(inputs) > 1 && rostersDisjoint(inputs) {
		start := s.now()
		results, err := s.generator.GenerateGrades(ctx, inputs, s.cfg.GradeConcurrency)
		if err != nil {
			return nil, err
		}
		elapsed := s.now().Sub(start)
		for _, result := range results {
			s.metrics.ObserveGeneration(result.Grade, elapsed, result.Violations)
		}
		return results, nil
	}

	results := make([]*timetable.GradeResult, 0, len(inputs))
	booked := make(map[string][]timetable.Slot)
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "timetable generation cancelled")
		}
		in.Teachers = append([]timetable.Teacher(nil), in.Teachers...)
		for i := range in.Teachers {
			in.Teachers[i].Unavailable = append(append([]timetable.Slot{}, in.Teachers[i].Unavailable...), booked[in.Teachers[i].ID]...)
		}
		start := s.now()
		result, err := s.generator.Generate(in)
		if err != nil {
			return nil, fmt.Errorf("grade %s: %w", in.Grade, err)
		}
		s.metrics.ObserveGeneration(result.Grade, s.now().Sub(start), result.Violations)
		for _, class := range result.Classes {
			for _, cell := range class.Template {
				if cell.Assignment.TeacherID != "" && cell.Assignment.Kind != timetable.KindEmpty {
					booked[cell.Assignment.TeacherID] = append(booked[cell.Assignment.TeacherID], timetable.Slot{Day: cell.Day, Period: cell.Period})
				}
			}
		}
		results = append(results, result)
	}
	return results, nil
}

func rostersDisjoint(inputs []timetable.GradeInput) bool {
	owner := make(map[string]int)
	for i, in := range inputs {
		for _, teacher := range in.Teachers {
			if prev, ok := owner[teacher.ID]; ok && prev != i {
				return false
			}
			owner[teacher.ID] = i
		}
	}
	return true
}

func (s *TimetableService) buildProposal(termID, actor string, roster *gradeRoster, result *timetable.GradeResult) dto.TimetableProposal {
	now := s.now().UTC()
	classes := make([]dto.ClassTemplate, 0, len(result.Classes))
	for _, class := range result.Classes {
		classes = append(classes, dto.ClassTemplate{Class: class.Class, Template: class.Template, Violations: class.Violations})
	}
	return dto.TimetableProposal{
		ProposalID:   uuid.NewString(),
		TermID:       termID,
		Grade:        result.Grade,
		Calendar:     result.Calendar,
		Classes:      classes,
		Bindings:     result.Bindings,
		TeacherLoads: result.TeacherLoads,
		Violations:   result.Violations,
		Summary:      summarize(result.Violations),
		SubjectNames: roster.Subjects,
		TeacherNames: roster.Teachers,
		GeneratedBy:  actor,
		GeneratedAt:  now,
		ExpiresAt:    now.Add(s.cfg.ProposalTTL),
	}
}

func summarize(violations []timetable.Violation) dto.ViolationSummary {
	counts := timetable.CountBySeverity(violations)
	return dto.ViolationSummary{
		Critical: counts[timetable.SeverityCritical],
		High:     counts[timetable.SeverityHigh],
		Medium:   counts[timetable.SeverityMedium],
		Savable:  counts[timetable.SeverityCritical] == 0,
	}
}

func (s *TimetableService) metaFor(proposal *dto.TimetableProposal, forced bool) runMeta {
	classes := make(map[string]string, len(proposal.Classes))
	for _, class := range proposal.Classes {
		classes[class.Class.ID] = class.Class.Name
	}
	return runMeta{
		ProposalID:  proposal.ProposalID,
		Algorithm:   generatorAlgorithm,
		Calendar:    proposal.Calendar,
		Summary:     proposal.Summary,
		Violations:  proposal.Violations,
		Classes:     classes,
		Subjects:    proposal.SubjectNames,
		Teachers:    proposal.TeacherNames,
		Forced:      forced && proposal.Summary.Critical > 0,
		GeneratedAt: proposal.GeneratedAt,
	}
}

// slotModels replicates every class template over the academic year.
func slotModels(proposal *dto.TimetableProposal) []models.TimetableSlot {
	replicator := timetable.Replicator{TotalWeeks: proposal.Calendar.TotalWeeks}
	var out []models.TimetableSlot
	for _, class := range proposal.Classes {
		for _, slot := range replicator.ReplicateCells(class.Template) {
			a := slot.Assignment
			out = append(out, models.TimetableSlot{
				ClassID:     class.Class.ID,
				Week:        slot.Week,
				DayOfWeek:   slot.Day,
				Period:      slot.Period,
				SubjectID:   optional(a.SubjectID),
				TeacherID:   optional(a.TeacherID),
				Kind:        string(a.Kind),
				SpecialType: optional(string(a.Special)),
				DoubleHalf:  optional(string(a.DoubleHalf)),
			})
		}
	}
	return out
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func (s *TimetableService) findRun(ctx context.Context, runID string) (*models.TimetableRun, error) {
	if runID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "timetable id is required")
	}
	record, err := s.runs.FindByID(ctx, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return record, nil
}

func (s *TimetableService) saveJob(ctx context.Context, job *dto.GenerateJob) error {
	job.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, jobKeyPrefix+job.ID, job, s.cfg.ProposalTTL); err != nil {
		s.logger.Warn("failed to store job state", zap.String("job_id", job.ID), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store generation job")
	}
	return nil
}

func (s *TimetableService) publish(ctx context.Context, eventType, key string, payload interface{}) {
	err := s.publisher.Publish(ctx, events.Event{Type: eventType, Key: key, OccurredAt: s.now().UTC(), Payload: payload})
	if err != nil {
		s.logger.Warn("failed to publish timetable event", zap.String("type", eventType), zap.String("key", key), zap.Error(err))
	}
}

func runEventPayload(run *models.TimetableRun) map[string]any {
	return map[string]any{
		"runId":   run.ID,
		"termId":  run.TermID,
		"grade":   run.Grade,
		"version": run.Version,
		"status":  run.Status,
	}
}
