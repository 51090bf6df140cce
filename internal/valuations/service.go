package valuations

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agro-valuation/valuation-portal/valuation-portal-backend/internal/lookups"
	"agro-valuation/valuation-portal/valuation-portal-backend/internal/reports/archive"
	"agro-valuation/valuation-portal/valuation-portal-backend/internal/reports/export"
	"agro-valuation/valuation-portal/valuation-portal-backend/internal/valuation"
	"agro-valuation/valuation-portal/valuation-portal-backend/pkg/workflows"
)

var (
	// ErrNotFound is returned when a valuation does not exist
	ErrNotFound = errors.New("valuation not found")
	// ErrInvalidTransition is returned for status changes the lifecycle forbids
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotDraft is returned when a non-draft valuation is recalculated
	ErrNotDraft = errors.New("only draft valuations can be recalculated")
	// ErrValidation is returned when parcel input is rejected
	ErrValidation = errors.New("validation failed")
)

// ValidationError carries the full validation outcome of rejected input
type ValidationError struct {
	Results *valuation.ValidationResults
}

func (e *ValidationError) Error() string {
	return e.Results.Err().Error()
}

// Unwrap makes errors.Is(err, ErrValidation) hold
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Service defines the valuation use cases
type Service interface {
	Calculate(ctx context.Context, req CalculateRequest) (*CalculateResponse, error)
	Create(ctx context.Context, req CalculateRequest) (*Valuation, error)
	Get(ctx context.Context, id uuid.UUID) (*Valuation, error)
	List(ctx context.Context, filter ListFilter) ([]Summary, error)
	Recalculate(ctx context.Context, id uuid.UUID) (*Valuation, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, to Status) (*Valuation, error)
	Export(ctx context.Context, id uuid.UUID, format export.Format) (*ExportFile, error)
	Archive(ctx context.Context, id uuid.UUID, format export.Format) (*ArchivedReport, error)
}

// ReportArchive stores rendered reports outside the database
type ReportArchive interface {
	Key(parts ...string) string
	Put(ctx context.Context, key, contentType string, data []byte) (*archive.Object, error)
}

// Option configures optional service collaborators
type Option func(*service)

// WithArchive enables report archiving
func WithArchive(a ReportArchive) Option {
	return func(s *service) {
		s.archive = a
	}
}

type service struct {
	repo      Repository
	provider  lookups.Provider
	engine    *valuation.Engine
	validator *valuation.Validator
	workflow  *workflows.StateMachine
	archive   ReportArchive
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a valuation service. provider may be nil, in which
// case requests must carry their own lookups and recalculation reuses the
// stored snapshot.
func NewService(repo Repository, provider lookups.Provider, engine *valuation.Engine, logger *zap.Logger, opts ...Option) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &service{
		repo:      repo,
		provider:  provider,
		engine:    engine,
		validator: valuation.NewValidator(),
		workflow:  workflows.NewStateMachine(),
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Calculate validates and values a parcel without storing it
func (s *service) Calculate(ctx context.Context, req CalculateRequest) (*CalculateResponse, error) {
	result, _, warnings, err := s.calculate(ctx, req.Parcel, req.Lookups, false)
	if err != nil {
		return nil, err
	}
	return &CalculateResponse{Result: result, Warnings: warnings}, nil
}

// Create values a parcel and stores it as a draft
func (s *service) Create(ctx context.Context, req CalculateRequest) (*Valuation, error) {
	result, used, warnings, err := s.calculate(ctx, req.Parcel, req.Lookups, false)
	if err != nil {
		return nil, err
	}

	record, err := Flatten(uuid.New(), req.Parcel, used, result, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("Valuation created",
		zap.String("valuation_id", record.ID.String()),
		zap.String("parcel_id", record.ParcelID),
		zap.Float64("parcel_value_cop", record.ParcelValueCOP),
		zap.String("overall_tier", record.OverallTier))

	v := s.view(record, result)
	v.Warnings = warnings
	return v, nil
}

// Get returns a stored valuation
func (s *service) Get(ctx context.Context, id uuid.UUID) (*Valuation, error) {
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	result, err := Rebuild(record)
	if err != nil {
		return nil, err
	}
	return s.view(record, result), nil
}

// List returns stored valuation summaries
func (s *service) List(ctx context.Context, filter ListFilter) ([]Summary, error) {
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	summaries := make([]Summary, 0, len(records))
	for i := range records {
		summaries = append(summaries, toSummary(&records[i]))
	}
	return summaries, nil
}

// Recalculate re-values a draft from its stored input. Fresh lookups come
// from the provider when one is configured; otherwise the stored snapshot
// is reused.
func (s *service) Recalculate(ctx context.Context, id uuid.UUID) (*Valuation, error) {
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status != StatusDraft {
		return nil, fmt.Errorf("%w: valuation %s is %s", ErrNotDraft, id, record.Status)
	}

	parcel, err := DecodeInput(record)
	if err != nil {
		return nil, err
	}
	var override *valuation.Lookups
	if s.provider == nil {
		if override, err = DecodeLookups(record); err != nil {
			return nil, err
		}
	}

	result, used, warnings, err := s.calculate(ctx, parcel, override, true)
	if err != nil {
		return nil, err
	}

	updated, err := Flatten(record.ID, parcel, used, result, s.now())
	if err != nil {
		return nil, err
	}
	updated.Status = record.Status
	updated.CreatedAt = record.CreatedAt
	if err := s.repo.ReplaceResults(ctx, updated); err != nil {
		return nil, err
	}

	s.logger.Info("Valuation recalculated",
		zap.String("valuation_id", id.String()),
		zap.Float64("previous_value_cop", record.ParcelValueCOP),
		zap.Float64("parcel_value_cop", updated.ParcelValueCOP),
		zap.String("overall_tier", updated.OverallTier))

	updated.UpdatedAt = s.now()
	v := s.view(updated, result)
	v.Warnings = warnings
	return v, nil
}

// TransitionStatus moves a valuation through its lifecycle
func (s *service) TransitionStatus(ctx context.Context, id uuid.UUID, to Status) (*Valuation, error) {
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.workflow.CanTransition(string(record.Status), string(to)) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, record.Status, to)
	}
	if err := s.repo.UpdateStatus(ctx, id, record.Status, to); err != nil {
		return nil, err
	}

	s.logger.Info("Valuation status changed",
		zap.String("valuation_id", id.String()),
		zap.String("from", string(record.Status)),
		zap.String("to", string(to)))

	record.Status = to
	record.UpdatedAt = s.now()
	result, err := Rebuild(record)
	if err != nil {
		return nil, err
	}
	return s.view(record, result), nil
}

// Export renders a stored valuation as a report file
func (s *service) Export(ctx context.Context, id uuid.UUID, format export.Format) (*ExportFile, error) {
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	result, err := Rebuild(record)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, result); err != nil {
		return nil, fmt.Errorf("failed to export valuation: %w", err)
	}
	return &ExportFile{
		Name:        format.FileName(result.ParcelID, result.ValuationAsOfDate),
		ContentType: format.ContentType(),
		Data:        buf.Bytes(),
	}, nil
}

// Archive renders a stored valuation and uploads it to the report archive
func (s *service) Archive(ctx context.Context, id uuid.UUID, format export.Format) (*ArchivedReport, error) {
	if s.archive == nil {
		return nil, archive.ErrDisabled
	}

	file, err := s.Export(ctx, id, format)
	if err != nil {
		return nil, err
	}

	obj, err := s.archive.Put(ctx, s.archive.Key(id.String(), file.Name), file.ContentType, file.Data)
	if err != nil {
		return nil, err
	}

	return &ArchivedReport{
		ValuationID: id,
		Format:      format,
		Object:      obj,
		ArchivedAt:  s.now(),
	}, nil
}

// calculate validates the parcel, resolves lookups and runs the engine. It
// returns the lookups actually used so they can be snapshotted.
func (s *service) calculate(ctx context.Context, parcel valuation.ParcelData, override *valuation.Lookups, fresh bool) (*valuation.ParcelResult, *valuation.Lookups, []valuation.ValidationWarning, error) {
	validation := s.validator.ValidateParcel(parcel)
	if !validation.IsValid {
		return nil, nil, nil, &ValidationError{Results: validation}
	}

	tables := override
	if tables == nil {
		if s.provider == nil {
			return nil, nil, nil, fmt.Errorf("%w: lookups are required", ErrValidation)
		}
		var err error
		tables, err = s.provider.Lookups(ctx, lookups.FilterForParcel(parcel))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to load lookups: %w", err)
		}
	}

	result, err := s.engine.ValueParcel(ctx, parcel, tables)
	if err != nil {
		return nil, nil, nil, err
	}

	s.logger.Debug("Parcel calculated",
		zap.String("parcel_id", parcel.ParcelID),
		zap.Bool("recalculation", fresh),
		zap.Int("warnings", len(validation.Warnings)))

	return result, tables, validation.Warnings, nil
}

func (s *service) view(record *ParcelRecord, result *valuation.ParcelResult) *Valuation {
	return &Valuation{
		ID:          record.ID,
		Status:      record.Status,
		Region:      record.Region,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
		Result:      result,
		Transitions: s.workflow.GetAllowedTransitions(string(record.Status)),
	}
}
