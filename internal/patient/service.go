package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentpppp/medRec/internal/engine"
	"github.com/agentpppp/medRec/internal/infrastructure/database"
)

// Operation names reported to the Recorder.
const (
	OpRegister   = "register"
	OpListAll    = "list_all"
	OpExecuteRaw = "execute_raw"
)

// Outcomes reported to the Recorder.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

const insertPatientSQL = `
	INSERT INTO patients (id, name, email, age, phone, gender, address, emergency_contact)
	VALUES (:id, :name, :email, :age, :phone, :gender, :address, :emergency_contact)`

const listPatientsSQL = `
	SELECT id, name, email, age, phone, gender, address, emergency_contact, created_at
	FROM patients
	ORDER BY name ASC, created_at ASC, id ASC`

// Recorder receives one observation per registry operation.
type Recorder interface {
	RecordOperation(op, outcome string, duration time.Duration)
}

// Publisher is told about each successful registration.
// Only the identifier and time are passed on, never record contents.
type Publisher interface {
	PatientRegistered(id string, at time.Time) error
}

// Service is the structured query surface of the registry.
type Service struct {
	conn   engine.Connector
	logger Logger

	recorder  Recorder
	publisher Publisher
}

// NewService creates a Service that obtains the engine from conn.
func NewService(conn engine.Connector, logger Logger) *Service {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Service{conn: conn, logger: logger}
}

// SetRecorder attaches operation telemetry. Call before first use.
func (s *Service) SetRecorder(r Recorder) {
	s.recorder = r
}

// SetPublisher attaches the registration event publisher. Call before first use.
func (s *Service) SetPublisher(p Publisher) {
	s.publisher = p
}

// Register validates in and stores it as a new patient.
//
// Parameters:
//   - ctx: Context for cancellation
//   - in: Patient data; Name and Age are required
//
// Returns:
//   - string: The generated patient identifier
//   - error: Wraps ErrWriteFailure (and ErrMissingField or ErrInitFailure where applicable)
func (s *Service) Register(ctx context.Context, in Input) (string, error) {
	start := time.Now()
	id, err := s.register(ctx, in)
	s.record(OpRegister, err, time.Since(start))
	if err != nil {
		return "", err
	}

	s.logger.Info("patient registered", "patient_id", id)

	if s.publisher != nil {
		if perr := s.publisher.PatientRegistered(id, time.Now().UTC()); perr != nil {
			s.logger.Warn("publishing registration event failed", "patient_id", id, "error", perr)
		}
	}
	return id, nil
}

func (s *Service) register(ctx context.Context, in Input) (string, error) {
	if err := in.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}

	w, err := s.conn.Conn(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}

	id := uuid.NewString()
	rec := newRecord(id, in)

	err = w.Do(ctx, func(ctx context.Context, db *database.DB) error {
		_, err := db.NamedExecContext(ctx, insertPatientSQL, rec)
		return err
	})
	if err != nil {
		s.logger.Error("inserting patient failed", "error", err)
		return "", fmt.Errorf("%w: inserting patient: %w", ErrWriteFailure, err)
	}
	return id, nil
}

// ListAll returns every patient ordered by name, then registration time.
// An empty registry yields an empty, non-nil slice.
func (s *Service) ListAll(ctx context.Context) ([]Patient, error) {
	start := time.Now()
	patients, err := s.listAll(ctx)
	s.record(OpListAll, err, time.Since(start))
	return patients, err
}

func (s *Service) listAll(ctx context.Context) ([]Patient, error) {
	w, err := s.conn.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFailure, err)
	}

	var rows []record
	err = w.Do(ctx, func(ctx context.Context, db *database.DB) error {
		return db.SelectContext(ctx, &rows, listPatientsSQL)
	})
	if err != nil {
		s.logger.Error("listing patients failed", "error", err)
		return nil, fmt.Errorf("%w: listing patients: %w", ErrReadFailure, err)
	}

	patients := make([]Patient, 0, len(rows))
	for _, r := range rows {
		patients = append(patients, r.patient())
	}
	return patients, nil
}

func (s *Service) record(op string, err error, d time.Duration) {
	recordOperation(s.recorder, op, err == nil, d)
}

// recordOperation forwards an observation if a recorder is attached.
func recordOperation(r Recorder, op string, ok bool, d time.Duration) {
	if r == nil {
		return
	}
	outcome := OutcomeSuccess
	if !ok {
		outcome = OutcomeFailure
	}
	r.RecordOperation(op, outcome, d)
}
