package migrate

import (
	"context"
	"fmt"
	"io"

	"github.com/cuemby/imgbackfill/pkg/log"
	"github.com/cuemby/imgbackfill/pkg/metrics"
	"github.com/cuemby/imgbackfill/pkg/normalize"
	"github.com/cuemby/imgbackfill/pkg/source"
	"github.com/cuemby/imgbackfill/pkg/types"
	"github.com/rs/zerolog"
)

// Archiver persists one canonical manifest.
type Archiver interface {
	Write(uuid string, m types.Manifest) error
}

// NormalizeFunc converts a raw record to its canonical manifest.
type NormalizeFunc func(types.Record) (types.Manifest, error)

// Result describes a finished run.
type Result struct {
	State types.RunState
	// Total is the number of records enumerated.
	Total int
	// Processed is the number of records archived before the run ended.
	Processed int
	// Err is the error that failed the run, if any.
	Err error
}

// Migrator drives one backfill run: enumerate every record, then
// normalize and archive them one at a time, stopping at the first error.
type Migrator struct {
	source    source.Source
	archiver  Archiver
	normalize NormalizeFunc
	closers   []io.Closer

	state  types.RunState
	logger zerolog.Logger
}

// New creates a migrator reading from src and writing through a.
func New(src source.Source, a Archiver) *Migrator {
	return &Migrator{
		source:    src,
		archiver:  a,
		normalize: normalize.Normalize,
		state:     types.StateIdle,
		logger:    log.WithComponent("migrate"),
	}
}

// State returns the current run state.
func (m *Migrator) State() types.RunState {
	return m.state
}

// Source returns the record source in use.
func (m *Migrator) Source() source.Source {
	return m.source
}

// Close releases backend connections opened for the run.
func (m *Migrator) Close() error {
	var first error
	for _, c := range m.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	m.closers = nil
	return first
}

// Run performs the migration. It may be called once per Migrator.
//
// If enumeration fails before any record is delivered the run fails
// immediately. Records delivered before a mid-enumeration failure are
// processed in order, then the run fails with the source error.
func (m *Migrator) Run(ctx context.Context) (Result, error) {
	if m.state.IsTerminal() {
		err := fmt.Errorf("migration already %s", m.state)
		return Result{State: m.state, Err: err}, err
	}
	if err := m.transition(types.StateEnumerating); err != nil {
		return Result{State: m.state, Err: err}, err
	}

	records, srcErr := m.source.Enumerate(ctx)
	metrics.RecordsEnumerated.WithLabelValues(m.source.Name()).Add(float64(len(records)))
	res := Result{Total: len(records)}
	if srcErr != nil && len(records) == 0 {
		return m.fail(res, srcErr)
	}
	m.logger.Info().
		Str("backend", m.source.Name()).
		Int("count", len(records)).
		Msgf("%d images to potentially migrate", len(records))

	if err := m.transition(types.StateProcessing); err != nil {
		return Result{State: m.state, Err: err}, err
	}

	for _, rec := range records {
		if err := m.migrateOne(rec); err != nil {
			return m.fail(res, err)
		}
		res.Processed++
	}
	if srcErr != nil {
		return m.fail(res, srcErr)
	}

	if err := m.transition(types.StateDone); err != nil {
		return Result{State: m.state, Err: err}, err
	}
	res.State = m.state
	m.logger.Info().Int("count", res.Processed).Msg("migration complete")
	return res, nil
}

// migrateOne normalizes and archives a single record.
func (m *Migrator) migrateOne(rec types.Record) error {
	id := rec.UUID()
	timer := metrics.NewTimer()
	m.logger.Info().Str("image_uuid", id).Msg("migrate image")

	manifest, err := m.normalize(rec)
	if err != nil {
		return err
	}
	if err := m.archiver.Write(id, manifest); err != nil {
		return err
	}

	timer.ObserveDuration(metrics.RecordDuration)
	metrics.RecordsArchived.Inc()
	return nil
}

func (m *Migrator) fail(res Result, err error) (Result, error) {
	if terr := m.transition(types.StateFailed); terr != nil {
		m.logger.Error().Err(terr).Msg("state transition")
	}
	metrics.Failures.WithLabelValues(types.KindOf(err)).Inc()
	m.logger.Error().
		Err(err).
		Str("stage", types.StageOf(err)).
		Int("processed", res.Processed).
		Msg("migration failed")

	res.State = m.state
	res.Err = err
	return res, err
}

// transition moves the run to state to, rejecting moves the run state
// machine does not allow.
func (m *Migrator) transition(to types.RunState) error {
	if !allowed(m.state, to) {
		return fmt.Errorf("invalid migration state transition %s -> %s", m.state, to)
	}
	m.logger.Debug().Str("from", string(m.state)).Str("to", string(to)).Msg("state")
	m.state = to
	metrics.SetRunState(to)
	return nil
}

func allowed(from, to types.RunState) bool {
	switch from {
	case types.StateIdle:
		return to == types.StateEnumerating
	case types.StateEnumerating:
		return to == types.StateProcessing || to == types.StateFailed
	case types.StateProcessing:
		return to == types.StateDone || to == types.StateFailed
	default:
		return false
	}
}
