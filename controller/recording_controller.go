package controller

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"sensor-fdir/models"
	"sensor-fdir/utils"
	"sensor-fdir/views"
)

// RecordingController persists fused output as CSV, one file per class
// (rate.csv, position.csv) inside a fresh session directory.
//
// Rows go into buffered writers; a flusher goroutine pushes them to disk at
// the configured interval so the fusion loop never waits on I/O.
type RecordingController struct {
	storageCfg *utils.StorageConfig
	sessionDir string
	clock      utils.Clock
	log        *logrus.Entry

	rateWriter     *views.CSVWriter
	positionWriter *views.CSVWriter

	rowsWritten atomic.Uint64
	flusher     utils.Worker
	closed      atomic.Bool
}

// NewRecordingController creates the session directory and CSV writers.
func NewRecordingController(storageCfg *utils.StorageConfig, clock utils.Clock, log *logrus.Entry) (*RecordingController, error) {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	if log == nil {
		log = utils.DiscardLogger()
	}

	sess := utils.SessionName(storageCfg.Storage.SessionPrefix, clock.Now())
	sessionDir := filepath.Join(storageCfg.Storage.BaseDir, sess)

	if !storageCfg.Storage.Overwrite {
		if _, err := os.Stat(sessionDir); err == nil {
			return nil, fmt.Errorf("session dir %s already exists (overwrite=false)", sessionDir)
		}
	}
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	csvCfg := storageCfg.Storage.CSV
	bufSize := csvCfg.BufferSizeKB * 1024

	rc := &RecordingController{
		storageCfg: storageCfg,
		sessionDir: sessionDir,
		clock:      clock,
		log:        log.WithField("component", "recorder"),
	}

	var err error
	rc.rateWriter, err = views.NewCSVWriter(
		filepath.Join(sessionDir, views.FileName(models.ClassRate)), bufSize, csvCfg.WriteHeader,
		views.SchemaColumns,
	)
	if err != nil {
		return nil, err
	}
	rc.positionWriter, err = views.NewCSVWriter(
		filepath.Join(sessionDir, views.FileName(models.ClassPosition)), bufSize, csvCfg.WriteHeader,
		views.SchemaColumns,
	)
	if err != nil {
		rc.rateWriter.Close()
		return nil, err
	}

	rc.log.WithFields(logrus.Fields{
		"rate":     rc.rateWriter.Path(),
		"position": rc.positionWriter.Path(),
	}).Info("recording controller ready")
	return rc, nil
}

// Start launches the periodic flusher.
func (rc *RecordingController) Start() {
	flushMs := rc.storageCfg.Storage.CSV.FlushIntervalMs
	if flushMs <= 0 {
		flushMs = 100
	}
	period := time.Duration(flushMs) * time.Millisecond
	if rc.flusher.Start(rc.clock, func() time.Duration { return period }, rc.flushAll) {
		rc.log.Debug("recording flusher started")
	}
}

func (rc *RecordingController) AppendRate(rec models.AxisRecord) error {
	return rc.append(rc.rateWriter, rec)
}

func (rc *RecordingController) AppendPosition(rec models.AxisRecord) error {
	return rc.append(rc.positionWriter, rec)
}

func (rc *RecordingController) append(w *views.CSVWriter, rec models.AxisRecord) error {
	if rc.closed.Load() {
		return errors.New("recording controller is closed")
	}
	if err := w.WriteRecord(rec); err != nil {
		return err
	}
	rc.rowsWritten.Add(1)
	return nil
}

func (rc *RecordingController) flushAll() {
	for _, w := range []*views.CSVWriter{rc.rateWriter, rc.positionWriter} {
		if err := w.Flush(); err != nil {
			rc.log.WithError(err).Error("flush failed")
		}
	}
}

// Stop joins the flusher, then flushes and closes both files. Safe to call
// more than once.
func (rc *RecordingController) Stop() error {
	if !rc.closed.CompareAndSwap(false, true) {
		return nil
	}
	rc.flusher.Stop()

	var errs []error
	for _, w := range []*views.CSVWriter{rc.rateWriter, rc.positionWriter} {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	rc.log.WithFields(logrus.Fields{
		"rows_written": rc.RowsWritten(),
		"session":      rc.sessionDir,
	}).Info("recording controller stopped")
	return errors.Join(errs...)
}

// SessionDir returns the path to the active session directory.
func (rc *RecordingController) SessionDir() string {
	return rc.sessionDir
}

// RowsWritten returns the total number of rows persisted across both files.
func (rc *RecordingController) RowsWritten() uint64 {
	return rc.rowsWritten.Load()
}
