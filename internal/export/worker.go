package export

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"mzquant/internal/blob"
	"mzquant/internal/cv"
	"mzquant/internal/persistence"
	"mzquant/internal/report"
	"mzquant/pkg/quant"
)

const reportContentType = "application/xml"

// Job is one export request. An empty Key gets a generated location under
// reports/.
type Job struct {
	Experiment *quant.Experiment
	Key        string
}

// Outcome describes one finished export: where the document landed and the
// warnings the build produced.
type Outcome struct {
	Record persistence.ExportRecord
	Result quant.Result
}

// WorkerConfig wires a worker's collaborators. Store is required; Archive,
// Metrics, Tracer, and OnDone are optional.
type WorkerConfig struct {
	Validator *cv.Validator
	Store     blob.Store
	Archive   persistence.Archive
	Metrics   MetricsRecorder
	Tracer    Tracer
	QueueSize int
	// OnDone is invoked after each queued job finishes, successful or not.
	OnDone func(Outcome, error)
}

// Worker builds report documents and persists them. Export runs one job
// synchronously; Start/Submit/Stop run jobs on a background pool.
type Worker struct {
	cfg  WorkerConfig
	jobs chan Job
	wg   sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewWorker returns a worker for the given configuration.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("export worker requires a blob store")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	return &Worker{cfg: cfg, jobs: make(chan Job, cfg.QueueSize)}, nil
}

// Export builds the job's document, stores it, and appends the archive
// record. Build warnings are returned in the outcome, not as an error.
func (w *Worker) Export(ctx context.Context, job Job) (Outcome, error) {
	var span TraceSpan
	if w.cfg.Tracer != nil {
		ctx, span = w.cfg.Tracer.Start(ctx, "export")
	}
	started := time.Now()
	out, err := w.run(ctx, job)
	if w.cfg.Metrics != nil {
		w.cfg.Metrics.Observe(ctx, "export", err == nil, time.Since(started))
	}
	if span != nil {
		span.End(err)
	}
	return out, err
}

func (w *Worker) run(ctx context.Context, job Job) (Outcome, error) {
	if job.Experiment == nil {
		return Outcome{}, fmt.Errorf("export job missing experiment")
	}
	doc, res := report.NewBuilder(w.cfg.Validator, job.Experiment).Build()

	key := job.Key
	if key == "" {
		key = "reports/" + uuid.NewString() + ".mzq"
	}
	info, err := w.cfg.Store.Put(ctx, key, bytes.NewReader(doc), blob.PutOptions{
		ContentType: reportContentType,
		Metadata: map[string]string{
			"quant_type": string(job.Experiment.QuantType),
			"warnings":   fmt.Sprintf("%d", len(res.Warnings)),
		},
	})
	if err != nil {
		return Outcome{Result: res}, fmt.Errorf("store report: %w", err)
	}

	rec := persistence.ExportRecord{
		ID:           uuid.NewString(),
		Key:          info.Key,
		QuantType:    string(job.Experiment.QuantType),
		WarningCount: len(res.Warnings),
		SizeBytes:    info.Size,
		ETag:         info.ETag,
		CreatedAt:    time.Now().UTC(),
	}
	if w.cfg.Archive != nil {
		if err := w.cfg.Archive.Append(ctx, rec); err != nil {
			return Outcome{Record: rec, Result: res}, fmt.Errorf("archive export: %w", err)
		}
	}
	return Outcome{Record: rec, Result: res}, nil
}

// Start launches n background workers draining the queue. Safe to call once.
func (w *Worker) Start(n int) {
	if n <= 0 {
		n = 1
	}
	w.startOnce.Do(func() {
		for i := 0; i < n; i++ {
			w.wg.Add(1)
			go w.loop()
		}
	})
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for job := range w.jobs {
		out, err := w.Export(context.Background(), job)
		if w.cfg.OnDone != nil {
			w.cfg.OnDone(out, err)
		}
	}
}

// Submit enqueues a job, failing when the queue is full.
func (w *Worker) Submit(job Job) error {
	select {
	case w.jobs <- job:
		return nil
	default:
		return fmt.Errorf("export queue full")
	}
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.jobs)
	})
	w.wg.Wait()
}
