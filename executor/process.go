package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"sync"

	"github.com/MasterOfBinary/malbatch/batch"
	"github.com/MasterOfBinary/malbatch/dataset"
	"github.com/MasterOfBinary/malbatch/sample"
)

// ProcessConfig provides configuration options for creating a ProcessPool.
type ProcessConfig struct {
	// Command is the worker executable. It must run Serve on its standard
	// input and output. This field is required.
	Command string

	// Args are passed to Command.
	Args []string

	// Env is appended to the environment of the current process.
	Env []string

	// Workers is the number of worker processes. If zero,
	// runtime.NumCPU() is used.
	Workers int

	// Transform is the name the workers look the transform up by. If empty,
	// the transform passed to Execute must implement Named.
	Transform string

	// Decode converts a worker's JSON result into the value stored in the
	// batch.Result. If nil, the json.RawMessage is stored as is.
	Decode func(json.RawMessage) (interface{}, error)

	// Stderr receives the workers' standard error. If nil, it is discarded.
	Stderr io.Writer

	// Logger is used to log worker lifecycle events. If nil, nothing is
	// logged.
	Logger *slog.Logger
}

// Validate checks if the ProcessConfig is valid.
func (c ProcessConfig) Validate() error {
	if c.Command == "" {
		return errors.New("command cannot be empty")
	}
	if c.Workers < 0 {
		return errors.New("workers cannot be negative")
	}
	return nil
}

// ProcessPool is a batch.Executor that runs the transform in a fixed set of
// worker processes. Workers are started on the first call to Execute and
// live until Shutdown, so they are reused across batches.
//
// Since a transform cannot be sent to another process, workers resolve both
// the transform and the provider by name; see Serve.
type ProcessPool struct {
	config ProcessConfig
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	closed  bool
	workers []*worker
	jobs    chan *job
	nextID  uint64
	active  sync.WaitGroup
	exited  sync.WaitGroup
}

type job struct {
	req  request
	resp chan response
}

type worker struct {
	id    int
	cmd   *exec.Cmd
	stdin io.WriteCloser
	enc   *json.Encoder
	dec   *json.Decoder
	err   error
}

// NewProcessPool creates a ProcessPool with the given configuration.
// It validates the configuration and returns an error if invalid. No
// process is started until the first call to Execute.
//
// Example:
//
//	self, _ := os.Executable()
//	pool, err := executor.NewProcessPool(executor.ProcessConfig{
//		Command:   self,
//		Args:      []string{"worker"},
//		Workers:   8,
//		Transform: "scan",
//	})
func NewProcessPool(config ProcessConfig) (*ProcessPool, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid process pool config: %w", err)
	}

	if config.Workers == 0 {
		config.Workers = runtime.NumCPU()
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &ProcessPool{
		config: config,
		logger: logger,
	}, nil
}

// Workers returns the number of worker processes.
func (p *ProcessPool) Workers() int {
	return p.config.Workers
}

// Execute implements the batch.Executor interface. Samples are sent to idle
// workers in order; on the first failure no further samples are sent.
func (p *ProcessPool) Execute(ctx context.Context, prov dataset.Provider, t batch.Transform, samples []*sample.Sample, progress func(done int)) ([]interface{}, error) {
	name := p.config.Transform
	if name == "" {
		if named, ok := t.(Named); ok {
			name = named.TransformName()
		}
		if name == "" {
			return nil, fmt.Errorf("executor: transform %T has no name and cannot run in a worker process", t)
		}
	}

	jobs, err := p.prepare(prov.Name(), name, samples)
	if err != nil {
		return nil, err
	}
	defer p.active.Done()

	stop := make(chan struct{})
	submitted := make(chan struct{})
	defer func() {
		close(stop)
		<-submitted
	}()

	go func() {
		defer close(submitted)
		for _, j := range jobs {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case p.jobs <- j:
			}
		}
	}()

	values := make([]interface{}, len(samples))
	for i, j := range jobs {
		var resp response
		select {
		case resp = <-j.resp:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		if resp.Error != "" {
			return nil, batch.NewTransformError(samples[i], &RemoteError{Message: resp.Error})
		}

		v, err := p.decode(resp.Result)
		if err != nil {
			return nil, batch.NewTransformError(samples[i], fmt.Errorf("decode result: %w", err))
		}
		values[i] = v

		if progress != nil {
			progress(i + 1)
		}
	}

	return values, nil
}

// prepare starts the workers if needed and builds one job per sample. On
// success the caller must call p.active.Done.
func (p *ProcessPool) prepare(provider, transform string, samples []*sample.Sample) ([]*job, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}
	if !p.started {
		if err := p.start(); err != nil {
			return nil, err
		}
	}

	jobs := make([]*job, len(samples))
	for i, s := range samples {
		p.nextID++
		jobs[i] = &job{
			req: request{
				ID:        p.nextID,
				Provider:  provider,
				Transform: transform,
				Sample:    s,
			},
			resp: make(chan response, 1),
		}
	}

	p.active.Add(1)
	return jobs, nil
}

func (p *ProcessPool) decode(raw json.RawMessage) (interface{}, error) {
	if p.config.Decode == nil {
		return raw, nil
	}
	return p.config.Decode(raw)
}

// start launches the worker processes. Must be called with p.mu held.
func (p *ProcessPool) start() error {
	p.jobs = make(chan *job)

	for i := 0; i < p.config.Workers; i++ {
		w, err := p.spawn(i)
		if err != nil {
			for _, started := range p.workers {
				_ = started.cmd.Process.Kill()
				_ = started.cmd.Wait()
			}
			p.workers = nil
			return err
		}
		p.workers = append(p.workers, w)
	}

	for _, w := range p.workers {
		p.exited.Add(1)
		go p.serve(w)
	}

	p.started = true
	p.logger.Info("worker processes started", "workers", len(p.workers), "command", p.config.Command)
	return nil
}

func (p *ProcessPool) spawn(id int) (*worker, error) {
	cmd := exec.Command(p.config.Command, p.config.Args...)
	cmd.Env = append(os.Environ(), p.config.Env...)
	cmd.Stderr = p.config.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("executor: worker %d: %w", id, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("executor: worker %d: %w", id, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("executor: start worker %d: %w", id, err)
	}

	return &worker{
		id:    id,
		cmd:   cmd,
		stdin: stdin,
		enc:   json.NewEncoder(stdin),
		dec:   json.NewDecoder(stdout),
	}, nil
}

// serve feeds jobs to one worker process, one at a time, until the jobs
// channel is closed.
func (p *ProcessPool) serve(w *worker) {
	defer p.exited.Done()

	for j := range p.jobs {
		j.resp <- w.call(j.req)
	}

	_ = w.stdin.Close()
	if err := w.cmd.Wait(); err != nil {
		p.logger.Warn("worker process exited with error", "worker", w.id, "error", err)
	}
}

// call sends req to the worker and waits for the response. Once the worker
// is broken every call fails with the same error.
func (w *worker) call(req request) response {
	if w.err == nil {
		var resp response
		resp, w.err = w.roundTrip(req)
		if w.err == nil {
			return resp
		}
	}
	return response{ID: req.ID, Error: fmt.Sprintf("worker %d: %v", w.id, w.err)}
}

func (w *worker) roundTrip(req request) (response, error) {
	var resp response
	if err := w.enc.Encode(req); err != nil {
		return resp, fmt.Errorf("send request: %w", err)
	}
	if err := w.dec.Decode(&resp); err != nil {
		return resp, fmt.Errorf("read response: %w", err)
	}
	if resp.ID != req.ID {
		return resp, fmt.Errorf("response id %d does not match request id %d", resp.ID, req.ID)
	}
	return resp, nil
}

// Shutdown implements the batch.Executor interface. It waits for a running
// Execute call to return, then closes the workers' standard input and
// waits for them to exit. If ctx expires first the workers are killed and
// Shutdown returns without waiting further; a running Execute then fails
// and the workers are reaped in the background.
func (p *ProcessPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	started := p.started
	p.mu.Unlock()

	if !started {
		return nil
	}

	finished := make(chan struct{})
	go func() {
		p.active.Wait()
		close(p.jobs)
		p.exited.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		p.logger.Info("worker processes stopped", "workers", len(p.workers))
		return nil
	case <-ctx.Done():
		for _, w := range p.workers {
			_ = w.cmd.Process.Kill()
		}
		return ctx.Err()
	}
}
