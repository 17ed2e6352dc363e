package main

import (
	"github.com/redis/go-redis/v9"

	"github.com/MasterOfBinary/malbatch/batch"
	"github.com/MasterOfBinary/malbatch/config"
	"github.com/MasterOfBinary/malbatch/executor"
	"github.com/MasterOfBinary/malbatch/transform"
)

// newRedis returns a client for the configured cache, or nil if caching is
// disabled. The caller closes it.
func (a *app) newRedis() *redis.Client {
	if a.cfg.Cache.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: a.cfg.Cache.RedisAddr})
}

// wrap stacks the configured wrappers on t: timing innermost so that cache
// hits are not observed, then the cache, then logging.
func (a *app) wrap(t batch.Transform, client *redis.Client, observer transform.Observer) (batch.Transform, error) {
	if observer != nil {
		t = transform.WithStats(t, observer)
	}
	if client != nil {
		cached, err := transform.NewCached(t, client, transform.CacheConfig{
			Prefix: a.cfg.Cache.Prefix,
			TTL:    a.cfg.Cache.TTL,
		})
		if err != nil {
			return nil, err
		}
		t = cached
	}
	return transform.WithLogging(t, a.logger), nil
}

// newExecutor builds the executor for the configured mode. transformName is
// what worker processes look the transform up by.
func (a *app) newExecutor(transformName string) (batch.Executor, error) {
	workers := a.cfg.Executor.Workers

	switch a.cfg.Executor.Mode {
	case config.ModePool:
		pool, err := executor.NewPool(executor.PoolConfig{Workers: workers})
		if err != nil {
			return nil, err
		}
		return pool, nil

	case config.ModeProcess:
		self, err := a.executable()
		if err != nil {
			return nil, err
		}
		pool, err := executor.NewProcessPool(executor.ProcessConfig{
			Command:   self,
			Args:      a.workerArgs(),
			Workers:   workers,
			Transform: transformName,
			Stderr:    a.stderr,
			Logger:    a.logger,
		})
		if err != nil {
			return nil, err
		}
		return pool, nil
	}

	return batch.SequentialExecutor{}, nil
}

// workerArgs hands the effective configuration down to worker processes.
func (a *app) workerArgs() []string {
	args := []string{"worker",
		"--log-level", a.cfg.Log.Level,
		"--log-format", a.cfg.Log.Format,
	}
	if a.opts.configPath != "" {
		args = append(args, "--config", a.opts.configPath)
	}
	if a.cfg.Datasets.BodmasDir != "" {
		args = append(args, "--bodmas-dir", a.cfg.Datasets.BodmasDir)
	}
	return args
}

// wrappedTransforms applies the configured wrappers to every transform a
// worker process looks up.
type wrappedTransforms struct {
	registry *transform.Registry
	wrap     func(batch.Transform) (batch.Transform, error)
}

func (w wrappedTransforms) Get(name string) (batch.Transform, error) {
	t, err := w.registry.Get(name)
	if err != nil {
		return nil, err
	}
	return w.wrap(t)
}
