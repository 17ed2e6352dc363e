// Package batch contains the batch processing engine. The main type is
// Batch, which can be created using New. It reads samples lazily from a
// dataset.Provider, groups them into batches of Config.BatchSize and runs a
// Transform over each batch using an Executor. The executor package
// provides goroutine and worker-process implementations; without one,
// samples are processed sequentially.
//
// A run moves through these states:
//
//	Accumulating -> Dispatching -> Accumulating | Finishing -> Done
//
// Samples are collected until a batch is full, which is then dispatched.
// Batches are not pipelined: the next batch is only collected after the
// previous one returned. When the dataset is exhausted the remaining
// partial batch is dispatched. After Config.MaxBatches batches the run stops
// without reading any further. Either way the executor is shut down and the
// results are returned in enumeration order.
//
// While a batch runs, a progress line with an ETA for the batch is logged
// every time the next result in order becomes available:
//
//	eta = (n*elapsed)/done - elapsed
//
// The config is read once at the start of every run.
package batch
