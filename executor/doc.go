// Package executor contains parallel implementations of batch.Executor.
//
// Pool runs the transform on a fixed number of goroutines. ProcessPool runs
// it in a fixed set of worker processes, which is useful when the transform
// is CPU bound or may crash on malformed input. A worker process is any
// program that calls Serve on its standard input and output; the malbatch
// command does so in its hidden "worker" subcommand.
//
// The two sides exchange one JSON object per line:
//
//	-> {"id":1,"provider":"bodmas","transform":"scan","sample":{"path":"/data/samples/<sha256>.exe","sha256":"<sha256>"}}
//	<- {"id":1,"result":{...}}
//	<- {"id":2,"error":"not a PE file"}
//
// Both executors return results in the order of the samples, whatever order
// they complete in, and report progress in that same order.
package executor
