package batch

// DefaultBatchSize is the batch size used when ConfigValues.BatchSize is
// zero.
const DefaultBatchSize = 1000
