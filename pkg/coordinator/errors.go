package coordinator

import "fmt"

// pipelineError carries the error-kind taxonomy a failed pipeline step
// reports, alongside whether the failure should consume a retry attempt.
// countsAsRetry is passed straight through to Store.MarkFailed: a
// rate-limit refusal is transient and must not burn down the job's
// maxRetries budget, so it alone sets countsAsRetry=false.
type pipelineError struct {
	kind          string
	err           error
	countsAsRetry bool
}

func (e *pipelineError) Error() string {
	return fmt.Sprintf("%s: %v", e.kind, e.err)
}

func (e *pipelineError) Unwrap() error {
	return e.err
}

func fatalError(kind string, err error) *pipelineError {
	return &pipelineError{kind: kind, err: err, countsAsRetry: true}
}

func rateLimitedError(err error) *pipelineError {
	return &pipelineError{kind: "rate-limited", err: err, countsAsRetry: false}
}
