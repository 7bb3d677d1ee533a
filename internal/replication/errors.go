package replication

// GenerationError reports a failed or unparseable suggestion call. The loop
// does not retry it: a broken prompt, schema or credential should fail the
// whole run fast instead of burning iterations.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return "generate suggestion: " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// JudgmentError reports a failed or unparseable sufficiency call. Like
// GenerationError it is fatal to the run: it only occurs after an execution
// already succeeded and indicates a meta-failure in evaluating that success.
type JudgmentError struct {
	Err error
}

func (e *JudgmentError) Error() string {
	return "assess output: " + e.Err.Error()
}

func (e *JudgmentError) Unwrap() error {
	return e.Err
}
