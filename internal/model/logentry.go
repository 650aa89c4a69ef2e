package model

// LogBodyKind discriminates the LogEntry body tagged union.
type LogBodyKind string

const (
	LogStdout     LogBodyKind = "stdout"
	LogStderr     LogBodyKind = "stderr"
	LogNormalized LogBodyKind = "normalized"
	LogDiff       LogBodyKind = "diff"
	LogFinished   LogBodyKind = "finished"
)

// LogBody is a tagged union: exactly one field is populated, selected by Kind.
type LogBody struct {
	Kind LogBodyKind

	Chunk      []byte           // Kind == LogStdout | LogStderr
	Normalized *NormalizedEntry // Kind == LogNormalized
	Diff       *DiffFileEntry   // Kind == LogDiff
}

// LogEntry is one append in a process's Message Store: (process-id,
// entry-index, body). Within one process, indexes are dense and
// monotonically increasing from 0, and a Finished entry terminates the
// stream.
type LogEntry struct {
	ProcessID string
	Index     uint64
	Body      LogBody
}

// StdoutEntry constructs a stdout chunk LogBody.
func StdoutEntry(chunk []byte) LogBody {
	return LogBody{Kind: LogStdout, Chunk: chunk}
}

// StderrEntry constructs a stderr chunk LogBody.
func StderrEntry(chunk []byte) LogBody {
	return LogBody{Kind: LogStderr, Chunk: chunk}
}

// NormalizedLogEntry constructs a normalized-entry LogBody.
func NormalizedLogEntry(e NormalizedEntry) LogBody {
	return LogBody{Kind: LogNormalized, Normalized: &e}
}

// DiffLogEntry constructs a diff-entry LogBody.
func DiffLogEntry(e DiffFileEntry) LogBody {
	return LogBody{Kind: LogDiff, Diff: &e}
}

// FinishedEntry constructs the terminal LogBody.
func FinishedEntry() LogBody {
	return LogBody{Kind: LogFinished}
}
