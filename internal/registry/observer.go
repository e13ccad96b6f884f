package registry

import (
	"fmt"
	"io"
	"os"
)

// Receives streamed daemon progress.
//
// Implementations must be cheap; they are called once per progress record
// while a daemon stream is being drained.
type Observer interface {
	// Called with one non-blank build log line.
	Line(line string)

	// Called with a pull/push status and its rendered progress data.
	Progress(status, progress string)
}

// Returns an observer that writes progress to a writer, one event per line.
func NewWriterObserver(w io.Writer) Observer {
	return &writerObserver{w: w}
}

// Returns the default observer, writing to stdout.
func Stdout() Observer {
	return NewWriterObserver(os.Stdout)
}

// Returns an observer that discards all events.
func Discard() Observer {
	return discardObserver{}
}

type writerObserver struct {
	w io.Writer
}

func (o *writerObserver) Line(line string) {
	fmt.Fprintln(o.w, line)
}

func (o *writerObserver) Progress(status, progress string) {
	fmt.Fprintln(o.w, status, progress)
}

type discardObserver struct{}

func (discardObserver) Line(string)             {}
func (discardObserver) Progress(string, string) {}
