package exec

import "bytes"

// ForkWriter models a forked process's view of stdout: all processes
// append to one shared stream (the inherited file description), while each
// process additionally remembers the stream contents it inherited and the
// bytes it wrote itself.
type ForkWriter struct {
	shared *bytes.Buffer
	prefix []byte
	own    bytes.Buffer
}

// NewForkWriter returns the root process's writer.
func NewForkWriter() *ForkWriter {
	return &ForkWriter{shared: &bytes.Buffer{}}
}

func (w *ForkWriter) Write(p []byte) (int, error) {
	w.own.Write(p)
	return w.shared.Write(p)
}

// Fork returns the child's writer: same shared stream, inherited prefix.
func (w *ForkWriter) Fork() *ForkWriter {
	prefix := make([]byte, 0, len(w.prefix)+w.own.Len())
	prefix = append(prefix, w.prefix...)
	prefix = append(prefix, w.own.Bytes()...)

	return &ForkWriter{shared: w.shared, prefix: prefix}
}

// View returns this process lineage's observable output: inherited bytes
// followed by its own writes.
func (w *ForkWriter) View() string {
	return string(w.prefix) + w.own.String()
}

// Own returns only the bytes this process wrote itself.
func (w *ForkWriter) Own() string {
	return w.own.String()
}

// Shared returns the interleaved stream of every process in the tree.
func (w *ForkWriter) Shared() string {
	return w.shared.String()
}
