package lode

import "io"

// FileWriter streams one object into the store. Writes block until the
// backend consumes them. Not safe for concurrent use.
type FileWriter struct {
	path  string
	pw    *io.PipeWriter
	done  chan error
	store *FileStore

	n        int64
	finished bool
	err      error
}

// Path returns the object path.
func (w *FileWriter) Path() string {
	return w.path
}

// Size returns the number of bytes written.
func (w *FileWriter) Size() int64 {
	return w.n
}

// Write streams b to the backend. A backend failure is returned as a
// classified StorageError.
func (w *FileWriter) Write(b []byte) (int, error) {
	if w.finished {
		if w.err != nil {
			return 0, w.err
		}
		return 0, io.ErrClosedPipe
	}
	n, err := w.pw.Write(b)
	w.n += int64(n)
	if err != nil {
		if ferr := w.finish(true); ferr != nil {
			return n, ferr
		}
		w.err = WrapWriteError(err, w.path)
		return n, w.err
	}
	return n, nil
}

// Close completes the object and waits for the backend.
func (w *FileWriter) Close() error {
	if w.finished {
		return w.err
	}
	_ = w.pw.Close()
	return w.finish(true)
}

// Abort cancels the object with cause. It is not counted as a storage
// failure.
func (w *FileWriter) Abort(cause error) {
	if w.finished {
		return
	}
	w.pw.CloseWithError(cause)
	_ = w.finish(false)
}

func (w *FileWriter) finish(count bool) error {
	w.finished = true
	w.err = WrapWriteError(<-w.done, w.path)
	if count {
		if w.err != nil {
			w.store.collector.IncStorageWriteFailure()
			w.store.logger.Error("file write failed", map[string]any{"path": w.path, "error": w.err.Error()})
		} else {
			w.store.collector.IncStorageWriteSuccess()
		}
	}
	return w.err
}
