package watcher

import (
	"bytes"
	"io"
	"time"
	"unicode/utf8"
)

// readBufferSize is the size of a single read from a child's output pipe.
const readBufferSize = 4096

// readChunks reads r until EOF and calls emit for every chunk.
//
// A chunk is a complete line (without its trailing newline or carriage
// return), a run of at most maxChunk bytes ending on a rune boundary when no newline appears within that many
// bytes, or whatever partial line is pending once no new data has arrived for
// idle. emit is called from the goroutine running readChunks.
func readChunks(r io.Reader, maxChunk int, idle time.Duration, emit func(string)) {
	if maxChunk <= 0 {
		maxChunk = readBufferSize
	}

	reads := make(chan []byte)
	go func() {
		defer close(reads)
		buf := make([]byte, readBufferSize)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				reads <- bytes.Clone(buf[:n])
			}
			if err != nil {
				return
			}
		}
	}()

	var pending []byte
	flush := time.NewTimer(idle)
	flush.Stop()
	defer flush.Stop()

	for {
		select {
		case data, ok := <-reads:
			if !ok {
				if len(pending) > 0 {
					emit(string(pending))
				}
				return
			}
			pending = append(pending, data...)
			for len(pending) > 0 {
				i := bytes.IndexByte(pending, '\n')
				if i >= 0 && i <= maxChunk {
					emit(string(bytes.TrimSuffix(pending[:i], []byte{'\r'})))
					pending = pending[i+1:]
					continue
				}
				if len(pending) < maxChunk {
					break
				}
				n := runeCut(pending, maxChunk)
				emit(string(pending[:n]))
				pending = pending[n:]
			}
			if len(pending) > 0 && idle > 0 {
				flush.Reset(idle)
			} else {
				flush.Stop()
			}
		case <-flush.C:
			if len(pending) > 0 {
				emit(string(pending))
				pending = nil
			}
		}
	}
}

// runeCut returns n <= limit such that b[:n] does not end inside a multi-byte
// UTF-8 sequence. It returns limit when the cut would leave nothing.
func runeCut(b []byte, limit int) int {
	start := limit - 1
	for start > 0 && start > limit-utf8.UTFMax && !utf8.RuneStart(b[start]) {
		start--
	}
	if start > 0 && !utf8.FullRune(b[start:limit]) {
		return start
	}
	return limit
}
