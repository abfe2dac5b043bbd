package wire

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/bigcomputing/nws/internal/nwslog"
)

// SpillConfig controls when a counted-long payload is streamed to a temp
// file instead of held in memory.
type SpillConfig struct {
	// Threshold is the effective byte threshold (already floored by
	// EffectiveThreshold) at or above which a payload spills to disk.
	Threshold int64
	// Dir is the directory spill files are created in.
	Dir string
	// Prefix names the server-chosen temp file prefix.
	Prefix string
}

// Payload is a counted-long value: either held in memory ("short") or
// streamed to a uniquely-named, mode-0600 temp file ("long"). File-backed
// payloads are the wire layer's half of data model component G (Value);
// the caller (internal/value) owns the file's lifecycle from here on.
type Payload struct {
	Len  int64
	mem  []byte
	file string
}

// NewMemPayload wraps an in-memory payload, e.g. for outbound short values
// built in-process rather than read off a socket.
func NewMemPayload(b []byte) *Payload {
	return &Payload{Len: int64(len(b)), mem: b}
}

// NewFilePayload wraps a payload already spilled to disk at path.
func NewFilePayload(path string, length int64) *Payload {
	return &Payload{Len: length, file: path}
}

// IsFile reports whether the payload lives on disk.
func (p *Payload) IsFile() bool { return p.file != "" }

// Path returns the spill file path, or "" for an in-memory payload.
func (p *Payload) Path() string { return p.file }

// Bytes returns the payload's full contents, reading the spill file if
// necessary. Intended for short payloads or tests; callers streaming a
// large value to the wire should use WriteTo instead.
func (p *Payload) Bytes() ([]byte, error) {
	if !p.IsFile() {
		return p.mem, nil
	}
	return ioutil.ReadFile(p.file)
}

// WriteTo streams the payload's bytes to w in ChunkSize-sized pieces when
// file-backed, matching the pause/resume producer contract described for
// long-reply value streaming.
func (p *Payload) WriteTo(w io.Writer) (int64, error) {
	if !p.IsFile() {
		n, err := w.Write(p.mem)
		return int64(n), err
	}

	f, err := os.Open(p.file)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	buf := make([]byte, ChunkSize)
	var total int64
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			wn, werr := w.Write(buf[:n])
			total += int64(wn)
			if werr != nil {
				return total, werr
			}
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}

// Remove deletes the backing spill file, if any. Safe to call more than
// once; only the first call that finds a file does anything.
func (p *Payload) Remove() {
	if p.file == "" {
		return
	}
	if err := os.Remove(p.file); err != nil && !os.IsNotExist(err) {
		nwslog.Warn("wire: failed to remove spill file %v: %v", p.file, err)
	}
	p.file = ""
}

// ReadLong reads a counted-long frame: a 20-digit length followed by that
// many bytes. Payloads at or above cfg.Threshold are streamed into a fresh
// mode-0600 temp file instead of being buffered.
//
// If a spill file cannot be created, the declared byte count is still
// drained from r so framing stays intact for whatever command comes next,
// and an error is returned so the caller can surface a short error and
// close the connection per the resource-accounting rule.
func ReadLong(r io.Reader, cfg SpillConfig) (*Payload, error) {
	n, err := readDigits(r, LongDigits)
	if err != nil {
		return nil, err
	}

	if n < cfg.Threshold {
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		return &Payload{Len: n, mem: buf}, nil
	}

	f, ferr := ioutil.TempFile(cfg.Dir, cfg.Prefix)
	if ferr != nil {
		// still drain n bytes to keep framing intact
		if _, err := io.CopyN(ioutil.Discard, r, n); err != nil {
			return nil, fmt.Errorf("wire: spill file create failed (%v) and drain failed: %w", ferr, err)
		}
		return nil, fmt.Errorf("wire: failed to create spill file: %w", ferr)
	}
	if err := f.Chmod(0600); err != nil {
		f.Close()
		os.Remove(f.Name())
		io.CopyN(ioutil.Discard, r, n)
		return nil, fmt.Errorf("wire: failed to chmod spill file: %w", err)
	}

	written, cerr := io.CopyN(f, r, n)
	path := f.Name()
	f.Close()
	if cerr != nil {
		os.Remove(path)
		return nil, fmt.Errorf("wire: spill write failed after %d/%d bytes: %w", written, n, cerr)
	}

	return &Payload{Len: n, file: path}, nil
}

// WriteLong writes p as a counted-long frame: a 20-digit length followed by
// the payload bytes (streamed from disk when file-backed).
func WriteLong(w io.Writer, p *Payload) error {
	if err := writeDigits(w, LongDigits, p.Len); err != nil {
		return err
	}
	_, err := p.WriteTo(w)
	return err
}

// ReadArgs reads an argument tuple: a 4-digit count N followed by N
// counted-long payloads.
func ReadArgs(r io.Reader, cfg SpillConfig) ([]*Payload, error) {
	n, err := readDigits(r, ShortDigits)
	if err != nil {
		return nil, err
	}

	args := make([]*Payload, 0, n)
	for i := int64(0); i < n; i++ {
		p, err := ReadLong(r, cfg)
		if err != nil {
			return nil, err
		}
		args = append(args, p)
	}
	return args, nil
}

// WriteArgs writes args as an argument tuple.
func WriteArgs(w io.Writer, args []*Payload) error {
	if err := writeDigits(w, ShortDigits, int64(len(args))); err != nil {
		return err
	}
	for _, p := range args {
		if err := WriteLong(w, p); err != nil {
			return err
		}
	}
	return nil
}
