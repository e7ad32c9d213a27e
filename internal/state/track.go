package state

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/san-kum/moldyn/internal/vector"
)

// Restore reports how RestoreTrack initialized its state.
type Restore int

const (
	// ColdStart means no usable checkpoint was found and the state is empty.
	ColdStart Restore = iota
	// Restored means the state was decoded from the last checkpoint line.
	Restored
)

func (r Restore) String() string {
	switch r {
	case ColdStart:
		return "cold-start"
	case Restored:
		return "restored"
	default:
		return fmt.Sprintf("Restore(%d)", int(r))
	}
}

const (
	lastLineChunk   = 64 << 10
	maxSnapshotLine = 1 << 30
)

// Track is an in-memory state that appends a checkpoint line to a log file on
// every Sync.
type Track[D vector.Dimension] struct {
	mem      InMemory[D]
	path     string
	file     *os.File
	lastTime float64
	logger   *log.Logger
}

type TrackOption func(*trackOptions)

type trackOptions struct {
	logger *log.Logger
}

func WithLogger(l *log.Logger) TrackOption {
	return func(o *trackOptions) { o.logger = l }
}

func buildTrackOptions(opts []TrackOption) trackOptions {
	o := trackOptions{logger: log.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// OpenTrack starts an empty state logging to path. The file is created if it
// does not exist and appended to otherwise.
func OpenTrack[D vector.Dimension](path string, opts ...TrackOption) (*Track[D], error) {
	o := buildTrackOptions(opts)
	f, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	return &Track[D]{path: path, file: f, logger: o.logger}, nil
}

// RestoreTrack rebuilds a state from the last line of the log at path and keeps
// appending to it. A missing, empty or undecodable log, or a last checkpoint
// without particles, yields an empty state and ColdStart. The error is non-nil only when the log cannot be opened for
// appending.
func RestoreTrack[D vector.Dimension](path string, opts ...TrackOption) (*Track[D], Restore, error) {
	o := buildTrackOptions(opts)
	t := &Track[D]{path: path, logger: o.logger}

	status := ColdStart
	mem, at, err := readCheckpoint[D](path)
	switch {
	case err == nil:
		t.mem = *mem
		t.lastTime = at
		status = Restored
	case errors.Is(err, fs.ErrNotExist):
		o.logger.Debug("no checkpoint, starting cold", "path", path)
	default:
		o.logger.Warn("unusable checkpoint, starting cold", "path", path, "err", err)
	}

	f, err := openAppend(path)
	if err != nil {
		return nil, ColdStart, err
	}
	t.file = f

	if status == Restored {
		o.logger.Info("restored checkpoint", "path", path, "time", t.lastTime, "particles", len(t.mem.ens.Positions))
	}
	return t, status, nil
}

func (t *Track[D]) Ensemble() *Ensemble[D] { return t.mem.Ensemble() }

// LastTime is the time of the most recent checkpoint written or restored.
func (t *Track[D]) LastTime() float64 { return t.lastTime }

func (t *Track[D]) Path() string { return t.path }

func (t *Track[D]) Sync(timeNow float64) error {
	if t.file == nil {
		return fmt.Errorf("state: track %s is closed", t.path)
	}
	payload, err := json.Marshal(&t.mem)
	if err != nil {
		return fmt.Errorf("state: encode checkpoint: %w", err)
	}

	line := make([]byte, 0, len(payload)+32)
	line = strconv.AppendFloat(line, timeNow, 'g', -1, 64)
	line = append(line, ". "...)
	line = append(line, payload...)
	line = append(line, '\n')

	if _, err := t.file.Write(line); err != nil {
		return fmt.Errorf("state: append checkpoint to %s: %w", t.path, err)
	}
	t.lastTime = timeNow
	return nil
}

func (t *Track[D]) Close() error {
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	return err
}

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("state: open track %s: %w", path, err)
	}
	return f, nil
}

// ParseCheckpoint decodes one "<time>. <json>" line.
func ParseCheckpoint[D vector.Dimension](line string) (*InMemory[D], float64, error) {
	at, payload, err := splitCheckpoint(line)
	if err != nil {
		return nil, 0, err
	}
	var mem InMemory[D]
	if err := json.Unmarshal([]byte(payload), &mem); err != nil {
		return nil, 0, fmt.Errorf("state: checkpoint payload: %w", err)
	}
	return &mem, at, nil
}

func splitCheckpoint(line string) (float64, string, error) {
	prefix, payload, ok := strings.Cut(line, ". ")
	if !ok {
		return 0, "", errors.New("state: checkpoint line has no separator")
	}
	at, err := strconv.ParseFloat(strings.TrimSpace(prefix), 64)
	if err != nil {
		return 0, "", fmt.Errorf("state: checkpoint time: %w", err)
	}
	return at, payload, nil
}

// Snapshot is a checkpoint with its dimension erased: every vector is a
// slice of D components.
type Snapshot struct {
	Time       float64     `json:"time"`
	Positions  [][]float64 `json:"positions"`
	Velocities [][]float64 `json:"velocities"`
}

// LastSnapshot reads a checkpoint log from r to the end and decodes its last
// non-blank line. Unlike RestoreTrack it needs no seekable file, so it also
// works on decompressed streams.
func LastSnapshot(r io.Reader) (*Snapshot, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, lastLineChunk), maxSnapshotLine)

	var last []byte
	for sc.Scan() {
		if line := bytes.TrimSpace(sc.Bytes()); len(line) > 0 {
			last = append(last[:0], line...)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("state: read checkpoint log: %w", err)
	}
	if len(last) == 0 {
		return nil, errors.New("state: empty checkpoint log")
	}

	at, payload, err := splitCheckpoint(string(last))
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{}
	if err := json.Unmarshal([]byte(payload), snap); err != nil {
		return nil, fmt.Errorf("state: checkpoint payload: %w", err)
	}
	snap.Time = at
	return snap, nil
}

func readCheckpoint[D vector.Dimension](path string) (*InMemory[D], float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	line, err := lastLine(f)
	if err != nil {
		return nil, 0, err
	}
	if line == "" {
		return nil, 0, errors.New("state: empty checkpoint log")
	}
	mem, at, err := ParseCheckpoint[D](line)
	if err != nil {
		return nil, 0, err
	}
	if len(mem.ens.Positions) == 0 {
		return nil, 0, errors.New("state: checkpoint holds no particles")
	}
	return mem, at, nil
}

// lastLine reads backwards from the end of f until it has seen one full line,
// ignoring trailing newlines.
func lastLine(f *os.File) (string, error) {
	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	var buf []byte
	end := info.Size()
	for end > 0 {
		start := end - lastLineChunk
		if start < 0 {
			start = 0
		}
		chunk := make([]byte, end-start)
		n, err := f.ReadAt(chunk, start)
		if err != nil && !(errors.Is(err, io.EOF) && n == len(chunk)) {
			return "", err
		}
		buf = append(chunk, buf...)

		trimmed := bytes.TrimRight(buf, "\r\n")
		if i := bytes.LastIndexByte(trimmed, '\n'); i >= 0 {
			return string(trimmed[i+1:]), nil
		}
		end = start
	}
	return string(bytes.TrimRight(buf, "\r\n")), nil
}
