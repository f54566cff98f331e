package wal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/jnidzwetzki/pg-debug-scan/pkg/compression"
	"github.com/jnidzwetzki/pg-debug-scan/pkg/types"
)

var ErrCorruptRecord = errors.New("wal: corrupt record")

const (
	segmentPrefix      = "wal-"
	segmentSuffix      = ".log"
	compressedSuffix   = ".log.zst"
	defaultSegmentSize = 4 << 20
)

// RecordType tags what a journal record describes.
type RecordType uint8

const (
	RecordBegin RecordType = iota + 1
	RecordCommit
	RecordAbort
	RecordCreateTable
	RecordInsert
	RecordUpdate
	RecordDelete
)

// Record is one journal entry. Table, Row and Payload are meaningful only
// for the record types that carry them; Payload holds rowcodec-encoded data.
type Record struct {
	Type    RecordType
	Xid     types.TxID
	Table   string
	Row     types.RowID
	Payload []byte
}

// Options configure the journal directory and segment handling.
type Options struct {
	Dir string
	// SegmentBytes is the rotation threshold; 0 uses a 4 MiB default.
	SegmentBytes int64
	// CompressRotated archives closed segments with zstd.
	CompressRotated bool
}

// WAL journals table DDL, row operations and transaction outcomes so the
// engine can rebuild its heap and commit log on startup. Appends are
// synchronous: the record is flushed and synced before Append returns.
type WAL struct {
	opts Options

	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	size   int64
	seq    int
}

// Open creates the journal directory if needed and opens the active segment
// for appending.
func Open(opts Options) (*WAL, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("wal: empty dir")
	}
	if opts.SegmentBytes <= 0 {
		opts.SegmentBytes = defaultSegmentSize
	}
	opts.Dir = filepath.Clean(opts.Dir)
	if err := os.MkdirAll(opts.Dir, 0750); err != nil {
		return nil, fmt.Errorf("wal: create dir: %w", err)
	}

	w := &WAL{opts: opts}

	segs, err := w.segments()
	if err != nil {
		return nil, err
	}
	w.seq = 1
	if n := len(segs); n > 0 {
		last := segs[n-1]
		w.seq = last.seq
		if last.compressed {
			// archived segments are immutable, start a fresh one
			w.seq++
		}
	}

	if err := w.openSegment(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *WAL) openSegment() error {
	path := filepath.Join(w.opts.Dir, fmt.Sprintf("%s%06d%s", segmentPrefix, w.seq, segmentSuffix))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("wal: open segment: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("wal: stat segment: %w", err)
	}

	w.file = file
	w.writer = bufio.NewWriter(file)
	w.size = info.Size()
	return nil
}

// Append writes one record, flushes and syncs it, rotating the segment first
// when the threshold is reached.
func (w *WAL) Append(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return fmt.Errorf("wal: closed")
	}
	if w.size >= w.opts.SegmentBytes {
		if err := w.rotate(); err != nil {
			return err
		}
	}

	encoded := encodeRecord(rec)
	if _, err := w.writer.Write(encoded); err != nil {
		return fmt.Errorf("wal: write record: %w", err)
	}
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("wal: flush: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("wal: sync: %w", err)
	}
	w.size += int64(len(encoded))
	return nil
}

func (w *WAL) rotate() error {
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("wal: flush before rotate: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("wal: sync before rotate: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("wal: close before rotate: %w", err)
	}

	closed := filepath.Join(w.opts.Dir, fmt.Sprintf("%s%06d%s", segmentPrefix, w.seq, segmentSuffix))
	if w.opts.CompressRotated {
		if err := w.archive(closed); err != nil {
			return err
		}
	}

	w.seq++
	slog.Debug("rotated journal segment", "seq", w.seq, "dir", w.opts.Dir)
	return w.openSegment()
}

// archive compresses a closed segment and removes the raw file.
func (w *WAL) archive(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("wal: open for archive: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(path+".zst", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("wal: create archive: %w", err)
	}
	if _, err := compression.CompressZstd(src, dst); err != nil {
		dst.Close()
		return fmt.Errorf("wal: compress segment: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("wal: close archive: %w", err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("wal: remove raw segment: %w", err)
	}
	return nil
}

// Replay feeds every journaled record, oldest first, to apply. A torn record
// at the journal tail ends replay with a warning; corruption elsewhere is an
// error.
func (w *WAL) Replay(apply func(Record) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.writer != nil {
		if err := w.writer.Flush(); err != nil {
			return fmt.Errorf("wal: flush before replay: %w", err)
		}
	}

	segs, err := w.segments()
	if err != nil {
		return err
	}

	for _, seg := range segs {
		done, err := w.replaySegment(seg, apply)
		if err != nil {
			return err
		}
		if done {
			break
		}
	}
	return nil
}

// replaySegment returns done=true when a torn tail ended replay early.
func (w *WAL) replaySegment(seg segment, apply func(Record) error) (bool, error) {
	file, err := os.Open(seg.path)
	if err != nil {
		return false, fmt.Errorf("wal: open segment for replay: %w", err)
	}
	defer file.Close()

	var reader io.Reader = file
	if seg.compressed {
		zr, err := compression.NewZstdReader(file)
		if err != nil {
			return false, fmt.Errorf("wal: open compressed segment: %w", err)
		}
		defer zr.Close()
		reader = zr
	}

	br := bufio.NewReader(reader)
	for {
		rec, err := decodeRecord(br)
		if err == io.EOF {
			return false, nil
		}
		if err == io.ErrUnexpectedEOF {
			slog.Warn("journal ends with torn record, stopping replay", "segment", seg.path)
			return true, nil
		}
		if err != nil {
			return false, fmt.Errorf("wal: replay %s: %w", seg.path, err)
		}
		if err := apply(rec); err != nil {
			return false, fmt.Errorf("wal: apply record: %w", err)
		}
	}
}

// Close flushes and closes the active segment.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("wal: flush on close: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("wal: sync on close: %w", err)
	}
	err := w.file.Close()
	w.file = nil
	w.writer = nil
	return err
}

type segment struct {
	path       string
	seq        int
	compressed bool
}

func (w *WAL) segments() ([]segment, error) {
	entries, err := os.ReadDir(w.opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("wal: read dir: %w", err)
	}

	var segs []segment
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, segmentPrefix) {
			continue
		}
		compressed := strings.HasSuffix(name, compressedSuffix)
		if !compressed && !strings.HasSuffix(name, segmentSuffix) {
			continue
		}
		numPart := strings.TrimPrefix(name, segmentPrefix)
		numPart = strings.TrimSuffix(numPart, compressedSuffix)
		numPart = strings.TrimSuffix(numPart, segmentSuffix)
		seq, err := strconv.Atoi(numPart)
		if err != nil {
			continue
		}
		segs = append(segs, segment{
			path:       filepath.Join(w.opts.Dir, name),
			seq:        seq,
			compressed: compressed,
		})
	}

	sort.Slice(segs, func(i, j int) bool { return segs[i].seq < segs[j].seq })
	return segs, nil
}

// On-disk record layout, little endian:
//
//	uint32 bodyLen | uint8 type | uint64 xid | uint64 row |
//	uint16 tableLen | table | uint32 payloadLen | payload
func encodeRecord(rec Record) []byte {
	body := make([]byte, 0, 23+len(rec.Table)+len(rec.Payload))
	body = append(body, byte(rec.Type))
	body = binary.LittleEndian.AppendUint64(body, uint64(rec.Xid))
	body = binary.LittleEndian.AppendUint64(body, uint64(rec.Row))
	body = binary.LittleEndian.AppendUint16(body, uint16(len(rec.Table)))
	body = append(body, rec.Table...)
	body = binary.LittleEndian.AppendUint32(body, uint32(len(rec.Payload)))
	body = append(body, rec.Payload...)

	out := binary.LittleEndian.AppendUint32(nil, uint32(len(body)))
	return append(out, body...)
}

func decodeRecord(r io.Reader) (Record, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, io.ErrUnexpectedEOF
	}
	bodyLen := binary.LittleEndian.Uint32(lenBuf[:])

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return Record{}, io.ErrUnexpectedEOF
	}
	if bodyLen < 23 {
		return Record{}, ErrCorruptRecord
	}

	rec := Record{
		Type: RecordType(body[0]),
		Xid:  types.TxID(binary.LittleEndian.Uint64(body[1:9])),
		Row:  types.RowID(binary.LittleEndian.Uint64(body[9:17])),
	}
	tableLen := int(binary.LittleEndian.Uint16(body[17:19]))
	if 19+tableLen+4 > len(body) {
		return Record{}, ErrCorruptRecord
	}
	rec.Table = string(body[19 : 19+tableLen])

	payloadLen := int(binary.LittleEndian.Uint32(body[19+tableLen : 19+tableLen+4]))
	if 19+tableLen+4+payloadLen != len(body) {
		return Record{}, ErrCorruptRecord
	}
	if payloadLen > 0 {
		rec.Payload = body[19+tableLen+4 : 19+tableLen+4+payloadLen]
	}
	return rec, nil
}
