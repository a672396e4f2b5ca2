package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	logx "reviewbot/pkg/logx"
)

// fileStore keeps everything in plain files next to cfg.Path.
//
// Files:
//   - <prefix>.deliveries.jsonl     (append-only JSON Lines)
//   - <prefix>.dedup.snapshot.json  (compacted state)
//   - <prefix>.dedup.journal.jsonl  (append-only, replayed on open)
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	deliveries *os.File

	snapshotPath string
	journal      *os.File
	dedup        map[string]int64 // unix milli

	writes       int
	compactEvery int
	now          func() time.Time
}

type dedupRecord struct {
	Key   string `json:"key"`
	Until int64  `json:"until"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create storage dir %s", dir)
	}

	df, err := os.OpenFile(prefix+".deliveries.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, errors.Wrap(err, "open delivery journal")
	}

	st := &fileStore{
		log:          log,
		deliveries:   df,
		snapshotPath: prefix + ".dedup.snapshot.json",
		dedup:        map[string]int64{},
		compactEvery: 1000,
		now:          time.Now,
	}

	journalPath := prefix + ".dedup.journal.jsonl"
	if err := loadDedupSnapshot(st.snapshotPath, st.dedup); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("dedup snapshot unreadable, starting empty", logx.Err(err))
	}
	if err := replayDedupJournal(journalPath, st.dedup); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("dedup journal replay failed", logx.Err(err))
	}
	st.pruneLocked()

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		_ = df.Close()
		return nil, errors.Wrap(err, "open dedup journal")
	}
	st.journal = jf

	log.Debug("file store opened", logx.String("prefix", prefix), logx.Int("dedup_keys", len(st.dedup)))
	return st, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs error
	if s.deliveries != nil {
		errs = errors.CombineErrors(errs, s.deliveries.Close())
		s.deliveries = nil
	}
	if s.journal != nil {
		errs = errors.CombineErrors(errs, s.journal.Close())
		s.journal = nil
	}
	return errs
}

func (s *fileStore) AppendDelivery(_ context.Context, d Delivery) error {
	if d.At.IsZero() {
		d.At = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deliveries == nil {
		return ErrDisabled
	}
	return errors.Wrap(json.NewEncoder(s.deliveries).Encode(d), "append delivery")
}

func (s *fileStore) PutDedup(_ context.Context, key string, until time.Time) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	ms := until.UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return ErrDisabled
	}
	s.dedup[key] = ms

	if err := json.NewEncoder(s.journal).Encode(dedupRecord{Key: key, Until: ms}); err != nil {
		return errors.Wrap(err, "append dedup journal")
	}
	s.writes++
	if s.compactEvery > 0 && s.writes%s.compactEvery == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("dedup compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) GetDedup(_ context.Context, key string) (time.Time, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return time.Time{}, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.dedup[key]
	if !ok {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}

// compactLocked writes the live dedup map to the snapshot and truncates the journal.
func (s *fileStore) compactLocked() error {
	s.pruneLocked()

	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.dedup); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	if err := s.journal.Truncate(0); err != nil {
		return err
	}
	_, err = s.journal.Seek(0, io.SeekEnd)
	return err
}

func (s *fileStore) pruneLocked() {
	now := s.now().UnixMilli()
	for k, v := range s.dedup {
		if v < now {
			delete(s.dedup, k)
		}
	}
}

func loadDedupSnapshot(path string, out map[string]int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[string]int64
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		out[k] = v
	}
	return nil
}

func replayDedupJournal(path string, out map[string]int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r dedupRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil || r.Key == "" {
			// torn write at the tail
			continue
		}
		out[r.Key] = r.Until
	}
	return sc.Err()
}
