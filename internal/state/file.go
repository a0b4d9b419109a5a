package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

type fileState struct {
	LastSeenID   int64   `json:"last_seen_notif_id"`
	ProcessedIDs []int64 `json:"processed_status_ids"`
}

// FileStore keeps state in a single JSON file. Every save writes a sibling
// temp file and renames it over the target, so a crash mid-write leaves
// either the old or the new content, never a torn file.
type FileStore struct {
	path    string
	maxIDs  int
	cursor  int64
	order   []int64
	members map[int64]struct{}
}

func NewFileStore(path string, maxIDs int) (*FileStore, error) {
	s := &FileStore{
		path:    path,
		maxIDs:  maxIDs,
		members: make(map[int64]struct{}),
	}

	if err := s.load(); err != nil {
		// A missing or unreadable state file must not take the bot down;
		// re-processing a handful of mentions is the cheaper failure.
		slog.Warn("Failed to read state file, starting fresh", "path", path, "error", err)
	}

	return s, nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var st fileState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("failed to parse state file: %w", err)
	}

	s.cursor = st.LastSeenID
	for _, id := range st.ProcessedIDs {
		if _, seen := s.members[id]; seen {
			continue
		}
		s.members[id] = struct{}{}
		s.order = append(s.order, id)
	}
	s.truncate()
	return nil
}

func (s *FileStore) save() error {
	st := fileState{
		LastSeenID:   s.cursor,
		ProcessedIDs: s.order,
	}
	if st.ProcessedIDs == nil {
		st.ProcessedIDs = []int64{}
	}

	data, err := json.Marshal(&st)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

func (s *FileStore) IsProcessed(statusID int64) bool {
	_, ok := s.members[statusID]
	return ok
}

func (s *FileStore) MarkProcessed(statusID int64) error {
	if _, ok := s.members[statusID]; ok {
		return nil
	}

	s.members[statusID] = struct{}{}
	s.order = append(s.order, statusID)
	s.truncate()

	return s.save()
}

// truncate keeps the most recent maxIDs entries, dropping oldest first.
func (s *FileStore) truncate() {
	if s.maxIDs <= 0 || len(s.order) <= s.maxIDs {
		return
	}
	evicted := s.order[:len(s.order)-s.maxIDs]
	s.order = append([]int64(nil), s.order[len(s.order)-s.maxIDs:]...)
	for _, id := range evicted {
		delete(s.members, id)
	}
}

func (s *FileStore) Cursor() int64 {
	return s.cursor
}

func (s *FileStore) AdvanceCursor(id int64) error {
	if id <= s.cursor {
		return nil
	}
	s.cursor = id
	return s.save()
}

func (s *FileStore) Close() error {
	return nil
}
