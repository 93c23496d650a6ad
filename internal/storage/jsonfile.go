package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/phuslu/log"

	"github.com/dyike/CortexAdvisor/models"
)

const fileTimeLayout = "20060102_150405"

// FileStore writes one JSON document per run into a directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// SafeName makes an identifier usable as a file name prefix.
func SafeName(identifier string) string {
	s := strings.NewReplacer("/", "_", " ", "_", "\\", "_").Replace(strings.TrimSpace(identifier))
	if s == "" {
		return "UNKNOWN"
	}
	return s
}

func (s *FileStore) Save(ctx context.Context, rec models.RunRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create runs dir: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal run record: %w", err)
	}

	base := SafeName(rec.Identifier) + "_" + rec.Timestamp.Format(fileTimeLayout)
	path := filepath.Join(s.dir, base+".json")
	if _, err := os.Stat(path); err == nil {
		// two runs in the same second
		path = filepath.Join(s.dir, base+"_"+shortID(rec.RunID)+".json")
	}

	tmp, err := os.CreateTemp(s.dir, ".run-*.json")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write run record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close run record: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("rename run record: %w", err)
	}
	return path, nil
}

func (s *FileStore) List(ctx context.Context, identifier string, limit int) ([]models.RunRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read runs dir: %w", err)
	}

	var out []models.RunRecord
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, err
		}
		var rec models.RunRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			log.Warn().Err(err).Str("file", name).Msg("skip unreadable run record")
			continue
		}
		if identifier != "" && !strings.EqualFold(rec.Identifier, identifier) {
			continue
		}
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
