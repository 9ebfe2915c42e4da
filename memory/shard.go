package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// shardOf implements §4.5's deterministic shard-routing function.
func shardOf(owner string, shardingEnabled bool) string {
	if !shardingEnabled || owner == "" {
		return "global"
	}
	return "agent_" + owner
}

// shard is one physical storage unit: its own SQLite file plus a blob
// side-directory, guarded by a mutex so writers within the shard serialize
// while independent shards proceed in parallel (§5).
type shard struct {
	mu      sync.Mutex
	name    string
	db      *gorm.DB
	blobDir string
}

func openShard(baseDir, name string) (*shard, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create shard dir: %w", err)
	}
	dbPath := filepath.Join(baseDir, name+".db")
	db, err := gorm.Open(sqlite.Open(dbPath+"?_journal_mode=WAL"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open shard %s: %w", name, err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrate shard %s: %w", name, err)
	}

	blobDir := filepath.Join(baseDir, name+"_blobs")
	if err := os.MkdirAll(blobDir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}

	return &shard{name: name, db: db, blobDir: blobDir}, nil
}

func (s *shard) blobPath(id string) string {
	return filepath.Join(s.blobDir, id+".blob")
}

func (s *shard) writeBlob(id string, data []byte) (string, error) {
	path := s.blobPath(id)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return filepath.Base(path), nil
}

func (s *shard) removeBlob(ref string) {
	if ref == "" {
		return
	}
	_ = os.Remove(filepath.Join(s.blobDir, ref))
}

// listBlobFiles returns the base filenames of every blob side-file in dir.
func listBlobFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// listShardNames returns the shard names with a data file already present
// under baseDir, for maintenance passes that must sweep every shard
// regardless of which ones have been lazily opened this process.
func listShardNames(baseDir string) ([]string, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filepath.Ext(e.Name()) == ".db" {
			names = append(names, e.Name()[:len(e.Name())-len(".db")])
		}
	}
	return names, nil
}
