package memory

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/Raebu/RaeburnBrainMonorepo/internal/raeberr"
)

// dumpLoadConcurrency bounds how many shards DumpAll/LoadDump touch at
// once; shards are independent files so there's no correctness reason to
// go fully sequential, but an unbounded fan-out over hundreds of shards
// would open that many SQLite files at once for no benefit.
const dumpLoadConcurrency = 8

func gormExprMul(column string, factor float64) interface{} {
	return gorm.Expr(column+" * ?", factor)
}

// Config parameterizes a Store.
type Config struct {
	BaseDir               string
	ShardingEnabled       bool
	ImportanceDecayFactor float64 // default 0.98, applied by ApplyImportanceDecay
}

func (c Config) withDefaults() Config {
	if c.ImportanceDecayFactor <= 0 {
		c.ImportanceDecayFactor = 0.98
	}
	return c
}

// Store is C5: a sharded, thread-safe durable store of Memory Entries.
type Store struct {
	cfg    Config
	mu     sync.Mutex // guards the shards map, not the shards themselves
	shards map[string]*shard
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		cfg:    cfg.withDefaults(),
		shards: make(map[string]*shard),
		logger: logger.With(zap.String("component", "memory")),
	}
}

func (st *Store) shardFor(owner string) (*shard, error) {
	name := shardOf(owner, st.cfg.ShardingEnabled)
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.shards[name]; ok {
		return s, nil
	}
	s, err := openShard(st.cfg.BaseDir, name)
	if err != nil {
		return nil, err
	}
	st.shards[name] = s
	return s, nil
}

// allShards opens every shard file present on disk (in addition to any
// already held in memory) — used by the store-wide maintenance passes.
func (st *Store) allShards() ([]*shard, error) {
	names, err := listShardNames(st.cfg.BaseDir)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	for _, n := range names {
		if _, ok := st.shards[n]; !ok {
			s, err := openShard(st.cfg.BaseDir, n)
			if err != nil {
				st.mu.Unlock()
				return nil, err
			}
			st.shards[n] = s
		}
	}
	out := make([]*shard, 0, len(st.shards))
	for _, s := range st.shards {
		out = append(out, s)
	}
	st.mu.Unlock()
	return out, nil
}

// findShardContaining locates the shard holding id, scanning already-open
// shards first and falling back to every shard on disk. Update/soft_delete/
// delete are addressed by id alone per §4.5, so the store must resolve the
// owning shard itself rather than require callers to restate the owner.
func (st *Store) findShardContaining(id string) (*shard, error) {
	shards, err := st.allShards()
	if err != nil {
		return nil, err
	}
	for _, s := range shards {
		s.mu.Lock()
		var count int64
		s.db.Model(&Entry{}).Where("id = ?", id).Count(&count)
		s.mu.Unlock()
		if count > 0 {
			return s, nil
		}
	}
	return nil, raeberr.Bad("entry not found: " + id)
}

// Add implements §4.5's add operation. It implicitly prunes expired entries
// in the target shard first.
func (st *Store) Add(agent, text string, tags []string, importance float64, ttl time.Duration, source string, metadata map[string]any, blob []byte) (string, error) {
	s, err := st.shardFor(agent)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	pruneExpiredLocked(s, now)

	id := uuid.NewString()
	var expiresAt *time.Time
	if ttl > 0 {
		t := now.Add(ttl)
		expiresAt = &t
	}

	var blobRef string
	if len(blob) > 0 {
		blobRef, err = s.writeBlob(id, blob)
		if err != nil {
			return "", err
		}
	}

	e := Entry{
		ID:          id,
		AgentID:     agent,
		Text:        text,
		TagsRaw:     joinTags(tags),
		Importance:  importance,
		CreatedAt:   now,
		ExpiresAt:   expiresAt,
		Source:      source,
		MetadataRaw: encodeMetadata(metadata),
		BlobRef:     blobRef,
	}
	if err := s.db.Create(&e).Error; err != nil {
		return "", fmt.Errorf("write entry: %w", err)
	}
	return id, nil
}

// Get implements §4.5's get operation: most-recent-first.
func (st *Store) Get(agent string, limit int, includeDeleted bool) ([]Entry, error) {
	s, err := st.shardFor(agent)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.db.Model(&Entry{}).Where("agent_id = ?", agent).
		Where("expires_at IS NULL OR expires_at >= ?", time.Now()).
		Order("created_at DESC")
	if !includeDeleted {
		q = q.Where("deleted = ?", false)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []Entry
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("get entries: %w", err)
	}
	return out, nil
}

// SearchOptions parameterizes Search.
type SearchOptions struct {
	Tags           []string
	StrictTags     bool // require exact tag-set equality instead of any overlap
	MetadataFilter map[string]string
}

// Search implements §4.5's full-text search: highest BM25 score (best
// match) first, ties broken by created_at descending.
func (st *Store) Search(agent, query string, limit int, opts SearchOptions) ([]Entry, error) {
	live, err := st.liveEntries(agent)
	if err != nil {
		return nil, err
	}
	live = filterByTags(live, opts.Tags, opts.StrictTags)
	live = filterByMetadata(live, opts.MetadataFilter)

	scores := bm25Scores(query, live)
	sort.SliceStable(live, func(i, j int) bool {
		si, sj := scores[live[i].ID], scores[live[j].ID]
		// Higher BM25 relevance ranks first; "ascending" in §4.5 refers to
		// the negated distance metric the ranking is computed over.
		if si != sj {
			return si > sj
		}
		return live[i].CreatedAt.After(live[j].CreatedAt)
	})

	if limit > 0 && len(live) > limit {
		live = live[:limit]
	}
	return live, nil
}

// ByTag implements §4.5's by_tag operation.
func (st *Store) ByTag(agent, tag string, limit int) ([]Entry, error) {
	live, err := st.liveEntries(agent)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range live {
		if e.hasTag(tag) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetRelevant implements §4.5's hybrid re-rank.
func (st *Store) GetRelevant(agent, query string, tags []string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 1
	}
	candidateLimit := 3 * limit

	var candidates []Entry
	var err error
	if query != "" {
		candidates, err = st.Search(agent, query, candidateLimit, SearchOptions{Tags: tags})
	} else {
		candidates, err = st.Get(agent, candidateLimit, false)
		candidates = filterByTags(candidates, tags, false)
	}
	if err != nil {
		return nil, err
	}

	bm25 := bm25Scores(query, candidates)
	maxBM25 := 0.0
	for _, v := range bm25 {
		if v > maxBM25 {
			maxBM25 = v
		}
	}

	now := time.Now()
	type scored struct {
		entry Entry
		score float64
	}
	out := make([]scored, len(candidates))
	for i, e := range candidates {
		normBM25 := 0.0
		if maxBM25 > 0 {
			normBM25 = bm25[e.ID] / maxBM25
		}
		hoursSince := now.Sub(e.CreatedAt).Hours()
		recency := 1.0 / (1.0 + hoursSince)
		out[i] = scored{entry: e, score: 0.5*normBM25 + 0.3*recency + 0.2*e.Importance}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })

	// De-duplicate on (text, tag-tuple): no two returned entries may share
	// the same pair (§8 invariant 8). out is already sorted best-first, so
	// keeping the first occurrence per key keeps the highest-scored of any
	// duplicates, mirroring get_relevant's combine-sort-dedupe order.
	seen := make(map[string]struct{}, len(out))
	deduped := out[:0]
	for _, s := range out {
		key := s.entry.Text + "\x1f" + strings.Join(s.entry.Tags(), "\x1f")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, s)
	}
	out = deduped

	if len(out) > limit {
		out = out[:limit]
	}
	result := make([]Entry, len(out))
	for i, s := range out {
		result[i] = s.entry
	}
	return result, nil
}

// UpdateFields is the partial-update payload for Update; nil fields are
// left untouched.
type UpdateFields struct {
	Text       *string
	Tags       []string
	TTL        *time.Duration
	Metadata   map[string]any
	Importance *float64
}

// Update implements §4.5's update operation, replacing only the supplied
// fields atomically.
func (st *Store) Update(id string, fields UpdateFields) error {
	s, err := st.findShardContaining(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	updates := map[string]any{}
	if fields.Text != nil {
		updates["text"] = *fields.Text
	}
	if fields.Tags != nil {
		updates["tags_raw"] = joinTags(fields.Tags)
	}
	if fields.TTL != nil {
		t := time.Now().Add(*fields.TTL)
		updates["expires_at"] = t
	}
	if fields.Metadata != nil {
		updates["metadata_raw"] = encodeMetadata(fields.Metadata)
	}
	if fields.Importance != nil {
		updates["importance"] = *fields.Importance
	}
	if len(updates) == 0 {
		return nil
	}
	return s.db.Model(&Entry{}).Where("id = ?", id).Updates(updates).Error
}

// SoftDelete implements §4.5's soft_delete.
func (st *Store) SoftDelete(id string) error {
	s, err := st.findShardContaining(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Model(&Entry{}).Where("id = ?", id).Update("deleted", true).Error
}

// Delete implements §4.5's hard delete, removing any referenced blob too.
func (st *Store) Delete(id string) error {
	s, err := st.findShardContaining(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var e Entry
	if err := s.db.Where("id = ?", id).First(&e).Error; err != nil {
		return fmt.Errorf("load entry for delete: %w", err)
	}
	if err := s.db.Where("id = ?", id).Delete(&Entry{}).Error; err != nil {
		return err
	}
	s.removeBlob(e.BlobRef)
	return nil
}

// PruneExpired implements §4.5's prune_expired, idempotent, across every
// shard on disk.
func (st *Store) PruneExpired() error {
	shards, err := st.allShards()
	if err != nil {
		return err
	}
	now := time.Now()
	for _, s := range shards {
		s.mu.Lock()
		pruneExpiredLocked(s, now)
		s.mu.Unlock()
	}
	return nil
}

func pruneExpiredLocked(s *shard, now time.Time) {
	var victims []Entry
	s.db.Where("expires_at IS NOT NULL AND expires_at < ?", now).Find(&victims)
	for _, v := range victims {
		s.removeBlob(v.BlobRef)
	}
	s.db.Where("expires_at IS NOT NULL AND expires_at < ?", now).Delete(&Entry{})
}

// PruneImportance implements §4.5's prune_importance across every shard.
func (st *Store) PruneImportance(threshold float64) error {
	shards, err := st.allShards()
	if err != nil {
		return err
	}
	for _, s := range shards {
		s.mu.Lock()
		var victims []Entry
		s.db.Where("importance < ?", threshold).Find(&victims)
		for _, v := range victims {
			s.removeBlob(v.BlobRef)
		}
		s.db.Where("importance < ?", threshold).Delete(&Entry{})
		s.mu.Unlock()
	}
	return nil
}

// ApplyImportanceDecay implements §4.5's apply_importance_decay.
func (st *Store) ApplyImportanceDecay() error {
	shards, err := st.allShards()
	if err != nil {
		return err
	}
	factor := st.cfg.ImportanceDecayFactor
	for _, s := range shards {
		s.mu.Lock()
		s.db.Model(&Entry{}).Where("deleted = ?", false).
			Update("importance", gormExprMul("importance", factor))
		s.mu.Unlock()
	}
	return nil
}

// CleanupOrphanBlobs implements §4.5's cleanup_orphan_blobs.
func (st *Store) CleanupOrphanBlobs() error {
	shards, err := st.allShards()
	if err != nil {
		return err
	}
	for _, s := range shards {
		s.mu.Lock()
		referenced := map[string]struct{}{}
		var refs []string
		s.db.Model(&Entry{}).Where("blob_ref != ''").Pluck("blob_ref", &refs)
		for _, r := range refs {
			referenced[r] = struct{}{}
		}
		files, _ := listBlobFiles(s.blobDir)
		for _, f := range files {
			if _, ok := referenced[f]; !ok {
				s.removeBlob(f)
			}
		}
		s.mu.Unlock()
	}
	return nil
}

// DumpAll implements §4.5's dump_all across every shard. Shards are
// independent storage units, so reading them is fanned out with bounded
// concurrency instead of one shard at a time.
func (st *Store) DumpAll() ([]Entry, error) {
	shards, err := st.allShards()
	if err != nil {
		return nil, err
	}

	results := make([][]Entry, len(shards))
	g := new(errgroup.Group)
	g.SetLimit(dumpLoadConcurrency)
	for i, s := range shards {
		i, s := i, s
		g.Go(func() error {
			s.mu.Lock()
			defer s.mu.Unlock()
			var entries []Entry
			if err := s.db.Find(&entries).Error; err != nil {
				return fmt.Errorf("dump shard %s: %w", s.name, err)
			}
			results[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Entry
	for _, entries := range results {
		out = append(out, entries...)
	}
	return out, nil
}

// LoadDump implements §4.5's load_dump: upsert-by-id, routed to each
// entry's own shard. Items are grouped by destination shard first so that
// independent shards can be loaded concurrently while entries within a
// shard remain strictly ordered under its mutex.
func (st *Store) LoadDump(items []Entry) error {
	byShard := make(map[*shard][]Entry)
	for _, e := range items {
		s, err := st.shardFor(e.AgentID)
		if err != nil {
			return err
		}
		byShard[s] = append(byShard[s], e)
	}

	g := new(errgroup.Group)
	g.SetLimit(dumpLoadConcurrency)
	for s, entries := range byShard {
		s, entries := s, entries
		g.Go(func() error {
			s.mu.Lock()
			defer s.mu.Unlock()
			for _, e := range entries {
				if err := s.db.Save(&e).Error; err != nil {
					return fmt.Errorf("load dump entry %s: %w", e.ID, err)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// IntegrityCheck implements §4.5's integrity_check.
func (st *Store) IntegrityCheck() bool {
	shards, err := st.allShards()
	if err != nil {
		return false
	}
	for _, s := range shards {
		s.mu.Lock()
		var result string
		err := s.db.Raw("PRAGMA integrity_check").Scan(&result).Error
		s.mu.Unlock()
		if err != nil || result != "ok" {
			return false
		}
	}
	return true
}

func (st *Store) liveEntries(agent string) ([]Entry, error) {
	s, err := st.shardFor(agent)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Entry
	err = s.db.Where("agent_id = ? AND deleted = ?", agent, false).
		Where("expires_at IS NULL OR expires_at >= ?", time.Now()).
		Find(&out).Error
	return out, err
}

func filterByTags(entries []Entry, tags []string, strict bool) []Entry {
	if len(tags) == 0 {
		return entries
	}
	var out []Entry
	for _, e := range entries {
		if strict && e.hasExactTagSet(tags) {
			out = append(out, e)
		} else if !strict && e.hasAnyTag(tags) {
			out = append(out, e)
		}
	}
	return out
}

func filterByMetadata(entries []Entry, filter map[string]string) []Entry {
	if len(filter) == 0 {
		return entries
	}
	var out []Entry
	for _, e := range entries {
		meta := e.Metadata()
		match := true
		for k, v := range filter {
			if fmt.Sprint(meta[k]) != v {
				match = false
				break
			}
		}
		if match {
			out = append(out, e)
		}
	}
	return out
}
