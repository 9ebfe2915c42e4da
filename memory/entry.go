// Package memory implements C5, the sharded durable Memory Store: one
// SQLite file per shard, write/search/prune operations serialized per shard
// by a mutex, independent shards proceeding in parallel.
package memory

import (
	"encoding/json"
	"strings"
	"time"
)

// Entry is the persisted Memory Entry of §3. Tags are stored as a
// delimiter-joined string (gorm has no native set type); Metadata is
// JSON-encoded — struct<->JSON round-tripping is exactly what
// encoding/json is for, unlike gjson/sjson which manipulate raw JSON text
// without a destination type.
type Entry struct {
	ID         string `gorm:"primaryKey"`
	AgentID    string `gorm:"index:idx_agent_created"`
	Text       string
	TagsRaw    string
	Importance float64
	CreatedAt  time.Time `gorm:"index:idx_agent_created"`
	ExpiresAt  *time.Time
	Source     string
	MetadataRaw string
	BlobRef    string
	Deleted    bool `gorm:"index"`
}

func (Entry) TableName() string { return "entries" }

const tagDelim = "\x1f" // unit separator, won't collide with real tag text

func joinTags(tags []string) string { return strings.Join(tags, tagDelim) }

func (e Entry) Tags() []string {
	if e.TagsRaw == "" {
		return nil
	}
	return strings.Split(e.TagsRaw, tagDelim)
}

func (e Entry) hasTag(tag string) bool {
	for _, t := range e.Tags() {
		if t == tag {
			return true
		}
	}
	return false
}

func (e Entry) hasAnyTag(tags []string) bool {
	for _, t := range tags {
		if e.hasTag(t) {
			return true
		}
	}
	return len(tags) == 0
}

func (e Entry) hasExactTagSet(tags []string) bool {
	own := e.Tags()
	if len(own) != len(tags) {
		return false
	}
	want := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		want[t] = struct{}{}
	}
	for _, t := range own {
		if _, ok := want[t]; !ok {
			return false
		}
	}
	return true
}

func (e Entry) Metadata() map[string]any {
	if e.MetadataRaw == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(e.MetadataRaw), &m); err != nil {
		return nil
	}
	return m
}

func encodeMetadata(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(raw)
}

func (e Entry) live(now time.Time) bool {
	if e.Deleted {
		return false
	}
	if e.ExpiresAt != nil && e.ExpiresAt.Before(now) {
		return false
	}
	return true
}
