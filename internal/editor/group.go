package editor

import (
	"fmt"
	"sort"
	"time"

	"github.com/splat-replay/splat-replay/internal/models"
)

// GroupKey identifies one edit batch: recordings sharing mode, match type,
// rule, and calendar day are concatenated into a single video.
type GroupKey struct {
	GameMode models.GameMode
	Match    string
	Rule     string
	Date     string // YYYY-MM-DD
}

// Group is an ordered slice of recordings to be edited into one video.
type Group struct {
	Key    GroupKey
	Assets []models.VideoAsset
}

// Label is the human-readable task item name for the group.
func (g Group) Label() string {
	label := fmt.Sprintf("%s %s", g.Key.Date, g.Key.GameMode)
	if g.Key.Match != "" {
		label += " " + g.Key.Match
	}
	if g.Key.Rule != "" {
		label += " " + g.Key.Rule
	}
	return label
}

// Stem derives the output file stem from the group's first recording, which
// is unique per group because recordings are ordered by start time.
func (g Group) Stem() string {
	if len(g.Assets) == 0 {
		return ""
	}
	return g.Assets[0].Stem()
}

func groupKey(meta *models.RecordingMetadata) GroupKey {
	key := GroupKey{GameMode: models.ModeBattle}
	if meta == nil {
		return key
	}
	key.GameMode = meta.GameMode
	if meta.StartedAt != nil {
		key.Date = meta.StartedAt.Format("2006-01-02")
	}
	if meta.Battle != nil {
		key.Match = string(meta.Battle.Match)
		key.Rule = string(meta.Battle.Rule)
	}
	return key
}

func startedAt(a models.VideoAsset) time.Time {
	if a.Metadata != nil && a.Metadata.StartedAt != nil {
		return *a.Metadata.StartedAt
	}
	return time.Time{}
}

// GroupRecordings buckets recordings by group key, orders each bucket by
// start time, and splits buckets larger than sizeLimit. Groups come back
// ordered by their first recording.
func GroupRecordings(assets []models.VideoAsset, sizeLimit int) []Group {
	if sizeLimit < 1 {
		sizeLimit = 1
	}

	buckets := make(map[GroupKey][]models.VideoAsset)
	for _, a := range assets {
		key := groupKey(a.Metadata)
		buckets[key] = append(buckets[key], a)
	}

	var groups []Group
	for key, members := range buckets {
		sort.Slice(members, func(i, j int) bool {
			ti, tj := startedAt(members[i]), startedAt(members[j])
			if !ti.Equal(tj) {
				return ti.Before(tj)
			}
			return members[i].Stem() < members[j].Stem()
		})
		for start := 0; start < len(members); start += sizeLimit {
			end := start + sizeLimit
			if end > len(members) {
				end = len(members)
			}
			groups = append(groups, Group{Key: key, Assets: members[start:end]})
		}
	}

	sort.Slice(groups, func(i, j int) bool {
		ti, tj := startedAt(groups[i].Assets[0]), startedAt(groups[j].Assets[0])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return groups[i].Stem() < groups[j].Stem()
	})
	return groups
}
