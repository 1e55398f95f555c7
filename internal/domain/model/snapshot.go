package model

import "time"

// Snapshot is the cached envelope around a DashboardView. The envelope is
// serialized as JSON and stored in the broker under dashboard:summary:{uid}.
// Provenance is recorded at write time so freshness checks never have to
// guess whether the view contains placeholder data.
type Snapshot struct {
	UserID     int64         `json:"user_id"`
	WrittenAt  time.Time     `json:"written_at"`
	Provenance Provenance    `json:"provenance"`
	View       DashboardView `json:"view"`
}

// Fresh reports whether the snapshot may satisfy a read: it must be inside
// the TTL and must not be tagged placeholder.
func (s Snapshot) Fresh(ttl time.Duration, now time.Time) bool {
	if s.Provenance == ProvenancePlaceholder {
		return false
	}
	return now.Sub(s.WrittenAt) < ttl
}
