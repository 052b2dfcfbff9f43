package store

import (
	"time"

	"github.com/google/uuid"

	appLog "nailsync/internal/log"
	"nailsync/internal/model"
)

// MergeResult counts what a batch merge did.
type MergeResult struct {
	Updated int
	Added   int
}

// MergeSyncedBatch folds records read from the remote calendar into the
// local appointments and commits the result as one replace.
//
// Matching is by remote event id only. A matched record takes every
// incoming field but keeps its local id and creation time. Unmatched
// records are added with the remote id as their id. Local records absent
// from the batch are left alone; sync-in never deletes.
//
// A remote event that is recreated under a new id therefore shows up as a
// second local appointment.
func (s *Store) MergeSyncedBatch(incoming []model.Appointment) (MergeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged, res := mergeAppointments(s.appointments, incoming, s.now())
	if err := s.commit(merged, s.pressOns, s.availabilities); err != nil {
		return MergeResult{}, err
	}

	appLog.Info("synced batch merged", "incoming", len(incoming), "updated", res.Updated, "added", res.Added)
	return res, nil
}

func mergeAppointments(local, incoming []model.Appointment, now time.Time) ([]model.Appointment, MergeResult) {
	var res MergeResult

	out := make([]model.Appointment, len(local), len(local)+len(incoming))
	copy(out, local)

	byRemote := make(map[string]int, len(out))
	ids := make(map[string]struct{}, len(out))
	for i, a := range out {
		ids[a.ID] = struct{}{}
		if a.RemoteEventID != "" {
			byRemote[a.RemoteEventID] = i
		}
	}

	for _, in := range incoming {
		remoteID := in.RemoteEventID
		if remoteID == "" {
			remoteID = in.ID
		}
		if remoteID == "" {
			continue
		}

		if i, ok := byRemote[remoteID]; ok {
			cur := out[i]
			next := in.Clone()
			next.ID = cur.ID
			next.RemoteEventID = remoteID
			next.CreatedAt = cur.CreatedAt
			next.UpdatedAt = now
			out[i] = next
			res.Updated++
			continue
		}

		next := in.Clone()
		next.ID = remoteID
		next.RemoteEventID = remoteID
		if _, taken := ids[next.ID]; taken {
			next.ID = uuid.NewString()
			appLog.Debug("merge: remote id collides with a local id; assigned a new id", "remote_id", remoteID, "id", next.ID)
		}
		if next.CreatedAt.IsZero() {
			next.CreatedAt = now
		}
		next.UpdatedAt = now

		ids[next.ID] = struct{}{}
		byRemote[remoteID] = len(out)
		out = append(out, next)
		res.Added++
	}

	return out, res
}
