package store

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nailsync/internal/model"
)

func TestMergeSyncedBatch_MatchedRecordKeepsLocalID(t *testing.T) {
	s, _ := newTestStore(t)
	local := appt("a1")
	local.RemoteEventID = "R1"
	created, err := s.CreateAppointment(local)
	require.NoError(t, err)

	moved := time.Date(2025, 3, 22, 16, 30, 0, 0, time.UTC)
	in := appt("R1")
	in.RemoteEventID = "R1"
	in.Date = moved

	later := fixedNow.Add(2 * time.Hour)
	s.now = func() time.Time { return later }

	res, err := s.MergeSyncedBatch([]model.Appointment{in})
	require.NoError(t, err)
	assert.Equal(t, MergeResult{Updated: 1}, res)

	all := s.Appointments()
	require.Len(t, all, 1)
	assert.Equal(t, "a1", all[0].ID)
	assert.True(t, all[0].Date.Equal(moved))
	assert.Equal(t, created.CreatedAt, all[0].CreatedAt)
	assert.Equal(t, later, all[0].UpdatedAt)
}

func TestMergeSyncedBatch_UnknownRemoteIDIsAdded(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.CreateAppointment(appt("a1"))
	require.NoError(t, err)

	in := appt("g9")
	in.RemoteEventID = "g9"
	res, err := s.MergeSyncedBatch([]model.Appointment{in})
	require.NoError(t, err)
	assert.Equal(t, MergeResult{Added: 1}, res)

	all := s.Appointments()
	require.Len(t, all, 2)
	got, err := s.Appointment("g9")
	require.NoError(t, err)
	assert.Equal(t, "g9", got.RemoteEventID)
}

func TestMergeSyncedBatch_NeverDeletes(t *testing.T) {
	s, _ := newTestStore(t)
	a := appt("a1")
	a.RemoteEventID = "g1"
	_, err := s.CreateAppointment(a)
	require.NoError(t, err)
	_, err = s.CreateAppointment(appt("a2"))
	require.NoError(t, err)

	_, err = s.MergeSyncedBatch(nil)
	require.NoError(t, err)
	assert.Len(t, s.Appointments(), 2)
}

func TestMergeSyncedBatch_RemoteFieldsWin(t *testing.T) {
	s, _ := newTestStore(t)
	a := appt("a1")
	a.RemoteEventID = "g1"
	a.Price = decimal.NewFromInt(50)
	_, err := s.CreateAppointment(a)
	require.NoError(t, err)

	in := appt("g1")
	in.RemoteEventID = "g1"
	in.Price = decimal.NewFromInt(60)
	in.Status = model.StatusCompleted

	_, err = s.MergeSyncedBatch([]model.Appointment{in})
	require.NoError(t, err)

	got, err := s.Appointment("a1")
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(60)))
	assert.Equal(t, model.StatusCompleted, got.Status)
}

func TestMergeSyncedBatch_RepeatedMergeIsStable(t *testing.T) {
	s, _ := newTestStore(t)
	in := appt("g1")
	in.RemoteEventID = "g1"

	for i := 0; i < 3; i++ {
		_, err := s.MergeSyncedBatch([]model.Appointment{in})
		require.NoError(t, err)
	}
	assert.Len(t, s.Appointments(), 1)
}

func TestMergeAppointments_IDCollisionGetsFreshID(t *testing.T) {
	local := []model.Appointment{appt("g1")}
	in := appt("g1")
	in.RemoteEventID = "g1"

	out, res := mergeAppointments(local, []model.Appointment{in}, fixedNow)
	assert.Equal(t, 1, res.Added)
	require.Len(t, out, 2)
	assert.NotEqual(t, "g1", out[1].ID)
	assert.Equal(t, "g1", out[1].RemoteEventID)
}
