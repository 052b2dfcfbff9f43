package store

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nailsync/internal/model"
)

var fixedNow = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	s, err := Open(NewFilePersister(fsys, "/data/store.json"), WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return s, fsys
}

func appt(id string) model.Appointment {
	return model.Appointment{
		ID:          id,
		Date:        time.Date(2025, 3, 20, 14, 0, 0, 0, time.UTC),
		ClientName:  "Jane",
		ServiceType: model.ServiceGelX,
		NailLength:  model.LengthShortMedium,
		Price:       decimal.NewFromInt(50),
		Status:      model.StatusScheduled,
	}
}

func TestStore_CreateAppointment(t *testing.T) {
	s, _ := newTestStore(t)

	got, err := s.CreateAppointment(appt("a1"))
	require.NoError(t, err)
	assert.Equal(t, fixedNow, got.CreatedAt)
	assert.Equal(t, fixedNow, got.UpdatedAt)

	_, err = s.CreateAppointment(appt("a1"))
	assert.True(t, errors.Is(err, ErrAlreadyExists))

	bad := appt("a2")
	bad.Status = "PENDING"
	_, err = s.CreateAppointment(bad)
	assert.Error(t, err)
	assert.Len(t, s.Appointments(), 1)
}

func TestStore_CreateAppointment_RejectsSharedRemoteID(t *testing.T) {
	s, _ := newTestStore(t)

	a := appt("a1")
	a.RemoteEventID = "g1"
	_, err := s.CreateAppointment(a)
	require.NoError(t, err)

	b := appt("a2")
	b.RemoteEventID = "g1"
	_, err = s.CreateAppointment(b)
	assert.True(t, errors.Is(err, ErrDuplicateRemote))
}

func TestStore_UpdateAppointment(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.CreateAppointment(appt("a1"))
	require.NoError(t, err)

	later := fixedNow.Add(time.Hour)
	s.now = func() time.Time { return later }

	price := decimal.NewFromInt(65)
	status := model.StatusCompleted
	got, err := s.UpdateAppointment("a1", model.AppointmentPatch{Price: &price, Status: &status})
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(price))
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, "Jane", got.ClientName)
	assert.Equal(t, fixedNow, got.CreatedAt)
	assert.Equal(t, later, got.UpdatedAt)

	_, err = s.UpdateAppointment("missing", model.AppointmentPatch{Price: &price})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_DeleteAppointmentIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	a := appt("a1")
	a.RemoteEventID = "g1"
	_, err := s.CreateAppointment(a)
	require.NoError(t, err)

	deleted, existed, err := s.DeleteAppointment("a1")
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, "g1", deleted.RemoteEventID)

	before := s.Appointments()
	for i := 0; i < 2; i++ {
		_, existed, err = s.DeleteAppointment("nope")
		require.NoError(t, err)
		assert.False(t, existed)
	}
	assert.Equal(t, before, s.Appointments())
}

func TestStore_PersistsAndRehydrates(t *testing.T) {
	s, fsys := newTestStore(t)

	a := appt("a1")
	a.InspirationPhotos = []model.Photo{model.InlinePhoto("image/png", []byte{0x89, 'P', 'N', 'G'})}
	_, err := s.CreateAppointment(a)
	require.NoError(t, err)
	_, err = s.CreatePressOn(model.PressOn{Name: "Chrome almond", Size: "M", Quantity: 2})
	require.NoError(t, err)
	_, err = s.CreateAvailability(model.Availability{Date: time.Date(2025, 3, 21, 0, 0, 0, 0, time.UTC), StartTime: "09:00"})
	require.NoError(t, err)

	reopened, err := Open(NewFilePersister(fsys, "/data/store.json"))
	require.NoError(t, err)

	got, err := reopened.Appointment("a1")
	require.NoError(t, err)
	assert.True(t, got.Date.Equal(a.Date), "date must come back as a time value")
	assert.True(t, got.Price.Equal(a.Price))
	require.Len(t, got.InspirationPhotos, 1)
	assert.Equal(t, a.InspirationPhotos[0].Data, got.InspirationPhotos[0].Data)
	assert.Len(t, reopened.PressOns(), 1)
	assert.Len(t, reopened.Availabilities(), 1)

	info, err := fsys.Stat("/data/store.json")
	require.NoError(t, err)
	assert.Equal(t, "-rw-------", info.Mode().Perm().String())
}

func TestStore_OpenMissingFileIsEmpty(t *testing.T) {
	s, err := Open(NewFilePersister(afero.NewMemMapFs(), "/nowhere/store.json"))
	require.NoError(t, err)
	assert.Empty(t, s.Appointments())
}

type failingPersister struct{ snap Snapshot }

func (f *failingPersister) Load() (*Snapshot, error) { return &f.snap, nil }
func (f *failingPersister) Save(*Snapshot) error    { return errors.New("disk full") }

func TestStore_FailedPersistLeavesStateUnchanged(t *testing.T) {
	s, err := Open(&failingPersister{})
	require.NoError(t, err)

	_, err = s.CreateAppointment(appt("a1"))
	assert.Error(t, err)
	assert.Empty(t, s.Appointments())
}

func TestStore_CreateAvailabilitiesSkipsExistingSlots(t *testing.T) {
	s, _ := newTestStore(t)
	day := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	_, err := s.CreateAvailability(model.Availability{Date: day, StartTime: "09:00"})
	require.NoError(t, err)

	added, err := s.CreateAvailabilities([]model.Availability{
		{Date: day, StartTime: "09:00"},
		{Date: day, StartTime: "13:00"},
		{Date: day.AddDate(0, 0, 7), StartTime: "09:00"},
	})
	require.NoError(t, err)
	assert.Len(t, added, 2)
	assert.Len(t, s.Availabilities(), 3)

	require.NoError(t, s.DeleteAvailability(added[0].ID))
	require.NoError(t, s.DeleteAvailability(added[0].ID))
	assert.Len(t, s.Availabilities(), 2)
}

func TestStore_PressOnLifecycle(t *testing.T) {
	s, _ := newTestStore(t)

	p, err := s.CreatePressOn(model.PressOn{Name: "French coffin", Size: "S", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, model.PressOnAvailable, p.Status)

	sold := model.PressOnSold
	zero := 0
	p, err = s.UpdatePressOn(p.ID, model.PressOnPatch{Status: &sold, Quantity: &zero})
	require.NoError(t, err)
	assert.Equal(t, model.PressOnSold, p.Status)

	_, err = s.CreatePressOn(model.PressOn{Quantity: 1})
	assert.True(t, errors.Is(err, ErrInvalidInventory))

	require.NoError(t, s.DeletePressOn(p.ID))
	require.NoError(t, s.DeletePressOn(p.ID))
	assert.Empty(t, s.PressOns())
}

func TestStore_LinkRemote(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.CreateAppointment(appt("a1"))
	require.NoError(t, err)

	got, err := s.LinkRemote("a1", "g1")
	require.NoError(t, err)
	assert.Equal(t, "g1", got.RemoteEventID)

	_, err = s.LinkRemote("missing", "g2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_LinkRemoteFoldsImportedDuplicate(t *testing.T) {
	s, _ := newTestStore(t)
	local, err := s.CreateAppointment(appt("a1"))
	require.NoError(t, err)

	imported := appt("g9")
	imported.RemoteEventID = "g9"
	_, err = s.MergeSyncedBatch([]model.Appointment{imported})
	require.NoError(t, err)
	require.Len(t, s.Appointments(), 2)

	got, err := s.LinkRemote("a1", "g9")
	require.NoError(t, err)
	assert.Equal(t, "g9", got.RemoteEventID)
	assert.Equal(t, local.CreatedAt, got.CreatedAt)

	all := s.Appointments()
	require.Len(t, all, 1)
	assert.Equal(t, "a1", all[0].ID)
	assert.Equal(t, "g9", all[0].RemoteEventID)
}

func TestStore_LinkRemoteRejectsForeignOwner(t *testing.T) {
	s, _ := newTestStore(t)
	owner := appt("a1")
	owner.RemoteEventID = "g1"
	_, err := s.CreateAppointment(owner)
	require.NoError(t, err)
	_, err = s.CreateAppointment(appt("a2"))
	require.NoError(t, err)

	_, err = s.LinkRemote("a2", "g1")
	assert.ErrorIs(t, err, ErrDuplicateRemote)

	a2, err := s.Appointment("a2")
	require.NoError(t, err)
	assert.Empty(t, a2.RemoteEventID)
	assert.Len(t, s.Appointments(), 2)
}
