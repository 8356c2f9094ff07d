package checkin

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func checkedIn(t *testing.T, snap Snapshot, key string) GuestRecord {
	t.Helper()
	r, out, err := CheckIn(snap, key, &FeeInput{Kind: Complimentary}, doorTime)
	require.NoError(t, err)
	require.Equal(t, Applied, out)
	return r
}

func TestOverlay_PatchAndRollback(t *testing.T) {
	server := loadedSnapshot()
	ov := NewOverlay()

	m := ov.PatchRecord(checkedIn(t, server, "reservation:3"))
	require.True(t, ov.Effective(server).Records["reservation:3"].CheckedIn)
	require.False(t, server.Records["reservation:3"].CheckedIn)

	m.Rollback()
	require.Zero(t, ov.Len())
	require.False(t, ov.Effective(server).Records["reservation:3"].CheckedIn)
}

func TestOverlay_RollbackBelowNewerPatch(t *testing.T) {
	server := loadedSnapshot()
	ov := NewOverlay()

	in := checkedIn(t, server, "reservation:3")
	first := ov.PatchRecord(in)
	out, _, err := CheckOut(ov.Effective(server), "reservation:3", true, doorTime)
	require.NoError(t, err)
	ov.PatchRecord(out)

	first.Rollback()
	r := ov.Effective(server).Records["reservation:3"]
	require.True(t, r.CheckedOut, "the newer patch stays on top")
	require.Equal(t, 1, ov.Len())
}

func TestOverlay_RebaseKeepsOnlyPending(t *testing.T) {
	server := loadedSnapshot()
	ov := NewOverlay()

	confirmed := ov.PatchRecord(checkedIn(t, server, "reservation:3"))
	confirmed.Confirm(nil, nil)
	ov.PatchRecord(checkedIn(t, server, "list_guest:42"))

	ov.Rebase()
	require.Equal(t, 1, ov.Len())

	eff := ov.Effective(server)
	require.False(t, eff.Records["reservation:3"].CheckedIn, "confirmed patch is dropped once the server is authoritative")
	require.True(t, eff.Records["list_guest:42"].CheckedIn)
}

func TestOverlay_RebaseKeys(t *testing.T) {
	server := loadedSnapshot()
	ov := NewOverlay()

	a := ov.PatchRecord(checkedIn(t, server, "reservation:3"))
	a.Confirm(nil, nil)
	b := ov.PatchRecord(checkedIn(t, server, "list_guest:42"))
	b.Confirm(nil, nil)

	ov.RebaseKeys([]string{"list_guest:42"})
	eff := ov.Effective(server)
	require.True(t, eff.Records["reservation:3"].CheckedIn)
	require.False(t, eff.Records["list_guest:42"].CheckedIn)
}

func TestOverlay_ConfirmReplacesValue(t *testing.T) {
	server := loadedSnapshot()
	ov := NewOverlay()

	r := checkedIn(t, server, "reservation:3")
	m := ov.PatchRecord(r)
	stamped := r
	stamped.Notes = "server says hi"
	m.Confirm(&stamped, nil)

	require.Equal(t, "server says hi", ov.Effective(server).Records["reservation:3"].Notes)
}

func TestOverlay_IgnoresVanishedRecords(t *testing.T) {
	server := loadedSnapshot()
	ov := NewOverlay()
	ov.PatchRecord(checkedIn(t, server, "reservation:3"))

	delete(server.Records, "reservation:3")
	_, ok := ov.Effective(server).Records["reservation:3"]
	require.False(t, ok)
}

func TestOverlay_OwnerPatch(t *testing.T) {
	server := loadedSnapshot()
	ov := NewOverlay()

	o, _, err := CheckOutOwner(server, "7", true, doorTime)
	require.NoError(t, err)
	m := ov.PatchOwner("7", o)
	require.True(t, ov.Effective(server).Lists["7"].Concluded())
	require.False(t, server.Lists["7"].Concluded())

	m.Rollback()
	require.False(t, ov.Effective(server).Lists["7"].Concluded())
}
