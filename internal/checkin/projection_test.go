package checkin

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/model"
)

func keys(rows []Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Key)
	}
	return out
}

func TestProject_OrderAndOwnerRows(t *testing.T) {
	rows := Project(loadedSnapshot(), Filter{})
	require.Equal(t, []string{
		"reservation:3", "list_guest:42",
		"reservation:1", "reservation:2", "list_guest:41", "owner:7",
	}, keys(rows))

	owner := rows[len(rows)-1]
	require.Equal(t, OwnerRow, owner.Kind)
	require.Equal(t, "João", owner.Name)
	require.Equal(t, 10, owner.People)
	require.Equal(t, CheckedIn, owner.Status)
}

func TestProject_ConcludedListsSinkToTheBottom(t *testing.T) {
	snap := loadedSnapshot()
	o, _, err := CheckOutOwner(snap, "7", true, doorTime)
	require.NoError(t, err)
	ov := NewOverlay()
	ov.PatchOwner("7", o)

	rows := Project(ov.Effective(snap), Filter{})
	require.Equal(t, []string{
		"reservation:3",
		"reservation:1", "reservation:2",
		"list_guest:42", "list_guest:41", "owner:7",
	}, keys(rows))
	for _, r := range rows[3:] {
		require.True(t, r.Concluded || r.Status == CheckedOut)
	}
}

func TestProject_Filters(t *testing.T) {
	snap := loadedSnapshot()

	rows := Project(snap, Filter{Query: "joao"})
	require.Equal(t, []string{"list_guest:42", "list_guest:41", "owner:7"}, keys(rows), "owner name matches through accent folding")

	rows = Project(snap, Filter{Query: "ELISA"})
	require.Equal(t, []string{"reservation:3"}, keys(rows))

	rows = Project(snap, Filter{Kinds: []RowKind{OwnerRow}})
	require.Equal(t, []string{"owner:7"}, keys(rows))

	rows = Project(snap, Filter{Status: Pending})
	require.Equal(t, []string{"reservation:3", "list_guest:42"}, keys(rows))
}

func TestProject_Cancelled(t *testing.T) {
	snap, _ := Normalize(model.RawLoadResult{TableReservations: []model.RawTableReservation{
		{ID: 1, ClientName: "Kept"},
		{ID: 2, ClientName: "Gone", Status: "cancelled"},
	}})
	require.Len(t, Project(snap, Filter{}), 1)

	rows := Project(snap, Filter{IncludeCancelled: true})
	require.Len(t, rows, 2)
	require.Equal(t, "Cancelled", Export(rows)[0].Status)
}

func TestExport(t *testing.T) {
	rows := Export(Project(loadedSnapshot(), Filter{}))
	require.Len(t, rows, 6)
	require.Equal(t, ExportRow{
		Date:   "",
		Time:   "",
		Name:   "Elisa Prado",
		People: 3,
		Status: "Pending",
	}, rows[0])
	require.Equal(t, "Checked in", rows[2].Status)
	require.Equal(t, "12", rows[len(rows)-1].Table)
	require.Len(t, ExportHeader, 9)
}
