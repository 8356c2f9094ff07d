package checkin

// Metric is one headline card: expected people, people inside (or already
// gone) and the difference.
type Metric struct {
	Total     int `json:"total"`
	CheckedIn int `json:"checked_in"`
	Remaining int `json:"remaining"`
}

// Stats are the headline numbers of an event.
type Stats struct {
	Metric
	UniqueNames    int                   `json:"unique_names"`
	BoothExpected  int                   `json:"booth_expected"`
	BoothCheckedIn int                   `json:"booth_checked_in"`
	ByKind         map[SourceKind]Metric `json:"by_kind"`
}

type nameSets struct {
	all map[string]struct{}
	in  map[string]struct{}
}

func newNameSets() nameSets {
	return nameSets{all: map[string]struct{}{}, in: map[string]struct{}{}}
}

// add registers a person. Blank names cannot be deduplicated and are left
// out entirely.
func (s nameSets) add(name string, inside bool) {
	n := normalizeName(name)
	if n == "" {
		return
	}
	s.all[n] = struct{}{}
	if inside {
		s.in[n] = struct{}{}
	}
}

func (s nameSets) metric(extraTotal, extraIn int) Metric {
	m := Metric{Total: len(s.all) + extraTotal, CheckedIn: len(s.in) + extraIn}
	m.Remaining = m.Total - m.CheckedIn
	if m.Remaining < 0 {
		m.Remaining = 0
	}
	return m
}

// Aggregate computes the headline statistics of a snapshot. Named people
// are deduplicated across every source by normalized name, so someone on
// both a guest list and a promoter list counts once. Booths are counted by
// declared headcount and added on top without deduplication.
//
// Cancelled and no-show records are left out of every total, including
// the unique-name count, even though the upstream still lists them. A
// name that appears only on cancelled records is not expected at the door.
func Aggregate(snap Snapshot) Stats {
	global := newNameSets()
	perKind := map[SourceKind]nameSets{}
	for _, k := range Kinds {
		perKind[k] = newNameSets()
	}
	boothTotal, boothIn := 0, 0

	for _, r := range snap.RecordList() {
		if r.Cancelled() {
			continue
		}
		if r.Kind == BoothGuest {
			boothTotal += r.People
			if r.CheckedIn {
				boothIn += r.People
			}
			continue
		}
		global.add(r.DisplayName, r.CheckedIn)
		perKind[r.Kind].add(r.DisplayName, r.CheckedIn)
	}
	for _, l := range snap.GuestLists() {
		global.add(l.Owner.Name, l.Owner.CheckedIn)
		perKind[RestaurantGuest].add(l.Owner.Name, l.Owner.CheckedIn)
	}

	st := Stats{
		Metric:         global.metric(boothTotal, boothIn),
		UniqueNames:    len(global.all),
		BoothExpected:  boothTotal,
		BoothCheckedIn: boothIn,
		ByKind:         make(map[SourceKind]Metric, len(Kinds)),
	}
	for _, k := range Kinds {
		if k == BoothGuest {
			st.ByKind[k] = newNameSets().metric(boothTotal, boothIn)
			continue
		}
		st.ByKind[k] = perKind[k].metric(0, 0)
	}
	return st
}
