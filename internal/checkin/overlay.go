package checkin

// The working view of a session is two layers: the server snapshot, which
// is replaced wholesale on every successful full reconciliation, and a local
// overlay of optimistic patches applied while an action is in flight.
// Effective combines them; nothing else mutates records in place.

type patch struct {
	record  *GuestRecord
	owner   *Owner
	pending bool
	prior   *patch
}

// Overlay holds optimistic patches keyed by record key or owner key.
// It is not safe for concurrent use; Session serializes access.
type Overlay struct {
	top map[string]*patch
}

// NewOverlay returns an empty overlay.
func NewOverlay() *Overlay {
	return &Overlay{top: map[string]*patch{}}
}

// Mutation is the handle of one optimistic patch.
type Mutation struct {
	o   *Overlay
	key string
	p   *patch
}

func ownerKey(listID string) string { return "owner:" + listID }

// PatchRecord applies r optimistically.
func (o *Overlay) PatchRecord(r GuestRecord) *Mutation {
	rec := r
	return o.push(r.Key(), &patch{record: &rec, pending: true})
}

// PatchOwner applies an owner state optimistically.
func (o *Overlay) PatchOwner(listID string, owner Owner) *Mutation {
	ow := owner
	return o.push(ownerKey(listID), &patch{owner: &ow, pending: true})
}

func (o *Overlay) push(key string, p *patch) *Mutation {
	p.prior = o.top[key]
	o.top[key] = p
	return &Mutation{o: o, key: key, p: p}
}

// Confirm marks the patch as acknowledged by the server, optionally
// replacing its value with what the server returned. Confirmed patches
// survive until the next full reconciliation replaces them.
func (m *Mutation) Confirm(r *GuestRecord, owner *Owner) {
	if r != nil {
		rec := *r
		m.p.record = &rec
	}
	if owner != nil {
		ow := *owner
		m.p.owner = &ow
	}
	m.p.pending = false
}

// Rollback removes the patch, restoring whatever was visible before it was
// applied. Patches pushed on top of it afterwards are kept.
func (m *Mutation) Rollback() {
	top, ok := m.o.top[m.key]
	if !ok {
		return
	}
	if top == m.p {
		if m.p.prior == nil {
			delete(m.o.top, m.key)
		} else {
			m.o.top[m.key] = m.p.prior
		}
		return
	}
	for n := top; n != nil; n = n.prior {
		if n.prior == m.p {
			n.prior = m.p.prior
			return
		}
	}
}

// Rebase is called after the server snapshot was replaced. Confirmed
// patches are discarded because the server now reflects them; pending ones
// stay on top of the fresh snapshot with no history beneath them.
func (o *Overlay) Rebase() {
	for k := range o.top {
		o.rebaseKey(k)
	}
}

// RebaseKeys is Rebase restricted to keys, used after a partial refresh
// such as a single roster.
func (o *Overlay) RebaseKeys(keys []string) {
	for _, k := range keys {
		o.rebaseKey(k)
	}
}

func (o *Overlay) rebaseKey(k string) {
	p, ok := o.top[k]
	if !ok {
		return
	}
	var keep *patch
	for n := p; n != nil; n = n.prior {
		if n.pending {
			keep = n
			break
		}
	}
	if keep == nil {
		delete(o.top, k)
		return
	}
	keep.prior = nil
	o.top[k] = keep
}

// Len reports the number of keys carrying a patch.
func (o *Overlay) Len() int { return len(o.top) }

// Effective returns server with every patch applied. Patches for records
// or lists the server no longer reports are ignored. The server snapshot is
// not modified.
func (o *Overlay) Effective(server Snapshot) Snapshot {
	if len(o.top) == 0 {
		return server
	}
	out := server
	out.Records = make(map[string]GuestRecord, len(server.Records))
	for k, r := range server.Records {
		out.Records[k] = r
	}
	out.Lists = make(map[string]GuestList, len(server.Lists))
	for k, l := range server.Lists {
		out.Lists[k] = l
	}
	for k, p := range o.top {
		if p.record != nil {
			if _, ok := out.Records[k]; ok {
				out.Records[k] = *p.record
			}
		}
		if p.owner != nil {
			listID := k[len("owner:"):]
			if l, ok := out.Lists[listID]; ok {
				l.Owner = *p.owner
				out.Lists[listID] = l
			}
		}
	}
	return out
}
