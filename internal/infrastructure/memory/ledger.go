package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/jhoicas/CRM-api/internal/domain/entity"
)

type contributionRepo struct{ s *Store }

func (r *contributionRepo) Upsert(_ context.Context, c *entity.SourceContribution) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := string(c.Source) + "|" + c.SourceRecordID
	if cur, ok := r.s.st.contributions[key]; ok {
		cur.CanonicalKind, cur.CanonicalID = c.CanonicalKind, c.CanonicalID
		cur.SourceData = append([]byte(nil), c.SourceData...)
		if c.NativeID != 0 {
			cur.NativeID = c.NativeID
		}
		if c.LastSeen.After(cur.LastSeen) {
			cur.LastSeen = c.LastSeen
		}
		c.ID, c.FirstSeen, c.LastSeen = cur.ID, cur.FirstSeen, cur.LastSeen
		return false, nil
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	cp := *c
	cp.SourceData = append([]byte(nil), c.SourceData...)
	r.s.st.contributions[key] = &cp
	return true, nil
}

func (r *contributionRepo) MaxNativeID(_ context.Context, src entity.Source, kind entity.RecordKind) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	prefix := string(kind) + ":"
	var max int64
	for _, c := range r.s.st.contributions {
		if c.Source == src && strings.HasPrefix(c.SourceRecordID, prefix) && c.NativeID > max {
			max = c.NativeID
		}
	}
	return max, nil
}

func (r *contributionRepo) ListByCanonical(_ context.Context, kind entity.CanonicalKind, id string) ([]*entity.SourceContribution, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []*entity.SourceContribution
	for _, c := range r.s.st.contributions {
		if c.CanonicalKind == kind && c.CanonicalID == id {
			cp := *c
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].FirstSeen.Equal(list[j].FirstSeen) {
			return list[i].SourceRecordID < list[j].SourceRecordID
		}
		return list[i].FirstSeen.Before(list[j].FirstSeen)
	})
	return list, nil
}

type noteRepo struct{ s *Store }

func (r *noteRepo) Append(_ context.Context, n *entity.Note) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	cp := *n
	r.s.st.notes = append(r.s.st.notes, &cp)
	return nil
}

func (r *noteRepo) List(_ context.Context, subject entity.NoteSubject, id string) ([]*entity.Note, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []*entity.Note
	for _, n := range r.s.st.notes {
		if n.Subject == subject && n.SubjectID == id {
			cp := *n
			list = append(list, &cp)
		}
	}
	return list, nil
}

type syncRunRepo struct{ s *Store }

func (r *syncRunRepo) Create(_ context.Context, run *entity.SyncRun) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	cp := *run
	r.s.st.runs = append(r.s.st.runs, &cp)
	return nil
}

func (r *syncRunRepo) ListRecent(_ context.Context, src entity.Source, limit int) ([]*entity.SyncRun, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []*entity.SyncRun
	for i := len(r.s.st.runs) - 1; i >= 0; i-- {
		run := r.s.st.runs[i]
		if src != "" && run.Source != src {
			continue
		}
		cp := *run
		list = append(list, &cp)
		if limit > 0 && len(list) == limit {
			break
		}
	}
	return list, nil
}
