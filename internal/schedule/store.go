package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kruplan/kruplan/internal/events"
)

// Store owns the in-memory sheet list and the active sheet id. Mutators are
// serialized behind a mutex and run to completion before the next one is
// accepted, so each is atomic with respect to the others. Mutations
// targeting a missing entity or run without an active sheet are silent
// no-ops; none of the operations can fail.
//
// Every completed mutation publishes a SheetsChanged event; the
// persistence coordinator mirrors and schedules remote saves from those.
type Store struct {
	mu       sync.Mutex
	sheets   []Sheet
	activeID string
	bus      *events.Bus
}

// NewStore creates an empty store. The bus may be nil in tests that do not
// exercise persistence.
func NewStore(bus *events.Bus) *Store {
	return &Store{bus: bus}
}

// Install replaces the entire sheet list and active id. Only the
// persistence coordinator calls this, during initial load.
func (st *Store) Install(sheets []Sheet, activeID string) {
	st.mu.Lock()
	st.sheets = CloneSheets(sheets)
	if activeID == "" && len(st.sheets) > 0 {
		activeID = st.sheets[0].ID
	}
	st.activeID = activeID
	st.mu.Unlock()
}

// Sheets returns a deep-copied snapshot of every sheet.
func (st *Store) Sheets() []Sheet {
	st.mu.Lock()
	defer st.mu.Unlock()
	return CloneSheets(st.sheets)
}

// ActiveSheetID returns the id of the sheet mutators currently target, or
// "" when no sheet is active.
func (st *Store) ActiveSheetID() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.activeID
}

// ActiveSheet returns a deep copy of the active sheet, or nil.
func (st *Store) ActiveSheet() *Sheet {
	st.mu.Lock()
	defer st.mu.Unlock()
	for i := range st.sheets {
		if st.sheets[i].ID == st.activeID {
			c := st.sheets[i].Clone()
			return &c
		}
	}
	return nil
}

// SetActiveSheetID switches the mutation target. Unknown ids are ignored.
func (st *Store) SetActiveSheetID(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for i := range st.sheets {
		if st.sheets[i].ID == id {
			st.activeID = id
			return
		}
	}
}

// CreateSheet appends a new empty sheet with default configuration and
// makes it active. Returns the new sheet's id.
func (st *Store) CreateSheet(name, grade string) string {
	st.mu.Lock()
	sheet := NewSheet(name, grade)
	st.sheets = append(st.sheets, sheet)
	st.activeID = sheet.ID
	st.mu.Unlock()

	st.notify("create_sheet", sheet.ID)
	return sheet.ID
}

// DeleteSheet removes a sheet. If it was active the first remaining sheet
// becomes active; with no sheets left the active id is cleared.
func (st *Store) DeleteSheet(id string) {
	st.mu.Lock()
	kept := st.sheets[:0]
	removed := false
	for _, s := range st.sheets {
		if s.ID == id {
			removed = true
			continue
		}
		kept = append(kept, s)
	}
	st.sheets = kept
	if removed && st.activeID == id {
		if len(st.sheets) > 0 {
			st.activeID = st.sheets[0].ID
		} else {
			st.activeID = ""
		}
	}
	st.mu.Unlock()

	if removed {
		st.notify("delete_sheet", id)
	}
}

// UpdateSlot places a slot at its (day, period) coordinate on the active
// sheet, replacing any slot already there. At most one slot ever occupies
// a coordinate.
func (st *Store) UpdateSlot(slot Slot) {
	st.mutateActive("update_slot", func(sheet *Sheet) {
		kept := sheet.Slots[:0]
		for _, s := range sheet.Slots {
			if s.Day == slot.Day && s.Period == slot.Period {
				continue
			}
			kept = append(kept, s)
		}
		sheet.Slots = append(kept, slot)
	})
}

// RemoveSlot clears the (day, period) coordinate on the active sheet.
func (st *Store) RemoveSlot(day string, period int) {
	st.mutateActive("remove_slot", func(sheet *Sheet) {
		kept := sheet.Slots[:0]
		for _, s := range sheet.Slots {
			if s.Day == day && s.Period == period {
				continue
			}
			kept = append(kept, s)
		}
		sheet.Slots = kept
	})
}

// AddSubject appends a subject to the active sheet.
func (st *Store) AddSubject(subject Subject) {
	st.mutateActive("add_subject", func(sheet *Sheet) {
		sheet.Subjects = append(sheet.Subjects, subject)
	})
}

// UpdateSubject replaces the subject with the same id on the active sheet.
func (st *Store) UpdateSubject(subject Subject) {
	st.mutateActive("update_subject", func(sheet *Sheet) {
		for i := range sheet.Subjects {
			if sheet.Subjects[i].ID == subject.ID {
				sheet.Subjects[i] = subject
				return
			}
		}
	})
}

// DeleteSubject removes a subject and cascades to the slots that reference
// its code.
func (st *Store) DeleteSubject(subjectID string) {
	st.mutateActive("delete_subject", func(sheet *Sheet) {
		var code string
		found := false
		kept := sheet.Subjects[:0]
		for _, s := range sheet.Subjects {
			if s.ID == subjectID {
				code = s.Code
				found = true
				continue
			}
			kept = append(kept, s)
		}
		sheet.Subjects = kept
		if !found {
			return
		}
		slots := sheet.Slots[:0]
		for _, s := range sheet.Slots {
			if s.SubjectCode == code {
				continue
			}
			slots = append(slots, s)
		}
		sheet.Slots = slots
	})
}

// AddTeacher appends a teacher to the active sheet, recomputing the
// denormalized full name from the name parts.
func (st *Store) AddTeacher(teacher Teacher) {
	st.mutateActive("add_teacher", func(sheet *Sheet) {
		teacher.FullName = teacher.ComposeFullName()
		sheet.Teachers = append(sheet.Teachers, teacher)
	})
}

// UpdateTeacher replaces the teacher with the same id, recomputing the
// full name. Existing SubTeacher copies of the old name are left alone;
// they are display caches, not sources of truth.
func (st *Store) UpdateTeacher(teacher Teacher) {
	st.mutateActive("update_teacher", func(sheet *Sheet) {
		for i := range sheet.Teachers {
			if sheet.Teachers[i].ID == teacher.ID {
				teacher.FullName = teacher.ComposeFullName()
				sheet.Teachers[i] = teacher
				return
			}
		}
	})
}

// DeleteTeacher removes a teacher and cascades to sub-teacher links and
// slots referencing the id.
func (st *Store) DeleteTeacher(teacherID string) {
	st.mutateActive("delete_teacher", func(sheet *Sheet) {
		teachers := sheet.Teachers[:0]
		for _, t := range sheet.Teachers {
			if t.ID == teacherID {
				continue
			}
			teachers = append(teachers, t)
		}
		sheet.Teachers = teachers

		links := sheet.SubTeachers[:0]
		for _, l := range sheet.SubTeachers {
			if l.TeacherID == teacherID {
				continue
			}
			links = append(links, l)
		}
		sheet.SubTeachers = links

		slots := sheet.Slots[:0]
		for _, s := range sheet.Slots {
			if s.TeacherID != nil && *s.TeacherID == teacherID {
				continue
			}
			slots = append(slots, s)
		}
		sheet.Slots = slots
	})
}

// AddSubTeacher appends a teacher-subject link. A link with the same
// (teacher_id, subject_id) pair already present makes this a no-op.
func (st *Store) AddSubTeacher(link SubTeacher) {
	st.mutateActive("add_sub_teacher", func(sheet *Sheet) {
		for _, l := range sheet.SubTeachers {
			if l.TeacherID == link.TeacherID && l.SubjectID == link.SubjectID {
				return
			}
		}
		sheet.SubTeachers = append(sheet.SubTeachers, link)
	})
}

// UpdateSubTeacher replaces the link with the same id.
func (st *Store) UpdateSubTeacher(link SubTeacher) {
	st.mutateActive("update_sub_teacher", func(sheet *Sheet) {
		for i := range sheet.SubTeachers {
			if sheet.SubTeachers[i].ID == link.ID {
				sheet.SubTeachers[i] = link
				return
			}
		}
	})
}

// DeleteSubTeacher removes a teacher-subject link by id.
func (st *Store) DeleteSubTeacher(linkID string) {
	st.mutateActive("delete_sub_teacher", func(sheet *Sheet) {
		kept := sheet.SubTeachers[:0]
		for _, l := range sheet.SubTeachers {
			if l.ID == linkID {
				continue
			}
			kept = append(kept, l)
		}
		sheet.SubTeachers = kept
	})
}

// AddRoom appends a room to the active sheet.
func (st *Store) AddRoom(room Room) {
	st.mutateActive("add_room", func(sheet *Sheet) {
		sheet.Rooms = append(sheet.Rooms, room)
	})
}

// UpdateRoom replaces the room with the same id.
func (st *Store) UpdateRoom(room Room) {
	st.mutateActive("update_room", func(sheet *Sheet) {
		for i := range sheet.Rooms {
			if sheet.Rooms[i].ID == room.ID {
				sheet.Rooms[i] = room
				return
			}
		}
	})
}

// DeleteRoom removes a room and cascades to the slots referencing it.
func (st *Store) DeleteRoom(roomID string) {
	st.mutateActive("delete_room", func(sheet *Sheet) {
		kept := sheet.Rooms[:0]
		for _, r := range sheet.Rooms {
			if r.ID == roomID {
				continue
			}
			kept = append(kept, r)
		}
		sheet.Rooms = kept

		slots := sheet.Slots[:0]
		for _, s := range sheet.Slots {
			if s.RoomID != nil && *s.RoomID == roomID {
				continue
			}
			slots = append(slots, s)
		}
		sheet.Slots = slots
	})
}

// UpdateSchoolInfo replaces the school info on every sheet. The school
// calendar is shared across all of an owner's sheets, so this fan-out is
// intentional.
func (st *Store) UpdateSchoolInfo(info SchoolInfo) {
	st.mu.Lock()
	if st.activeID == "" {
		st.mu.Unlock()
		return
	}
	for i := range st.sheets {
		st.sheets[i].SchoolInfo = info
	}
	st.mu.Unlock()

	st.notify("update_school_info", "")
}

// SetPeriodConfigs replaces the period list on every sheet and prunes
// slots whose period id no longer exists.
func (st *Store) SetPeriodConfigs(configs []PeriodConfig) {
	st.mu.Lock()
	if st.activeID == "" {
		st.mu.Unlock()
		return
	}
	valid := make(map[int]struct{}, len(configs))
	for _, p := range configs {
		valid[p.ID] = struct{}{}
	}
	for i := range st.sheets {
		st.sheets[i].PeriodConfigs = append([]PeriodConfig(nil), configs...)
		kept := st.sheets[i].Slots[:0]
		for _, s := range st.sheets[i].Slots {
			if _, ok := valid[s.Period]; !ok {
				continue
			}
			kept = append(kept, s)
		}
		st.sheets[i].Slots = kept
	}
	st.mu.Unlock()

	st.notify("set_period_configs", "")
}

// UpdatePeriodConfig merge-patches one period entry on the active sheet.
// Nil fields of the patch leave the stored value untouched.
func (st *Store) UpdatePeriodConfig(periodID int, patch PeriodConfigPatch) {
	st.mutateActive("update_period_config", func(sheet *Sheet) {
		for i := range sheet.PeriodConfigs {
			if sheet.PeriodConfigs[i].ID == periodID {
				patch.apply(&sheet.PeriodConfigs[i])
				return
			}
		}
	})
}

// UpdateDayConfig merge-patches one day entry on the active sheet.
func (st *Store) UpdateDayConfig(dayKey string, patch DayConfigPatch) {
	st.mutateActive("update_day_config", func(sheet *Sheet) {
		for i := range sheet.DayConfigs {
			if sheet.DayConfigs[i].Key == dayKey {
				patch.apply(&sheet.DayConfigs[i])
				return
			}
		}
	})
}

// GetAllRooms returns the rooms of every sheet de-duplicated by id, first
// occurrence winning. The UI treats rooms as a cross-sheet pool even
// though each sheet stores its own list.
func (st *Store) GetAllRooms() []Room {
	st.mu.Lock()
	defer st.mu.Unlock()
	seen := make(map[string]struct{})
	var rooms []Room
	for i := range st.sheets {
		for _, r := range st.sheets[i].Rooms {
			if _, ok := seen[r.ID]; ok {
				continue
			}
			seen[r.ID] = struct{}{}
			rooms = append(rooms, r)
		}
	}
	return rooms
}

// PeriodConfigPatch is a partial update for one period entry.
type PeriodConfigPatch struct {
	Time             *string `json:"time,omitempty"`
	MinutesPerPeriod *int    `json:"minutesPerPeriod,omitempty"`
}

func (p PeriodConfigPatch) apply(dst *PeriodConfig) {
	if p.Time != nil {
		dst.Time = *p.Time
	}
	if p.MinutesPerPeriod != nil {
		dst.MinutesPerPeriod = p.MinutesPerPeriod
	}
}

// DayConfigPatch is a partial update for one day entry.
type DayConfigPatch struct {
	Label            *string `json:"label,omitempty"`
	Color            *string `json:"color,omitempty"`
	MinutesPerPeriod *int    `json:"minutesPerPeriod,omitempty"`
}

func (p DayConfigPatch) apply(dst *DayConfig) {
	if p.Label != nil {
		dst.Label = *p.Label
	}
	if p.Color != nil {
		dst.Color = *p.Color
	}
	if p.MinutesPerPeriod != nil {
		dst.MinutesPerPeriod = p.MinutesPerPeriod
	}
}

// mutateActive runs fn against the active sheet and publishes the change.
// Without an active sheet it is a no-op.
func (st *Store) mutateActive(reason string, fn func(*Sheet)) {
	st.mu.Lock()
	var target *Sheet
	for i := range st.sheets {
		if st.sheets[i].ID == st.activeID {
			target = &st.sheets[i]
			break
		}
	}
	if target == nil {
		st.mu.Unlock()
		return
	}
	fn(target)
	id := target.ID
	st.mu.Unlock()

	st.notify(reason, id)
}

func (st *Store) notify(reason, sheetID string) {
	if st.bus == nil {
		return
	}
	evt := events.SheetsChanged{Reason: reason, SheetID: sheetID, ChangedAt: time.Now()}
	if err := st.bus.Publish(context.Background(), evt); err != nil {
		slog.Warn("failed to publish sheet change", "reason", reason, "error", err)
	}
}
