package schedule

import (
	"encoding/json"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// honorifics are the Thai academic titles recognized when splitting a
// legacy single-field teacher name. Order matters: longer forms first so
// "อาจารย์" is not matched as "อ.".
var honorifics = []string{"อาจารย์", "ดร.", "ผศ.", "รศ.", "ศ.", "อ."}

// rawTeacher accepts both the current teacher shape and the legacy one
// that carried a single "name" field.
type rawTeacher struct {
	Teacher
	LegacyName string `json:"name,omitempty"`
}

// rawSheet accepts any historical sheet shape. Collections are pointers so
// that "absent" and "empty" can be told apart; the legacy sheet-level
// roomId is decoded only to be dropped.
type rawSheet struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Grade         string          `json:"grade,omitempty"`
	LegacyRoomID  string          `json:"roomId,omitempty"`
	Slots         []Slot          `json:"slots"`
	Subjects      *[]Subject      `json:"subjects"`
	Teachers      []rawTeacher    `json:"teachers"`
	SubTeachers   *[]SubTeacher   `json:"subTeachers"`
	Rooms         []Room          `json:"rooms"`
	SchoolInfo    *SchoolInfo     `json:"schoolInfo"`
	PeriodConfigs *[]PeriodConfig `json:"periodConfigs"`
	DayConfigs    *[]DayConfig    `json:"dayConfigs"`
}

// MigrateSheets upgrades freshly loaded sheets of any historical shape to
// the current shape. It is pure and total: undecodable entries are
// skipped, unknown fields are ignored, and no error is ever returned. The
// caller substitutes a single default sheet when nothing usable remains.
func MigrateSheets(raws []json.RawMessage) []Sheet {
	sheets := make([]Sheet, 0, len(raws))
	for _, raw := range raws {
		var rs rawSheet
		if err := json.Unmarshal(raw, &rs); err != nil {
			continue
		}
		sheets = append(sheets, migrateSheet(rs))
	}
	return sheets
}

func migrateSheet(rs rawSheet) Sheet {
	// A sheet without a subjects array predates the entity collections
	// entirely: keep its slots, backfill everything else.
	if rs.Subjects == nil {
		info := mergeSchoolInfo(rs.SchoolInfo)
		sheet := Sheet{
			ID:            rs.ID,
			Name:          rs.Name,
			Grade:         rs.Grade,
			Slots:         orEmptySlots(rs.Slots),
			Subjects:      []Subject{},
			Teachers:      []Teacher{},
			SubTeachers:   []SubTeacher{},
			Rooms:         []Room{},
			SchoolInfo:    info,
			PeriodConfigs: GeneratePeriods(info.StartTime, info.EndTime, info.MinutesPerPeriod),
			DayConfigs:    DefaultDays(),
		}
		if rs.DayConfigs != nil {
			sheet.DayConfigs = *rs.DayConfigs
		}
		return sheet
	}

	sheet := Sheet{
		ID:          rs.ID,
		Name:        rs.Name,
		Grade:       rs.Grade,
		Slots:       orEmptySlots(rs.Slots),
		Subjects:    migrateSubjects(*rs.Subjects),
		Teachers:    migrateTeachers(rs.Teachers),
		SubTeachers: []SubTeacher{},
		Rooms:       migrateRooms(rs.Rooms),
		SchoolInfo:  mergeSchoolInfo(rs.SchoolInfo),
		DayConfigs:  DefaultDays(),
	}
	if rs.SubTeachers != nil {
		sheet.SubTeachers = *rs.SubTeachers
	}
	if rs.DayConfigs != nil {
		sheet.DayConfigs = *rs.DayConfigs
	}

	sheet.PeriodConfigs = migratePeriodConfigs(rs)
	return sheet
}

// migratePeriodConfigs keeps the stored period list unless the school
// hours would generate a list of a different length. Comparing counts is a
// cheap staleness heuristic, not a full diff.
func migratePeriodConfigs(rs rawSheet) []PeriodConfig {
	var stored []PeriodConfig
	if rs.PeriodConfigs != nil {
		stored = *rs.PeriodConfigs
	}
	if rs.SchoolInfo == nil || rs.SchoolInfo.StartTime == "" || rs.SchoolInfo.EndTime == "" {
		if len(stored) > 0 {
			return stored
		}
		info := mergeSchoolInfo(rs.SchoolInfo)
		return GeneratePeriods(info.StartTime, info.EndTime, info.MinutesPerPeriod)
	}
	generated := GeneratePeriods(rs.SchoolInfo.StartTime, rs.SchoolInfo.EndTime, rs.SchoolInfo.MinutesPerPeriod)
	if len(stored) != len(generated) {
		return generated
	}
	return stored
}

func migrateSubjects(in []Subject) []Subject {
	out := make([]Subject, len(in))
	for i, s := range in {
		if s.NameEN == "" {
			s.NameEN = s.Name
		}
		out[i] = s
	}
	return out
}

func migrateRooms(in []Room) []Room {
	out := make([]Room, len(in))
	for i, r := range in {
		if r.RoomType == "" {
			r.RoomType = DefaultRoomType
		}
		out[i] = r
	}
	return out
}

func migrateTeachers(in []rawTeacher) []Teacher {
	out := make([]Teacher, len(in))
	for i, rt := range in {
		t := rt.Teacher
		if t.FirstName == "" && t.LastName == "" && rt.LegacyName != "" {
			title, first, last := SplitTeacherName(rt.LegacyName)
			t.Title = title
			t.FirstName = first
			t.LastName = last
		}
		if t.FullName == "" {
			t.FullName = t.ComposeFullName()
		}
		out[i] = t
	}
	return out
}

// SplitTeacherName splits a legacy single-field teacher name into an
// optional honorific title, a first name, and a last name. The input is
// NFC-normalized first so that decomposed Thai vowel sequences compare
// equal to the composed honorific constants.
func SplitTeacherName(name string) (title, first, last string) {
	fields := strings.Fields(norm.NFC.String(name))
	if len(fields) == 0 {
		return "", "", ""
	}
	for _, h := range honorifics {
		if fields[0] == h {
			title = h
			fields = fields[1:]
			break
		}
	}
	if len(fields) > 0 {
		first = fields[0]
	}
	if len(fields) > 1 {
		last = strings.Join(fields[1:], " ")
	}
	return title, first, last
}

func mergeSchoolInfo(in *SchoolInfo) SchoolInfo {
	info := DefaultSchoolInfo()
	if in == nil {
		return info
	}
	if in.Name != "" {
		info.Name = in.Name
	}
	if in.StartTime != "" {
		info.StartTime = in.StartTime
	}
	if in.EndTime != "" {
		info.EndTime = in.EndTime
	}
	if in.MinutesPerPeriod > 0 {
		info.MinutesPerPeriod = in.MinutesPerPeriod
	}
	return info
}

func orEmptySlots(in []Slot) []Slot {
	if in == nil {
		return []Slot{}
	}
	return in
}
