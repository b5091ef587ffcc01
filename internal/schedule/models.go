// Package schedule holds the in-memory timetable model: sheets, their
// entity collections, the derived period configuration, and the store that
// mutates them.
package schedule

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Slot is one occupied (day, period) cell of a sheet. At most one slot may
// exist per coordinate within a sheet; UpdateSlot enforces this.
type Slot struct {
	ID          string  `json:"id,omitempty"`
	Day         string  `json:"day"`
	Period      int     `json:"period"`
	SubjectCode string  `json:"subjectCode"`
	SubjectName string  `json:"subjectName"`
	TeacherID   *string `json:"teacherId,omitempty"`
	RoomID      *string `json:"roomId,omitempty"`
	Color       *string `json:"color,omitempty"`
}

// Subject is a course that can be placed into slots. TotalHours is
// advisory; the store accepts whatever the caller provides.
type Subject struct {
	ID           string  `json:"id"`
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	NameEN       string  `json:"name_en,omitempty"`
	LectureHours *int    `json:"lecture_hours,omitempty"`
	LabHours     *int    `json:"lab_hours,omitempty"`
	TotalHours   *int    `json:"total_hours,omitempty"`
	TeacherID    *string `json:"teacherId,omitempty"`
	RoomID       *string `json:"roomId,omitempty"`
	LabRoomID    *string `json:"labRoomId,omitempty"`
	Color        string  `json:"color,omitempty"`
}

// UnavailableTime marks a (day, period) a teacher cannot take.
type UnavailableTime struct {
	Day    string `json:"day"`
	Period int    `json:"period"`
	Reason string `json:"reason,omitempty"`
}

// Teacher holds a teacher's name parts and availability. FullName is a
// denormalized concatenation; it is recomputed whenever the parts change
// and must never be trusted as the sole source of truth.
type Teacher struct {
	ID               string            `json:"id"`
	Title            string            `json:"title,omitempty"`
	FirstName        string            `json:"first_name"`
	LastName         string            `json:"last_name"`
	FullName         string            `json:"full_name,omitempty"`
	MaxHoursPerWeek  *int              `json:"max_hours_per_week,omitempty"`
	UnavailableTimes []UnavailableTime `json:"unavailable_times,omitempty"`
	WeekendAvailable *bool             `json:"weekend_available,omitempty"`
	AvailableRooms   []string          `json:"availableRooms,omitempty"`
}

// ComposeFullName derives the display name from the teacher's parts.
func (t Teacher) ComposeFullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{t.Title, t.FirstName, t.LastName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// SubTeacher links a teacher to a subject. Both names are denormalized at
// creation time so the UI can render the link without a join. At most one
// link may exist per (teacher_id, subject_id) pair within a sheet.
type SubTeacher struct {
	ID          string `json:"id"`
	TeacherID   string `json:"teacher_id"`
	TeacherName string `json:"teacher_name"`
	SubjectID   string `json:"subject_id"`
	SubjectName string `json:"subject_name"`
}

// Room is a teaching room.
type Room struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	RoomType string `json:"room_type,omitempty"`
	Capacity *int   `json:"capacity,omitempty"`
}

// SchoolInfo is the single source of truth for the school day. Period
// configs are derived from it, never authored independently.
type SchoolInfo struct {
	Name             string `json:"name"`
	StartTime        string `json:"startTime"`
	EndTime          string `json:"endTime"`
	MinutesPerPeriod int    `json:"minutesPerPeriod"`
}

// PeriodConfig is one derived teaching period. Time is a display label of
// the form "HH:mm - HH:mm".
type PeriodConfig struct {
	ID               int    `json:"id"`
	Time             string `json:"time"`
	MinutesPerPeriod *int   `json:"minutesPerPeriod,omitempty"`
}

// DayConfig describes one weekday column of the grid.
type DayConfig struct {
	Key              string `json:"key"`
	Label            string `json:"label"`
	Color            string `json:"color"`
	MinutesPerPeriod *int   `json:"minutesPerPeriod,omitempty"`
}

// Config bundles the school-wide settings that are saved separately from
// the sheets and fanned out across all of them.
type Config struct {
	SchoolInfo    SchoolInfo     `json:"schoolInfo"`
	PeriodConfigs []PeriodConfig `json:"periodConfigs"`
	DayConfigs    []DayConfig    `json:"dayConfigs"`
}

// Sheet is one complete timetable plus its own copies of reference data.
// Sheets are independent except for SchoolInfo/PeriodConfigs/DayConfigs,
// which are kept identical across all sheets of one owner.
type Sheet struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Grade         string         `json:"grade,omitempty"`
	Slots         []Slot         `json:"slots"`
	Subjects      []Subject      `json:"subjects"`
	Teachers      []Teacher      `json:"teachers"`
	SubTeachers   []SubTeacher   `json:"subTeachers"`
	Rooms         []Room         `json:"rooms"`
	SchoolInfo    SchoolInfo     `json:"schoolInfo"`
	PeriodConfigs []PeriodConfig `json:"periodConfigs"`
	DayConfigs    []DayConfig    `json:"dayConfigs"`
}

// DefaultRoomType is the classification backfilled onto legacy rooms.
const DefaultRoomType = "ห้องเรียน"

// DefaultSheetName is the name of the sheet created when no data exists.
const DefaultSheetName = "ตารางเรียนของฉัน"

// DefaultSchoolInfo returns the school-day settings applied to new sheets.
func DefaultSchoolInfo() SchoolInfo {
	return SchoolInfo{
		Name:             "",
		StartTime:        "08:00",
		EndTime:          "16:00",
		MinutesPerPeriod: 60,
	}
}

// DefaultDays returns the Mon-Fri weekday columns with Thai labels.
func DefaultDays() []DayConfig {
	return []DayConfig{
		{Key: "Monday", Label: "จันทร์", Color: "bg-yellow-100 border-yellow-300 text-yellow-800"},
		{Key: "Tuesday", Label: "อังคาร", Color: "bg-pink-100 border-pink-300 text-pink-800"},
		{Key: "Wednesday", Label: "พุธ", Color: "bg-green-100 border-green-300 text-green-800"},
		{Key: "Thursday", Label: "พฤหัส", Color: "bg-orange-100 border-orange-300 text-orange-800"},
		{Key: "Friday", Label: "ศุกร์", Color: "bg-blue-100 border-blue-300 text-blue-800"},
	}
}

// NewSheetID generates a time-based sheet id with a random suffix to avoid
// collisions between sheets created within the same millisecond.
func NewSheetID() string {
	var suffix [3]byte
	_, _ = rand.Read(suffix[:])
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + hex.EncodeToString(suffix[:])
}

// NewSheet creates an empty sheet with default school-wide configuration.
func NewSheet(name, grade string) Sheet {
	info := DefaultSchoolInfo()
	return Sheet{
		ID:            NewSheetID(),
		Name:          name,
		Grade:         grade,
		Slots:         []Slot{},
		Subjects:      []Subject{},
		Teachers:      []Teacher{},
		SubTeachers:   []SubTeacher{},
		Rooms:         []Room{},
		SchoolInfo:    info,
		PeriodConfigs: GeneratePeriods(info.StartTime, info.EndTime, info.MinutesPerPeriod),
		DayConfigs:    DefaultDays(),
	}
}

// DefaultSheet creates the single sheet installed when no stored data is
// found or the stored data cannot be parsed.
func DefaultSheet() Sheet {
	return NewSheet(DefaultSheetName, "")
}

// SchoolConfig extracts the sheet's copy of the school-wide settings.
func (s *Sheet) SchoolConfig() Config {
	return Config{
		SchoolInfo:    s.SchoolInfo,
		PeriodConfigs: append([]PeriodConfig(nil), s.PeriodConfigs...),
		DayConfigs:    append([]DayConfig(nil), s.DayConfigs...),
	}
}

// Clone returns a deep copy of the sheet. The persistence coordinator
// serializes snapshots while mutators keep running, so shared backing
// arrays are not acceptable.
func (s Sheet) Clone() Sheet {
	out := s
	out.Slots = append([]Slot(nil), s.Slots...)
	out.Subjects = append([]Subject(nil), s.Subjects...)
	out.Teachers = make([]Teacher, len(s.Teachers))
	for i, t := range s.Teachers {
		tc := t
		tc.UnavailableTimes = append([]UnavailableTime(nil), t.UnavailableTimes...)
		tc.AvailableRooms = append([]string(nil), t.AvailableRooms...)
		out.Teachers[i] = tc
	}
	out.SubTeachers = append([]SubTeacher(nil), s.SubTeachers...)
	out.Rooms = append([]Room(nil), s.Rooms...)
	out.PeriodConfigs = append([]PeriodConfig(nil), s.PeriodConfigs...)
	out.DayConfigs = append([]DayConfig(nil), s.DayConfigs...)
	return out
}

// CloneSheets deep-copies a sheet list.
func CloneSheets(in []Sheet) []Sheet {
	out := make([]Sheet, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}

// ConfigEqual reports whether two school config bundles are equal by value.
// Used by the coordinator to decide whether a config save is needed.
func ConfigEqual(a, b Config) bool {
	if a.SchoolInfo != b.SchoolInfo {
		return false
	}
	if len(a.PeriodConfigs) != len(b.PeriodConfigs) || len(a.DayConfigs) != len(b.DayConfigs) {
		return false
	}
	for i := range a.PeriodConfigs {
		if !periodEqual(a.PeriodConfigs[i], b.PeriodConfigs[i]) {
			return false
		}
	}
	for i := range a.DayConfigs {
		if !dayEqual(a.DayConfigs[i], b.DayConfigs[i]) {
			return false
		}
	}
	return true
}

func periodEqual(a, b PeriodConfig) bool {
	return a.ID == b.ID && a.Time == b.Time && intPtrEqual(a.MinutesPerPeriod, b.MinutesPerPeriod)
}

func dayEqual(a, b DayConfig) bool {
	return a.Key == b.Key && a.Label == b.Label && a.Color == b.Color &&
		intPtrEqual(a.MinutesPerPeriod, b.MinutesPerPeriod)
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
