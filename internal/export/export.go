// Package export renders a schedule sheet as a Markdown grid or a
// standalone HTML page. Both the CLI export command and the HTTP API
// serve through it.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/kruplan/kruplan/internal/fault"
	"github.com/kruplan/kruplan/internal/schedule"
)

// Markdown renders the sheet as a days-by-periods table. Each cell
// holds the subject code with the room name when one is assigned.
func Markdown(sheet schedule.Sheet) string {
	var b strings.Builder

	b.WriteString("# " + sheet.Name + "\n\n")
	if sheet.Grade != "" {
		b.WriteString(fmt.Sprintf("ระดับชั้น: %s\n\n", sheet.Grade))
	}

	slots := make(map[string]map[int]schedule.Slot, len(sheet.DayConfigs))
	for _, slot := range sheet.Slots {
		if slots[slot.Day] == nil {
			slots[slot.Day] = make(map[int]schedule.Slot)
		}
		slots[slot.Day][slot.Period] = slot
	}
	rooms := make(map[string]string, len(sheet.Rooms))
	for _, room := range sheet.Rooms {
		rooms[room.ID] = room.Name
	}

	b.WriteString("| วัน |")
	for _, p := range sheet.PeriodConfigs {
		fmt.Fprintf(&b, " คาบ %d<br>%s |", p.ID, p.Time)
	}
	b.WriteString("\n|---|")
	for range sheet.PeriodConfigs {
		b.WriteString("---|")
	}
	b.WriteString("\n")

	for _, day := range sheet.DayConfigs {
		fmt.Fprintf(&b, "| %s |", day.Label)
		for _, p := range sheet.PeriodConfigs {
			slot, ok := slots[day.Key][p.ID]
			if !ok {
				b.WriteString("  |")
				continue
			}
			cell := slot.SubjectCode
			if slot.RoomID != nil {
				if name, ok := rooms[*slot.RoomID]; ok && name != "" {
					cell += " (" + name + ")"
				}
			}
			fmt.Fprintf(&b, " %s |", cell)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// HTML converts the Markdown rendering into a standalone HTML page.
func HTML(sheet schedule.Sheet) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))

	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(sheet)), &body); err != nil {
		return nil, fault.InternalError("rendering timetable HTML").
			WithCause(err).
			WithContext("sheet_id", sheet.ID).
			Build()
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html lang=\"th\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n", sheet.Name)
	page.WriteString("<style>table{border-collapse:collapse}th,td{border:1px solid #999;padding:4px 8px}</style>\n")
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}
