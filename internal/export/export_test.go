package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/kruplan/kruplan/internal/schedule"
)

func testSheet() schedule.Sheet {
	sheet := schedule.NewSheet("ม.1/1", "ม.1")
	roomID := "room-1"
	sheet.Rooms = []schedule.Room{{ID: roomID, Name: "501", RoomType: schedule.DefaultRoomType}}
	sheet.Slots = []schedule.Slot{
		{Day: "Monday", Period: 1, SubjectCode: "ค21101", SubjectName: "คณิตศาสตร์", RoomID: &roomID},
		{Day: "Friday", Period: 8, SubjectCode: "พ21101", SubjectName: "สุขศึกษา"},
	}
	return sheet
}

func TestMarkdownGrid(t *testing.T) {
	out := Markdown(testSheet())

	require.Contains(t, out, "# ม.1/1")
	require.Contains(t, out, "ระดับชั้น: ม.1")
	require.Contains(t, out, "ค21101 (501)")
	require.Contains(t, out, "พ21101")

	// One table row per configured day.
	lines := strings.Split(strings.TrimSpace(out), "\n")
	var dayRows int
	for _, line := range lines {
		for _, day := range schedule.DefaultDays() {
			if strings.HasPrefix(line, "| "+day.Label+" |") {
				dayRows++
			}
		}
	}
	require.Equal(t, len(schedule.DefaultDays()), dayRows)
}

func TestMarkdownHeaderHasOneColumnPerPeriod(t *testing.T) {
	sheet := testSheet()
	out := Markdown(sheet)

	header := ""
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "| วัน |") {
			header = line
			break
		}
	}
	require.NotEmpty(t, header)
	require.Equal(t, len(sheet.PeriodConfigs), strings.Count(header, "คาบ"))
}

func TestHTMLRendersTable(t *testing.T) {
	sheet := testSheet()
	page, err := HTML(sheet)
	require.NoError(t, err)

	doc, err := html.Parse(bytes.NewReader(page))
	require.NoError(t, err)

	var tables, rows int
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "table":
				tables++
			case "tr":
				rows++
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	require.Equal(t, 1, tables)
	// Header row plus one row per day.
	require.Equal(t, 1+len(sheet.DayConfigs), rows)
	require.Contains(t, string(page), "<title>ม.1/1</title>")
}
