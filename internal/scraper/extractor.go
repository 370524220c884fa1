package scraper

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/lkschedule/schedule-sync/internal/event"
	"github.com/lkschedule/schedule-sync/internal/logger"
)

const (
	// DaysPerWeek is the number of date columns a well-formed week page carries.
	DaysPerWeek = 7

	subgroupPrefix = "Подгруппы"
	remoteLine     = "Формат: дистанционно"
)

// Result is the outcome of extracting one week page.
type Result struct {
	Events    []*event.Event `json:"events"`
	Anomalies []Anomaly      `json:"anomalies,omitempty"`
}

func (r *Result) anomaly(kind AnomalyKind, format string, args ...interface{}) {
	a := Anomaly{Kind: kind, Message: fmt.Sprintf(format, args...)}
	r.Anomalies = append(r.Anomalies, a)

	fields := logger.Fields{"kind": string(kind)}
	if kind == AnomalyNoTimes {
		logger.Debug(a.Message, fields)
		return
	}
	logger.Warn(a.Message, fields)
}

// Extractor converts schedule page markup into events.
type Extractor struct {
	sel Selectors
	loc *time.Location

	subject    Chain
	teacher    Chain
	lessonType Chain
}

// NewExtractor creates an Extractor using sel (empty fields fall back to the
// defaults) and interpreting wall-clock times in loc.
func NewExtractor(sel Selectors, loc *time.Location) *Extractor {
	sel = sel.WithDefaults()
	if loc == nil {
		loc = time.Local
	}
	return &Extractor{
		sel: sel,
		loc: loc,
		subject: Chain{
			Within(sel.SubjectBlock, Chain{
				TextOf(sel.SubjectText),
				TextOf(sel.SubjectButton),
				OwnText(),
			}),
		},
		teacher:    Chain{TextOf(sel.Teacher)},
		lessonType: Chain{TextOf(sel.LessonType)},
	}
}

// Parse reads a week page from r.
func (x *Extractor) Parse(r io.Reader) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return x.ParseDocument(doc)
}

// ParseString is Parse for an in-memory page.
func (x *Extractor) ParseString(page string) (*Result, error) {
	return x.Parse(strings.NewReader(page))
}

// ParseDocument extracts events from an already parsed page. Events are returned in
// document order: row by row, column by column, card by card.
func (x *Extractor) ParseDocument(doc *goquery.Document) (*Result, error) {
	root := doc.Find(x.sel.Root).First()
	if root.Length() == 0 {
		return nil, &ParseError{Reason: fmt.Sprintf("schedule root %q not found", x.sel.Root)}
	}

	res := &Result{Events: make([]*event.Event, 0)}

	dates, resolved := x.headerDates(root, res)
	if resolved == 0 {
		return nil, &ParseError{Reason: "no dates found in schedule header"}
	}

	ids := event.NewIDAllocator()
	root.Find(x.sel.DataRow).Each(func(row int, rowSel *goquery.Selection) {
		cells := rowSel.ChildrenFiltered(x.sel.DayCell)
		if cells.Length() != len(dates) {
			res.anomaly(AnomalyColumnCount, "row %d has %d day columns, header has %d dates", row, cells.Length(), len(dates))
		}

		cells.Each(func(col int, cell *goquery.Selection) {
			if col >= len(dates) || dates[col].IsZero() {
				return
			}
			cell.Find(x.sel.Card).Each(func(_ int, card *goquery.Selection) {
				if evt := x.parseCard(card, dates[col], ids, res); evt != nil {
					res.Events = append(res.Events, evt)
				}
			})
		})
	})

	return res, nil
}

// headerDates returns one date per header column, keeping column positions: a header
// without a usable date yields the zero time and its column is skipped.
func (x *Extractor) headerDates(root *goquery.Selection, res *Result) (dates []time.Time, resolved int) {
	headers := root.Find(x.sel.DateHeader)

	dates = make([]time.Time, headers.Length())
	headers.Each(func(i int, h *goquery.Selection) {
		text := nodeText(h)
		token := FindRussianDate(text)
		if token == "" {
			res.anomaly(AnomalyDateParse, "no date in header %q", text)
			return
		}
		d, err := ParseRussianDate(token, x.loc)
		if err != nil {
			res.anomaly(AnomalyDateParse, "header %q: %v", text, err)
			return
		}
		dates[i] = d
		resolved++
	})

	if resolved != DaysPerWeek && resolved > 0 {
		res.anomaly(AnomalyDateCount, "expected %d dates in header, found %d", DaysPerWeek, resolved)
	}
	return dates, resolved
}

func (x *Extractor) parseCard(card *goquery.Selection, day time.Time, ids *event.IDAllocator, res *Result) *event.Event {
	clocks := FindClockTimes(nodeText(card))
	if len(clocks) < 2 {
		res.anomaly(AnomalyNoTimes, "skipping card on %s without start and end time", day.Format("2006-01-02"))
		return nil
	}
	startClock, endClock := clocks[0], clocks[1]

	start, err := CombineDateClock(day, startClock, x.loc)
	if err != nil {
		res.anomaly(AnomalyTimeParse, "card on %s: %v", day.Format("2006-01-02"), err)
		return nil
	}
	end, err := CombineDateClock(day, endClock, x.loc)
	if err != nil {
		res.anomaly(AnomalyTimeParse, "card on %s: %v", day.Format("2006-01-02"), err)
		return nil
	}

	title, ok := x.subject.First(card)
	if !ok {
		title = event.UntitledLesson
	}
	title = strings.TrimSpace(title)

	if !end.After(start) {
		res.anomaly(AnomalyTimeOrder, "%q on %s ends at %s, not after start %s", title, day.Format("2006-01-02"), endClock, startClock)
	}

	location, extras, subgroups := x.smallPrint(card)
	lessonType, _ := x.lessonType.First(card)
	teacher, _ := x.teacher.First(card)
	remote := card.Find(x.sel.RemoteMarker).Length() > 0

	key := event.SourceKey(day, startClock, endClock, title, location)
	return &event.Event{
		Title:       title,
		Start:       start,
		End:         end,
		Location:    location,
		Description: describe(lessonType, teacher, subgroups, remote, extras),
		SourceID:    ids.Next(key),
	}
}

// smallPrint splits the card's small-print lines into the location (first plain line),
// the remaining plain lines and the subgroup lines.
func (x *Extractor) smallPrint(card *goquery.Selection) (location string, extras, subgroups []string) {
	card.Find(x.sel.SmallPrint).Each(func(_ int, p *goquery.Selection) {
		text := nodeText(p)
		switch {
		case text == "":
		case strings.HasPrefix(text, subgroupPrefix):
			subgroups = append(subgroups, text)
		case location == "":
			location = text
		default:
			extras = append(extras, text)
		}
	})
	return location, extras, subgroups
}

func describe(lessonType, teacher string, subgroups []string, remote bool, extras []string) string {
	var lines []string
	if lessonType != "" {
		lines = append(lines, "Тип: "+lessonType)
	}
	if teacher != "" {
		lines = append(lines, "Преподаватель: "+teacher)
	}
	for _, sg := range subgroups {
		lines = append(lines, strings.TrimSpace(strings.ReplaceAll(sg, subgroupPrefix+":", "Подгруппа:")))
	}
	if remote {
		lines = append(lines, remoteLine)
	}
	lines = append(lines, extras...)
	return strings.Join(lines, "\n")
}
