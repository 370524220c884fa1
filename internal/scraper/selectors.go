package scraper

// Selectors is the set of CSS selectors describing the schedule markup. The defaults
// match the current site; any field can be overridden from configuration when the
// markup changes.
type Selectors struct {
	Root          string `yaml:"root" json:"root"`
	DateHeader    string `yaml:"date_header" json:"date_header"`
	DataRow       string `yaml:"data_row" json:"data_row"`
	DayCell       string `yaml:"day_cell" json:"day_cell"` // direct children of a data row
	Card          string `yaml:"card" json:"card"`
	LessonType    string `yaml:"lesson_type" json:"lesson_type"`
	SubjectBlock  string `yaml:"subject_block" json:"subject_block"`
	SubjectText   string `yaml:"subject_text" json:"subject_text"`
	SubjectButton string `yaml:"subject_button" json:"subject_button"`
	SmallPrint    string `yaml:"small_print" json:"small_print"`
	Teacher       string `yaml:"teacher" json:"teacher"`
	RemoteMarker  string `yaml:"remote_marker" json:"remote_marker"`
}

// DefaultSelectors returns the selectors for the current schedule markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Root:          "div.days-schedule",
		DateHeader:    "div.table-header div.table-header-columns",
		DataRow:       "div.table-data",
		DayCell:       "div.border",
		Card:          `div[class*="shadow-md"]`,
		LessonType:    "span[title]",
		SubjectBlock:  `[class*="mb-1"]`,
		SubjectText:   `div[class*="text-left"]`,
		SubjectButton: "button",
		SmallPrint:    `p[class*="text-[10px]"]`,
		Teacher:       `p[class*="text-[12px]"]`,
		RemoteMarker:  `button[title="Удаленное занятие"]`,
	}
}

// WithDefaults returns a copy with every empty field taken from DefaultSelectors.
func (s Selectors) WithDefaults() Selectors {
	d := DefaultSelectors()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&s.Root, d.Root)
	fill(&s.DateHeader, d.DateHeader)
	fill(&s.DataRow, d.DataRow)
	fill(&s.DayCell, d.DayCell)
	fill(&s.Card, d.Card)
	fill(&s.LessonType, d.LessonType)
	fill(&s.SubjectBlock, d.SubjectBlock)
	fill(&s.SubjectText, d.SubjectText)
	fill(&s.SubjectButton, d.SubjectButton)
	fill(&s.SmallPrint, d.SmallPrint)
	fill(&s.Teacher, d.Teacher)
	fill(&s.RemoteMarker, d.RemoteMarker)
	return s
}
