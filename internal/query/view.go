package query

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/david/opportunity-finder/internal/ingest"
	"github.com/david/opportunity-finder/internal/models"
)

const phraseDateLayout = "January 2, 2006"

// View is the render-ready form of one opportunity in a result page.
type View struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	URL            string          `json:"url"`
	Source         string          `json:"source"`
	SourceURL      string          `json:"source_url"`
	Description    string          `json:"description"`
	Tags           []TagGroup      `json:"tags"`
	Status         models.Status   `json:"status"`
	Urgency        models.Urgency  `json:"urgency"`
	DaysUntil      *int            `json:"days_until"`
	Deadline       models.Deadline `json:"deadline"`
	DeadlinePhrase string          `json:"deadline_phrase"`
}

// TagGroup is the labelled tags of one category.
type TagGroup struct {
	Category models.Category `json:"category"`
	Label    string          `json:"label"`
	Tags     []TagLabel      `json:"tags"`
}

type TagLabel struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// tagLabelOverrides covers tokens title-casing gets wrong.
var tagLabelOverrides = map[string]string{
	"us_citizen":         "U.S. Citizen",
	"permanent_resident": "Permanent Resident",
	"stem":               "STEM",
	"postdoc":            "Postdoc",
	"phd":                "PhD",
}

var categoryLabels = map[models.Category]string{
	models.CategoryLevel:       "Level",
	models.CategoryCitizenship: "Citizenship",
	models.CategoryType:        "Type",
	models.CategoryField:       "Field",
	models.CategoryFunding:     "Funding",
}

// labeler turns canonical tokens into display labels. A cases.Caser keeps
// state, so each query builds its own.
type labeler struct {
	title cases.Caser
}

func newLabeler() *labeler {
	return &labeler{title: cases.Title(language.English)}
}

func (l *labeler) label(tok string) string {
	if s, ok := tagLabelOverrides[tok]; ok {
		return s
	}
	return l.title.String(strings.ReplaceAll(tok, "_", " "))
}

func (l *labeler) groups(tags models.Tags) []TagGroup {
	groups := make([]TagGroup, 0, len(models.Categories))
	for _, c := range models.Categories {
		set := tags.Get(c)
		if set.Len() == 0 {
			continue
		}
		g := TagGroup{Category: c, Label: categoryLabels[c], Tags: make([]TagLabel, 0, set.Len())}
		for _, v := range set {
			g.Tags = append(g.Tags, TagLabel{Value: v, Label: l.label(v)})
		}
		groups = append(groups, g)
	}
	return groups
}

func (l *labeler) view(opp models.Opportunity, d ingest.Decision) View {
	return View{
		ID:             opp.ID,
		Name:           opp.Name,
		URL:            opp.URL,
		Source:         opp.Source,
		SourceURL:      opp.SourceURL,
		Description:    opp.Description,
		Tags:           l.groups(opp.Tags),
		Status:         d.Status,
		Urgency:        d.Urgency,
		DaysUntil:      d.DaysUntil,
		Deadline:       opp.Deadline,
		DeadlinePhrase: DeadlinePhrase(opp, d),
	}
}

// NewView builds the view of a single opportunity as of now.
func NewView(opp models.Opportunity, now time.Time) View {
	return newLabeler().view(opp, ingest.Classify(opp.Deadline, now))
}

// DeadlinePhrase is the human-readable deadline line of a card.
func DeadlinePhrase(opp models.Opportunity, d ingest.Decision) string {
	switch opp.Deadline.Kind {
	case models.DeadlineKnown:
		when := opp.Deadline.Date.Format(phraseDateLayout)
		if d.Status == models.StatusClosed {
			return "Was due " + when
		}
		return "Due " + when
	case models.DeadlineClosed:
		return "Applications closed"
	case models.DeadlineRolling:
		return "Rolling deadline"
	default:
		if opp.DeadlineDisplay != nil && strings.TrimSpace(*opp.DeadlineDisplay) != "" {
			return strings.TrimSpace(*opp.DeadlineDisplay)
		}
		return "No deadline listed"
	}
}
