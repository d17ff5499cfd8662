package fossil

import (
	"fmt"

	"github.com/nhle/fossilsync/internal/model"
	"github.com/nhle/fossilsync/internal/render"
)

// UDA names declared by the Fossil service.
const (
	UDASummary     = "fossilsummary"
	UDAURL         = "fossilurl"
	UDADescription = "fossildescription"
	UDAForeignID   = "fossilid"
)

// UDAs declares the custom task fields carried by Fossil issues.
func UDAs() []model.UDA {
	return []model.UDA{
		{Name: UDASummary, Type: "string", Label: "Fossil Summary"},
		{Name: UDAURL, Type: "string", Label: "Fossil URL"},
		{Name: UDADescription, Type: "string", Label: "Fossil Description"},
		{Name: UDAForeignID, Type: "string", Label: "Fossil Issue ID"},
	}
}

// priorityMap translates tracker priority names to task priorities.
var priorityMap = map[string]model.Priority{
	"Trivial":  model.PriorityLow,
	"Minor":    model.PriorityLow,
	"Major":    model.PriorityMedium,
	"Critical": model.PriorityHigh,
	"Blocker":  model.PriorityHigh,
}

// descriptionMarkup prefixes generated descriptions so they can be told
// apart from hand-written tasks.
const descriptionMarkup = "(bw)"

// Extra carries issue data supplied by the caller rather than read from
// the ticket row.
type Extra struct {
	Annotations []string
}

// NormalizerConfig controls how tickets become issues.
type NormalizerConfig struct {
	// ProjectName is the task project. When empty, the project is taken
	// from a PROJECT-NUMBER ticket key.
	ProjectName string

	// DefaultPriority is used when the ticket priority is absent or not
	// in the priority table.
	DefaultPriority model.Priority

	// ImportLabelsAsTags enables tag derivation from ticket labels.
	ImportLabelsAsTags bool

	// LabelTemplate renders one tag per label.
	LabelTemplate *render.Template

	// DescriptionLength truncates the title in generated descriptions;
	// zero keeps the whole title.
	DescriptionLength int

	// InlineLinks appends the ticket URL to generated descriptions.
	InlineLinks bool
}

// Normalizer turns report tickets into issues. It performs no I/O.
type Normalizer struct {
	cfg NormalizerConfig
}

// NewNormalizer creates a Normalizer. A nil LabelTemplate defaults to
// "{{label}}".
func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	if cfg.LabelTemplate == nil {
		cfg.LabelTemplate = render.MustParse(DefaultLabelTemplate)
	}
	return &Normalizer{cfg: cfg}
}

// Normalize converts one ticket into an issue. Errors come only from
// label template rendering.
func (n *Normalizer) Normalize(t Ticket, extra Extra) (model.Issue, error) {
	tags, err := n.tags(t)
	if err != nil {
		return model.Issue{}, fmt.Errorf("ticket %s: %w", t.Number, err)
	}

	annotations := extra.Annotations
	if annotations == nil {
		annotations = []string{}
	}

	return model.Issue{
		Project:     n.project(t),
		Priority:    MapPriority(t.Priority, n.cfg.DefaultPriority),
		Tags:        tags,
		Annotations: annotations,
		Description: n.description(t),
		UDAs: map[string]string{
			UDASummary:     t.Title,
			UDAURL:         t.URL,
			UDADescription: t.Description,
			UDAForeignID:   t.Number,
		},
		UniqueKey: t.URL,
	}, nil
}

// tags renders the label template once per label, in label order.
func (n *Normalizer) tags(t Ticket) ([]string, error) {
	tags := []string{}
	if !n.cfg.ImportLabelsAsTags {
		return tags, nil
	}

	env := make(map[string]any, len(t.Columns)+1)
	for k, v := range t.Columns {
		env[k] = v
	}

	for _, label := range t.Labels {
		env["label"] = label
		tag, err := n.cfg.LabelTemplate.Render(env)
		if err != nil {
			return nil, fmt.Errorf(
				"rendering label_template %q: %w", n.cfg.LabelTemplate, err,
			)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func (n *Normalizer) project(t Ticket) string {
	if n.cfg.ProjectName != "" {
		return n.cfg.ProjectName
	}
	project, _ := SplitKey(t.Number)
	return project
}

// description builds "(bw)Is#<number> - <title> .. <url>".
func (n *Normalizer) description(t Ticket) string {
	_, number := SplitKey(t.Number)

	title := t.Title
	if n.cfg.DescriptionLength > 0 {
		if runes := []rune(title); len(runes) > n.cfg.DescriptionLength {
			title = string(runes[:n.cfg.DescriptionLength])
		}
	}

	desc := fmt.Sprintf("%sIs#%s - %s", descriptionMarkup, number, title)
	if n.cfg.InlineLinks && t.URL != "" {
		desc += " .. " + t.URL
	}
	return desc
}

// MapPriority maps a tracker priority to a task priority, falling back to
// def. A structured value is reduced to its "name" first.
func MapPriority(value any, def model.Priority) model.Priority {
	if p, ok := priorityMap[priorityName(value)]; ok {
		return p
	}
	return def
}

func priorityName(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any:
		return priorityName(v["name"])
	case map[string]string:
		return v["name"]
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
