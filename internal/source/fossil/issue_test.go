package fossil

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/fossilsync/internal/model"
	"github.com/nhle/fossilsync/internal/render"
)

func ticketFromRow(t *testing.T, header, row string) Ticket {
	t.Helper()
	tickets, err := ParseReport(header+"\n"+row+"\n", testBaseURL)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	return tickets[0]
}

type stringerPriority string

func (p stringerPriority) String() string { return string(p) }

func TestMapPriority(t *testing.T) {
	tests := []struct {
		name  string
		value any
		def   model.Priority
		want  model.Priority
	}{
		{name: "blocker", value: "Blocker", def: model.PriorityLow, want: model.PriorityHigh},
		{name: "critical", value: "Critical", def: model.PriorityLow, want: model.PriorityHigh},
		{name: "major", value: "Major", def: model.PriorityLow, want: model.PriorityMedium},
		{name: "minor", value: "Minor", def: model.PriorityHigh, want: model.PriorityLow},
		{name: "trivial", value: "Trivial", def: model.PriorityHigh, want: model.PriorityLow},
		{name: "unset uses default", value: nil, def: model.PriorityMedium, want: model.PriorityMedium},
		{name: "empty uses default", value: "", def: model.PriorityHigh, want: model.PriorityHigh},
		{name: "unknown uses default", value: "Immediate", def: model.PriorityLow, want: model.PriorityLow},
		{name: "case sensitive", value: "blocker", def: model.PriorityMedium, want: model.PriorityMedium},
		{name: "structured any", value: map[string]any{"name": "Blocker"}, def: model.PriorityLow, want: model.PriorityHigh},
		{name: "structured string", value: map[string]string{"name": "Minor"}, def: model.PriorityHigh, want: model.PriorityLow},
		{name: "structured without name", value: map[string]any{"id": "1"}, def: model.PriorityMedium, want: model.PriorityMedium},
		{name: "stringer", value: stringerPriority("Major"), def: model.PriorityLow, want: model.PriorityMedium},
		{name: "non string", value: 3, def: model.PriorityHigh, want: model.PriorityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapPriority(tt.value, tt.def))
		})
	}
}

func TestNormalize_Fields(t *testing.T) {
	tk := ticketFromRow(t,
		"#\tstatus\ttitle\tpriority\tdescription",
		"a1b2c3\tOpen\tCrash when saving a very long document to disk\tCritical\tSteps to reproduce",
	)

	n := NewNormalizer(NormalizerConfig{
		ProjectName:       "repo",
		DefaultPriority:   model.PriorityMedium,
		DescriptionLength: 35,
		InlineLinks:       true,
	})

	issue, err := n.Normalize(tk, Extra{})
	require.NoError(t, err)

	url := testBaseURL + "tktview/a1b2c3"
	assert.Equal(t, "repo", issue.Project)
	assert.Equal(t, model.PriorityHigh, issue.Priority)
	assert.Equal(t, url, issue.UniqueKey)
	assert.Equal(t, "(bw)Is#a1b2c3 - Crash when saving a very long docum .. "+url, issue.Description)
	assert.Empty(t, issue.Tags)
	assert.NotNil(t, issue.Tags)
	assert.Empty(t, issue.Annotations)
	assert.Equal(t, map[string]string{
		UDASummary:     "Crash when saving a very long document to disk",
		UDAURL:         url,
		UDADescription: "Steps to reproduce",
		UDAForeignID:   "a1b2c3",
	}, issue.UDAs)
}

func TestNormalize_DescriptionOptions(t *testing.T) {
	tk := ticketFromRow(t, "#\tstatus\ttitle", "abc\tOpen\tShort")

	n := NewNormalizer(NormalizerConfig{DefaultPriority: model.PriorityLow})
	issue, err := n.Normalize(tk, Extra{})
	require.NoError(t, err)
	assert.Equal(t, "(bw)Is#abc - Short", issue.Description)
}

func TestNormalize_DefaultPriorityWhenMissing(t *testing.T) {
	tk := ticketFromRow(t, "#\tstatus\ttitle", "abc\tOpen\tNo priority column")

	for _, def := range []model.Priority{model.PriorityLow, model.PriorityHigh} {
		issue, err := NewNormalizer(NormalizerConfig{DefaultPriority: def}).Normalize(tk, Extra{})
		require.NoError(t, err)
		assert.Equal(t, def, issue.Priority)
	}
}

func TestNormalize_ProjectFromKey(t *testing.T) {
	tk := ticketFromRow(t, "#\tstatus\ttitle", "ABC-42\tOpen\tKeyed ticket")

	issue, err := NewNormalizer(NormalizerConfig{
		DefaultPriority: model.PriorityMedium,
	}).Normalize(tk, Extra{})
	require.NoError(t, err)

	assert.Equal(t, "ABC", issue.Project)
	assert.Equal(t, "(bw)Is#42 - Keyed ticket", issue.Description)
	assert.Equal(t, "ABC-42", issue.UDAs[UDAForeignID])
}

func TestNormalize_SameURLSameKey(t *testing.T) {
	a := ticketFromRow(t, "#\tstatus\ttitle", "abc\tOpen\tFirst title")
	b := ticketFromRow(t, "#\tstatus\ttitle\tpriority", "abc\tOpen\tEdited title\tMajor")

	n := NewNormalizer(NormalizerConfig{DefaultPriority: model.PriorityLow})
	ia, err := n.Normalize(a, Extra{})
	require.NoError(t, err)
	ib, err := n.Normalize(b, Extra{})
	require.NoError(t, err)

	assert.Equal(t, ia.UniqueKey, ib.UniqueKey)
	assert.NotEqual(t, ia.Description, ib.Description)
}

func TestNormalize_Tags(t *testing.T) {
	tk := ticketFromRow(t, "#\tstatus\ttitle\tlabels", "abc\tOpen\tLabelled\tbug,ui")

	tests := []struct {
		name     string
		enabled  bool
		template string
		want     []string
	}{
		{name: "disabled", enabled: false, template: "{{label}}", want: []string{}},
		{name: "plain", enabled: true, template: "{{label}}", want: []string{"bug", "ui"}},
		{name: "prefixed", enabled: true, template: "fossil_{{label}}", want: []string{"fossil_bug", "fossil_ui"}},
		{name: "record context", enabled: true, template: "{{status}}_{{label}}", want: []string{"Open_bug", "Open_ui"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNormalizer(NormalizerConfig{
				DefaultPriority:    model.PriorityMedium,
				ImportLabelsAsTags: tt.enabled,
				LabelTemplate:      render.MustParse(tt.template),
			})

			issue, err := n.Normalize(tk, Extra{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, issue.Tags)
		})
	}
}

func TestNormalize_TemplateErrorSurfaces(t *testing.T) {
	tk := ticketFromRow(t, "#\tstatus\ttitle\tlabels", "abc\tOpen\tLabelled\tbug")

	n := NewNormalizer(NormalizerConfig{
		DefaultPriority:    model.PriorityMedium,
		ImportLabelsAsTags: true,
		LabelTemplate:      render.MustParse("{{ milestone }}"),
	})

	_, err := n.Normalize(tk, Extra{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "label_template")
}

func TestNormalize_AnnotationsPassThrough(t *testing.T) {
	tk := ticketFromRow(t, "#\tstatus\ttitle", "abc\tOpen\tAnnotated")

	notes := []string{"first note", "second note"}
	issue, err := NewNormalizer(NormalizerConfig{
		DefaultPriority: model.PriorityMedium,
	}).Normalize(tk, Extra{Annotations: notes})
	require.NoError(t, err)
	assert.Equal(t, notes, issue.Annotations)
}

func TestUDAs(t *testing.T) {
	udas := UDAs()
	require.Len(t, udas, 4)

	labels := make(map[string]string)
	for _, u := range udas {
		assert.Equal(t, "string", u.Type)
		labels[u.Name] = u.Label
	}
	assert.Equal(t, map[string]string{
		"fossilsummary":     "Fossil Summary",
		"fossilurl":         "Fossil URL",
		"fossildescription": "Fossil Description",
		"fossilid":          "Fossil Issue ID",
	}, labels)
}

func ExampleSplitKey() {
	project, number := SplitKey("ABC-42")
	fmt.Println(project, number)
	// Output: ABC 42
}
