package naming

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/sitesync/internal/models"
)

func TestNextSequence_Empty(t *testing.T) {
	s := NextSequence(nil)
	assert.Equal(t, Sequence{Seq: 1, Sub: 1}, s)
}

func TestNextSequence_NoParseableNames(t *testing.T) {
	s := NextSequence([]string{"readme.txt", "IMG_0001"})
	assert.Equal(t, Sequence{Seq: 1, Sub: 1}, s)
}

func TestNextSequence_IncrementsSub(t *testing.T) {
	s := NextSequence([]string{"North Yard 7312 Fence 1.1_120000.jpg"})
	assert.Equal(t, Sequence{Seq: 1, Sub: 2}, s)
}

func TestNextSequence_TakesLexicographicMax(t *testing.T) {
	existing := []string{
		"Site 1 Fence 2.1_090000.jpg",
		"Site 1 Fence 1.9_080000.jpg",
		"Site 1 Fence 2.3_100000.jpg",
		"Site 1 Fence 2.2_095900.jpg",
	}
	s := NextSequence(existing)
	assert.Equal(t, Sequence{Seq: 2, Sub: 4}, s)
}

func TestNextSequence_MixedParseable(t *testing.T) {
	existing := []string{
		"notes.md",
		"Site 1 Fence 3.1_090000",
	}
	s := NextSequence(existing)
	assert.Equal(t, Sequence{Seq: 3, Sub: 2}, s)
}

func TestParseSequence_Variants(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Sequence
		ok   bool
	}{
		{"with time and ext", "Site 42 Gate 1.2_120000.jpg", Sequence{1, 2}, true},
		{"with time only", "Site 42 Gate 1.2_120000", Sequence{1, 2}, true},
		{"with ext only", "Site 42 Gate 4.10.png", Sequence{4, 10}, true},
		{"bare pair", "Site 42 Gate 12.3", Sequence{12, 3}, true},
		{"no pair", "Site 42 Gate", Sequence{}, false},
		{"version-like prefix is not trailing", "2.0 release notes", Sequence{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseSequence(tt.in)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestBuildFilename(t *testing.T) {
	at := time.Date(2025, 6, 1, 14, 25, 1, 0, time.UTC)
	got := BuildFilename("North Yard", "7312", "Overall Compound", Sequence{2, 3}, at)
	assert.Equal(t, "North Yard 7312 Overall Compound 2.3_142501", got)
}

func TestResolveRequirement_LongestNameWins(t *testing.T) {
	catalog := []models.Requirement{
		{ID: "r1", Name: "Overall Compound"},
		{ID: "r2", Name: "Overall Compound 1"},
	}

	req, ok := ResolveRequirement("North Yard 7312 Overall Compound 1 1.1_120000.jpg", catalog)
	require.True(t, ok)
	assert.Equal(t, "r2", req.ID)

	// The shorter name still matches when it is the actual requirement.
	req, ok = ResolveRequirement("North Yard 7312 Overall Compound 2.1_120000.jpg", catalog)
	require.True(t, ok)
	assert.Equal(t, "r1", req.ID)
}

func TestResolveRequirement_RequiresDigitAfterName(t *testing.T) {
	catalog := []models.Requirement{{ID: "r1", Name: "Fence"}}

	_, ok := ResolveRequirement("Site 42 Fence Detail.jpg", catalog)
	assert.False(t, ok)

	req, ok := ResolveRequirement("Site 42 Fence 1.1_120000.jpg", catalog)
	require.True(t, ok)
	assert.Equal(t, "r1", req.ID)
}

func TestResolveRequirement_NoMatch(t *testing.T) {
	catalog := []models.Requirement{{ID: "r1", Name: "Gate"}}
	_, ok := ResolveRequirement("Site 42 Fence 1.1_120000.jpg", catalog)
	assert.False(t, ok)
}

func TestIsImageFile(t *testing.T) {
	assert.True(t, IsImageFile("a 1.1_120000.jpg"))
	assert.True(t, IsImageFile("a 1.1_120000.PNG"))
	assert.False(t, IsImageFile("questionnaire.json"))
	assert.False(t, IsImageFile("a 1.1_120000"))
}
