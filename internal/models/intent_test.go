package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIntent(t *testing.T) {
	intent, ok := ParseIntent(" Update_Assignment ")
	assert.True(t, ok)
	assert.Equal(t, IntentUpdateAssignment, intent)

	_, ok = ParseIntent("launch_rocket")
	assert.False(t, ok)
}

func TestIntentMutates(t *testing.T) {
	assert.True(t, IntentDeleteAssignment.Mutates())
	assert.False(t, IntentGetInfo.Mutates())
	assert.False(t, IntentConversation.Mutates())
}

func TestIntentVerb(t *testing.T) {
	assert.Equal(t, "update assignment", IntentUpdateAssignment.Verb())
	assert.Equal(t, "get submission count", IntentGetSubmissionCount.Verb())
}

func TestParamsAccessors(t *testing.T) {
	p := Params{
		"assignment_name": "  ",
		"title":           "Homework 1",
		"points":          "50 pts",
		"total":           float64(80),
		"publish":         "yes",
		"course":          nil,
	}

	assert.Equal(t, "Homework 1", p.String("assignment_id", "assignment_name", "title"))
	assert.Equal(t, "", p.String("course"))

	points, ok := p.Float("points")
	assert.True(t, ok)
	assert.Equal(t, 50.0, points)

	total, ok := p.Float("missing", "total")
	assert.True(t, ok)
	assert.Equal(t, 80.0, total)

	assert.True(t, p.Bool("publish"))
	assert.False(t, p.Bool("course"))
	assert.True(t, p.Has("points"))
	assert.False(t, p.Has("assignment_name", "course"))
}

func TestPatchEmpty(t *testing.T) {
	assert.True(t, AssignmentPatch{}.Empty())
	title := "x"
	assert.False(t, AssignmentPatch{Title: &title}.Empty())
	assert.True(t, CoursePatch{}.Empty())
}

func TestSupabaseClaimsFullName(t *testing.T) {
	c := &SupabaseClaims{UserMetadata: map[string]interface{}{"name": "Ms. Rivera"}}
	assert.Equal(t, "Ms. Rivera", c.FullName())
	assert.Equal(t, "", (*SupabaseClaims)(nil).FullName())
}
