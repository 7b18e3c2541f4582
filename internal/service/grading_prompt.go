package service

import (
	"fmt"
	"strings"
)

const gradingSystemPrompt = `You are Mylo's grading assistant. You evaluate one student submission against the assignment and its rubric.

How to grade
- The rubric is the scoring framework. Every point you award or deduct must map to a rubric criterion.
- For each criterion locate where the submission addresses it, judge correctness and completeness, award points, and explain the decision with evidence from the submission.
- Award partial credit for partially correct work. Be stricter on core content than on formatting.
- Name every required element that is missing.
- Feedback must quote or reference the student's actual work. Never write generic praise such as "good job".
- Recommendations must tell the student exactly what to change.

Reply with one JSON object in this shape:
{
  "grade": <points out of the maximum>,
  "percentage": <grade as a percentage>,
  "feedback": {
    "overall": "<paragraph of specific feedback>",
    "strengths": ["<strength with example>"],
    "areas_for_improvement": ["<improvement with example>"],
    "missing_elements": ["<missing requirement>"],
    "specific_comments": [{"section": "<rubric section>", "comment": "<feedback>", "points_awarded": <points>, "points_possible": <points>}]
  },
  "rubric_breakdown": [
    {"criteria": "<rubric criterion>", "points_earned": <points>, "max_points": <points>, "justification": "<why>", "found_in_submission": <true|false>, "quality_assessment": "<quality of execution>"}
  ],
  "confidence_level": <0.0 to 1.0>,
  "recommendations": ["<actionable recommendation>"]
}`

func buildGradingPrompt(in GradingInput, maxPoints float64) string {
	description := in.Description
	if strings.TrimSpace(description) == "" {
		description = "N/A"
	}
	title := in.Title
	if strings.TrimSpace(title) == "" {
		title = "N/A"
	}

	var b strings.Builder
	b.WriteString("Grade the student submission below.\n\n")
	b.WriteString("=== ASSIGNMENT ===\n")
	fmt.Fprintf(&b, "Title: %s\n", title)
	fmt.Fprintf(&b, "Description: %s\n", description)
	fmt.Fprintf(&b, "Maximum points: %s\n\n", formatPoints(maxPoints))

	if rubric := strings.TrimSpace(in.Rubric); rubric != "" {
		b.WriteString("=== RUBRIC ===\n")
		b.WriteString("This rubric holds the complete breakdown of marks. Base every point allocation on it.\n\n")
		b.WriteString(rubric)
		b.WriteString("\n\n")
	} else {
		b.WriteString("=== NO RUBRIC PROVIDED ===\n")
		b.WriteString("Derive reasonable criteria from the assignment description and usual academic standards for this level, ")
		b.WriteString("list them in rubric_breakdown, and make their max_points add up to the maximum.\n\n")
	}

	b.WriteString("=== STUDENT SUBMISSION ===\n")
	b.WriteString(in.Content)
	b.WriteString("\n\n=== INSTRUCTIONS ===\n")
	b.WriteString("1. Map each rubric criterion to the matching part of the submission.\n")
	b.WriteString("2. Assess quality as well as presence.\n")
	b.WriteString("3. List rubric requirements that are missing or inadequate.\n")
	b.WriteString("4. Quote or point to specific content in every comment.\n")
	fmt.Fprintf(&b, "5. Award at most %s points in total.\n", formatPoints(maxPoints))
	b.WriteString("6. Give recommendations the student can act on.\n\n")
	b.WriteString("Answer with the JSON object described in your instructions.")
	return b.String()
}
