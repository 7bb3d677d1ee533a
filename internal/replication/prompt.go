package replication

import (
	"fmt"
	"strings"
)

const generatorSystemPrompt = `You are a research replication engineer. Given a task and material from a
research paper, write ONE self-contained, directly executable script that
reproduces the paper's experimental method as faithfully as the material
allows.

Rules:
- The script must run as-is, with no arguments, no external files and no
  network access.
- Where the paper is underspecified, make minimal conservative assumptions
  and document every assumption in the explanation field only. Never put
  assumption prose inside the code.
- The script must print a replication report containing: the parameters used,
  the random seed and a note on determinism, environment and package
  versions, and the comparison numbers needed to judge the paper's claims.
- The report must end with a single line of the form
  REPLICATION_SUMMARY <json> so the outcome is machine-parseable.
Respond with a single JSON object with exactly the fields code, language and
explanation.`

const judgeSystemPrompt = `You are a strict replication judge. You see only the captured output of a
program that claims to replicate a paper's experiment. Decide whether a third
party could assess replicability from this output alone. If they could not,
enumerate precisely which additional printed evidence is required and which
changes to the program would produce it.
Respond with a single JSON object with exactly the fields sufficient,
missing, rationale and requested_changes.`

// Truncate keeps the first budget characters of text and appends an explicit
// marker with the omitted count. Truncation is never silent.
func Truncate(text string, budget int) string {
	if budget <= 0 || len(text) <= budget {
		return text
	}
	return fmt.Sprintf("%s\n[truncated: %d characters omitted]", text[:budget], len(text)-budget)
}

// buildSuggestPrompt assembles the generator user message. On iteration 0 it
// asks for a best first attempt; afterwards it carries the previous code and
// the last failure or insufficiency context.
func buildSuggestPrompt(in SuggestInput, paperBudget int) string {
	var b strings.Builder

	b.WriteString("Task:\n")
	b.WriteString(strings.TrimSpace(in.Task))
	b.WriteString("\n")

	if strings.TrimSpace(in.PaperText) != "" {
		b.WriteString("\nPaper text:\n")
		b.WriteString(Truncate(in.PaperText, paperBudget))
		b.WriteString("\n")
	}

	if strings.TrimSpace(in.MethodText) != "" {
		b.WriteString("\nMethod summary (secondary to the paper text; when they conflict, the paper text wins):\n")
		b.WriteString(in.MethodText)
		b.WriteString("\n")
	}

	if in.Iteration == 0 {
		b.WriteString("\nThis is the first attempt. Produce your best complete replication script.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "\nPrevious attempt (iteration %d):\n", in.Iteration-1)
	if in.Previous != nil {
		b.WriteString("```\n")
		b.WriteString(strings.TrimRight(in.Previous.Code, "\n"))
		b.WriteString("\n```\n")
	}
	if strings.TrimSpace(in.LastError) != "" {
		b.WriteString("\nIt failed or its output was judged insufficient:\n")
		b.WriteString(in.LastError)
		b.WriteString("\n")
	}
	b.WriteString("\nFix the root cause and return a corrected, complete script.\n")
	return b.String()
}

// buildAssessPrompt assembles the judge user message. The output budget is
// deliberately smaller than the paper budget: program output is denser per
// character.
func buildAssessPrompt(in AssessInput, paperBudget, outputBudget int) string {
	var b strings.Builder

	b.WriteString("Task:\n")
	b.WriteString(strings.TrimSpace(in.Task))
	b.WriteString("\n")

	if strings.TrimSpace(in.MethodText) != "" {
		b.WriteString("\nMethod summary:\n")
		b.WriteString(in.MethodText)
		b.WriteString("\n")
	}

	if strings.TrimSpace(in.PaperText) != "" {
		b.WriteString("\nPaper excerpt:\n")
		b.WriteString(Truncate(in.PaperText, paperBudget))
		b.WriteString("\n")
	}

	b.WriteString("\nCaptured program output:\n")
	b.WriteString(Truncate(in.Output, outputBudget))
	b.WriteString("\n\nReturn only the JSON verdict.")
	return b.String()
}

// insufficiencyContext folds a negative verdict into the error context for
// the next generation round, embedding why the output was rejected rather
// than just that it was.
func insufficiencyContext(a Assessment, output string, snippetBudget int) string {
	var b strings.Builder
	b.WriteString("output judged insufficient to assess replicability\n")
	if strings.TrimSpace(a.Rationale) != "" {
		fmt.Fprintf(&b, "judge rationale: %s\n", a.Rationale)
	}
	if len(a.Missing) > 0 {
		b.WriteString("missing evidence:\n")
		for _, m := range a.Missing {
			fmt.Fprintf(&b, "- %s\n", m)
		}
	}
	if len(a.RequestedChanges) > 0 {
		b.WriteString("requested changes:\n")
		for _, c := range a.RequestedChanges {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	b.WriteString("program output (snippet):\n")
	b.WriteString(Truncate(output, snippetBudget))
	return b.String()
}
