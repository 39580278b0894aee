package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
)

func formatCollectedFieldsSection(form Reservation) string {
	rows := [][2]string{
		{"Name", form.Name},
		{"Email", form.Email},
		{"Phone", form.Phone},
		{"Date", form.Date},
		{"Time", form.Time},
	}
	if form.People > 0 {
		rows = append(rows, [2]string{"People", strconv.Itoa(form.People)})
	}
	var buf strings.Builder
	buf.WriteString("# Collected fields:\n")
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Field", "Value")
	n := 0
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		_ = table.Append(row[0], row[1])
		n++
	}
	if n == 0 {
		return ""
	}
	_ = table.Render()
	return buf.String()
}

func formatIssueSection(issue *FieldInfo) string {
	if issue == nil {
		return ""
	}
	var buf strings.Builder
	buf.WriteString("# Rejected input:\n")
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Field", "Pointer", "Reason")
	_ = table.Append(issue.DisplayName, issue.JSONPointer, issue.Description)
	_ = table.Render()
	return buf.String()
}

// FormatTurnRequest renders req as the user prompt of an LLM phrasing call.
func FormatTurnRequest(req *TurnRequest, now time.Time) (string, error) {
	stateJSON, err := sonic.Marshal(req.Form)
	if err != nil {
		return "", err
	}
	sections := []string{
		fmt.Sprintf("# Current Date: \n %s", now.Format(time.RFC3339)),
		fmt.Sprintf("# Form state JSON:\n```json\n%s\n```", string(stateJSON)),
	}
	if req.Phase != PhaseIdle {
		sections = append(sections, fmt.Sprintf("# Current Phase:\n%s", req.Phase))
	}
	sections = append(sections, fmt.Sprintf("# Turn Event:\n%s", req.Event))
	if req.MessagePair.Question != "" || req.MessagePair.Answer != "" {
		sections = append(sections, "# Latest Dialogue:")
		if req.MessagePair.Question != "" {
			sections = append(sections, fmt.Sprintf("## Assistant Question:\n%s", req.MessagePair.Question))
		}
		if req.MessagePair.Answer != "" {
			sections = append(sections, fmt.Sprintf("## User Answer:\n%s", req.MessagePair.Answer))
		}
	}
	if s := formatCollectedFieldsSection(req.Form); s != "" {
		sections = append(sections, s)
	}
	if s := formatIssueSection(req.Issue); s != "" {
		sections = append(sections, s)
	}
	if req.Error != "" {
		sections = append(sections, fmt.Sprintf("# Submission error:\n%s", req.Error))
	}
	return strings.Join(sections, "\n\n"), nil
}
