package web

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/assessx/internal/exchange"
	"github.com/JonMunkholm/assessx/internal/wizard"
)

func TestWizardSummary_Render(t *testing.T) {
	snap := wizard.Snapshot{
		ID:       "w1",
		FileName: "<vendors>.csv",
		Rows:     3,
		Blockers: []string{"Template name is required."},
		Names: []wizard.NameState{
			{ID: "template-0", CurrentName: `A & "B"`, Valid: true},
			{ID: "template-1", Blur: true},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, wizardSummary(snap).Render(context.Background(), &buf))
	out := buf.String()

	assert.Contains(t, out, `id="wizard-w1"`)
	assert.Contains(t, out, `data-can-proceed="false"`)
	assert.Contains(t, out, "&lt;vendors&gt;.csv")
	assert.Contains(t, out, "<li>Template name is required.</li>")
	assert.Contains(t, out, `data-entry="template-0" data-status="valid" data-error="false"`)
	assert.Contains(t, out, "A &amp; &#34;B&#34;")
	assert.Contains(t, out, `data-entry="template-1" data-status="empty" data-error="true"`)
}

func TestWizardSummary_NoBlockers(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, wizardSummary(wizard.Snapshot{ID: "w2", CanProceed: true}).Render(context.Background(), &buf))

	assert.Contains(t, buf.String(), `data-can-proceed="true"`)
	assert.NotContains(t, buf.String(), "wizard-blockers")
}

func TestErrorAlert_Render(t *testing.T) {
	var buf bytes.Buffer
	msg := exchange.UserMessage{Message: "Bad <file>", Action: "Try again", Code: "FILE001"}
	require.NoError(t, errorAlert(msg).Render(context.Background(), &buf))

	assert.Contains(t, buf.String(), `data-code="FILE001"`)
	assert.Contains(t, buf.String(), "Bad &lt;file&gt;")
	assert.Contains(t, buf.String(), `<p class="alert-action">Try again</p>`)
}
