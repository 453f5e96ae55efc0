package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildSystemPrompt_Substitutions(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	prompt := BuildSystemPrompt("Covers pricing and onboarding.", "Always answer in French.", now)

	assert.Contains(t, prompt, "Covers pricing and onboarding.")
	assert.Contains(t, prompt, "Always answer in French.")
	assert.Contains(t, prompt, now.Format(time.RFC3339))
	assert.Contains(t, prompt, "Tool Usage")
	assert.NotContains(t, prompt, "{KBSummary}")
	assert.NotContains(t, prompt, "{customMasterInstructions}")
	assert.NotContains(t, prompt, "{currentDate}")
	assert.NotContains(t, prompt, "{AGENT_MODE_INSTRUCTIONS}")
}

func TestBuildSystemPrompt_EmptyInputsStillValid(t *testing.T) {
	prompt := BuildSystemPrompt("", "", time.Now())
	assert.NotContains(t, prompt, "{")
}
