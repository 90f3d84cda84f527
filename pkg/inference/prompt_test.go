package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/voiceflow/pkg/agent"
)

const testPDF = "data:application/pdf;base64,JVBERi0xLjQ="

func TestBuildPrompt_Generic(t *testing.T) {
	p, err := BuildPrompt(&RespondRequest{Kind: agent.KindGeneric, Query: "Hello, how are you?"})
	require.NoError(t, err)
	assert.Contains(t, p.Text, "helpful AI assistant")
	assert.Contains(t, p.Text, "User Query: Hello, how are you?")
	assert.Empty(t, p.Document)
}

func TestBuildPrompt_Shapes(t *testing.T) {
	tests := []struct {
		name      string
		kind      agent.Kind
		payload   agent.Payload
		wantText  []string
		wantDoc   bool
		forbidden string
	}{
		{
			name:     "knowledge base text",
			kind:     agent.KindKnowledgeBase,
			payload:  agent.Payload{Kind: agent.PayloadText, Content: "Our return policy is 30 days."},
			wantText: []string{"customer service agent", "Knowledge Base:\nOur return policy is 30 days.", "Customer Query:\nHow can I return an item?"},
		},
		{
			name:      "knowledge base document",
			kind:      agent.KindKnowledgeBase,
			payload:   agent.Payload{Kind: agent.PayloadDocument, Content: testPDF},
			wantText:  []string{"Knowledge Base (from the attached PDF)."},
			wantDoc:   true,
			forbidden: "base64",
		},
		{
			name:     "medical text",
			kind:     agent.KindDocument,
			payload:  agent.Payload{Kind: agent.PayloadText, Content: "Takes aspirin daily."},
			wantText: []string{"elderly patient", "Do not provide medical advice.", "Medical Information:\nTakes aspirin daily.", "Patient Query:"},
		},
		{
			name:     "persona document",
			kind:     agent.KindPersona,
			payload:  agent.Payload{Kind: agent.PayloadDocument, Content: testPDF},
			wantText: []string{"adopt the following persona", "Persona Description (from the attached PDF).", "User Query:"},
			wantDoc:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := tt.payload
			p, err := BuildPrompt(&RespondRequest{Kind: tt.kind, Grounding: &payload, Query: "How can I return an item?"})
			require.NoError(t, err)
			for _, s := range tt.wantText {
				assert.Contains(t, p.Text, s)
			}
			if tt.wantDoc {
				assert.Equal(t, testPDF, p.Document)
			} else {
				assert.Empty(t, p.Document)
			}
			if tt.forbidden != "" {
				assert.NotContains(t, p.Text, tt.forbidden)
			}
		})
	}
}

func TestBuildPrompt_ShapeFollowsTagNotContent(t *testing.T) {
	// Text that merely mentions a data URI is still inlined as text.
	payload := agent.Payload{Kind: agent.PayloadText, Content: "see " + testPDF}
	p, err := BuildPrompt(&RespondRequest{Kind: agent.KindPersona, Grounding: &payload, Query: "hi"})
	require.NoError(t, err)
	assert.Empty(t, p.Document)
	assert.Contains(t, p.Text, "Persona Description:\nsee ")
}

func TestBuildPrompt_Invalid(t *testing.T) {
	_, err := BuildPrompt(&RespondRequest{Kind: agent.KindPersona, Query: "hi"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = BuildPrompt(&RespondRequest{Kind: agent.KindGeneric, Query: "  "})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	bad := agent.Payload{Kind: agent.PayloadDocument, Content: "not a uri"}
	_, err = BuildPrompt(&RespondRequest{Kind: agent.KindDocument, Grounding: &bad, Query: "hi"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
