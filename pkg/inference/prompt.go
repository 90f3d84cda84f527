package inference

import (
	"fmt"
	"strings"

	"github.com/teslashibe/voiceflow/pkg/agent"
	"github.com/teslashibe/voiceflow/pkg/media"
)

// TranscribeInstruction is sent with audio to multimodal models.
const TranscribeInstruction = "Transcribe the following audio data to text. Reply with the transcription only."

// Prompt is a rendered reply prompt. When Document is set the grounding
// travels as an attached file instead of inline text.
type Prompt struct {
	Text     string
	Document string // data URI
}

type template struct {
	preamble      string
	groundingHead string
	queryHead     string
}

var templates = map[agent.Kind]template{
	agent.KindKnowledgeBase: {
		preamble:      "You are a customer service agent. Use the following knowledge base to respond to the customer query.",
		groundingHead: "Knowledge Base",
		queryHead:     "Customer Query",
	},
	agent.KindDocument: {
		preamble: "You are a helpful medical assistant for an elderly patient. " +
			"Use the following medical information to respond to the patient's query " +
			"in a clear, simple, and reassuring way. Do not provide medical advice.",
		groundingHead: "Medical Information",
		queryHead:     "Patient Query",
	},
	agent.KindPersona: {
		preamble: "You are to adopt the following persona and respond to the user's query as if you are that person. " +
			"Be creative, and embody their emotions, knowledge, and style of speaking.",
		groundingHead: "Persona Description",
		queryHead:     "User Query",
	},
}

// BuildPrompt renders req. The prompt shape depends only on the kind and
// the payload tag, never on the payload content.
func BuildPrompt(req *RespondRequest) (Prompt, error) {
	if err := req.Validate(); err != nil {
		return Prompt{}, err
	}

	if req.Kind == agent.KindGeneric {
		return Prompt{Text: "You are a helpful AI assistant. Respond to the user query.\n\nUser Query: " + req.Query}, nil
	}

	t, ok := templates[req.Kind]
	if !ok {
		return Prompt{}, fmt.Errorf("%w: no template for %s", ErrInvalidRequest, req.Kind)
	}

	var b strings.Builder
	b.WriteString(t.preamble)
	b.WriteString("\n\n")

	var p Prompt
	switch req.Grounding.Kind {
	case agent.PayloadDocument:
		if !media.IsDocument(req.Grounding.Content) {
			return Prompt{}, fmt.Errorf("%w: document payload without document prefix", ErrInvalidRequest)
		}
		fmt.Fprintf(&b, "%s (from the attached PDF).", t.groundingHead)
		p.Document = req.Grounding.Content
	case agent.PayloadText:
		fmt.Fprintf(&b, "%s:\n%s", t.groundingHead, req.Grounding.Content)
	default:
		return Prompt{}, fmt.Errorf("%w: payload kind %q", ErrInvalidRequest, req.Grounding.Kind)
	}

	fmt.Fprintf(&b, "\n\n%s:\n%s", t.queryHead, req.Query)
	p.Text = b.String()
	return p, nil
}
