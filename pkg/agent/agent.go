// Package agent defines the agent catalog and the dispatch policy that
// selects a grounding payload for each agent kind.
package agent

// ID identifies an agent profile.
type ID string

// Built-in agent IDs.
const (
	Generic         ID = "generic"
	CustomerService ID = "customerService"
	ElderCare       ID = "elderCare"
	CustomPersona   ID = "customPersona"
)

// Kind selects the response capability shape used for an agent.
type Kind string

const (
	KindGeneric       Kind = "generic"
	KindKnowledgeBase Kind = "knowledge-base"
	KindDocument      Kind = "document"
	KindPersona       Kind = "persona"
)

// RequiresGrounding reports whether agents of this kind need a payload.
func (k Kind) RequiresGrounding() bool {
	switch k {
	case KindKnowledgeBase, KindDocument, KindPersona:
		return true
	default:
		return false
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindGeneric || k.RequiresGrounding()
}

// Profile is an immutable catalog entry.
type Profile struct {
	ID    ID     `json:"id"`
	Label string `json:"label"`
	Kind  Kind   `json:"kind"`

	// DefaultGrounding seeds the text slot when a session starts.
	DefaultGrounding string `json:"-"`
}

// RequiresGrounding reports whether the profile needs a payload to respond.
func (p Profile) RequiresGrounding() bool {
	return p.Kind.RequiresGrounding()
}

// DefaultKnowledgeBase is the store policy text the customer service agent
// starts with.
const DefaultKnowledgeBase = `- Our store is open from 9 AM to 8 PM on weekdays.
- We are open from 10 AM to 6 PM on weekends.
- To return an item, you need the original receipt and the item must be in its original packaging. Returns are accepted within 30 days of purchase.
- For technical support, please call 1-800-555-TECH.
- We are located at 123 Main Street, Anytown, USA.`

// Catalog returns the built-in profiles in display order.
func Catalog() []Profile {
	return []Profile{
		{ID: Generic, Label: "Generic Assistant", Kind: KindGeneric},
		{ID: CustomerService, Label: "Customer Service Bot", Kind: KindKnowledgeBase, DefaultGrounding: DefaultKnowledgeBase},
		{ID: ElderCare, Label: "Elder Care Assistant", Kind: KindDocument},
		{ID: CustomPersona, Label: "Custom Persona", Kind: KindPersona},
	}
}
