// Canned-fallback prose helpers. Each returns the generated text, or a
// fixed fallback when the client is disabled or the call fails.
package narrative

import (
	"context"
	"fmt"
)

const chroniclerSystem = `You are the chronicler of La Serenissima, the Most Serene Republic. Citizens go about their errands by gondola and on foot; porters haul goods between warehouses; galleys arrive from distant ports. Write 1-2 sentences of period-appropriate prose. Do not break character or reference the simulation.`

// Encounter renders the words exchanged when two citizens meet.
func Encounter(ctx context.Context, c *Client, from, to, topic string) string {
	fallback := fmt.Sprintf("%s exchanged brief courtesies with %s.", from, to)
	if !c.Enabled() {
		return fallback
	}
	prompt := fmt.Sprintf("Citizen %s encounters citizen %s. Topic of conversation: %s. Narrate the exchange.",
		from, to, topic)
	text, err := c.Complete(ctx, chroniclerSystem, prompt, 150)
	if err != nil {
		return fallback
	}
	return text
}

// Farewell renders a departing citizen's parting note.
func Farewell(ctx context.Context, c *Client, citizen string) string {
	fallback := fmt.Sprintf("%s settled their affairs and left the lagoon behind.", citizen)
	if !c.Enabled() {
		return fallback
	}
	prompt := fmt.Sprintf("Citizen %s liquidates their holdings and departs the city for good. Narrate the departure.", citizen)
	text, err := c.Complete(ctx, chroniclerSystem, prompt, 150)
	if err != nil {
		return fallback
	}
	return text
}
