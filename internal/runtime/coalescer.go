package runtime

// coalescer holds at most one pending message per category, overwritten on
// every offer. It makes the loop's latest-wins policy an explicit data
// structure: when the editing side outruns the loop, superseded graph
// updates and execution requests are dropped here and never produce a
// response.
type coalescer struct {
	assets      Message
	preferences Message
	graph       Message
	execution   Message
}

// offer stores m in its category slot, replacing any superseded message.
func (c *coalescer) offer(m Message) {
	switch m.(type) {
	case AssetsUpdate:
		c.assets = m
	case PreferencesUpdate:
		c.preferences = m
	case GraphUpdate:
		c.graph = m
	case ExecutionRequest:
		c.execution = m
	}
}

// take empties the slots and returns the surviving messages in processing
// priority order: assets, preferences, graph, execution.
func (c *coalescer) take() []Message {
	slots := []*Message{&c.assets, &c.preferences, &c.graph, &c.execution}
	out := make([]Message, 0, len(slots))
	for _, slot := range slots {
		if *slot != nil {
			out = append(out, *slot)
			*slot = nil
		}
	}
	return out
}
