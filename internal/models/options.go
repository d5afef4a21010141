package models

// Choices offered by settings surfaces

var (
	// FilterModes lists the selectable treatments in display order.
	FilterModes = []FilterMode{
		FilterModeDimmed,
		FilterModeRemoved,
	}
)
