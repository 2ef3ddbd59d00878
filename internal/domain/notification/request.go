package notification

// Payload is the data attached to a notification and handed back on click.
type Payload struct {
	// URL is the page to focus or open when the notification is clicked.
	URL string `json:"url"`
}

// Request describes a notification to display.
type Request struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	// Icon and Badge are image URLs relative to the published site.
	Icon  string `json:"icon,omitempty"`
	Badge string `json:"badge,omitempty"`
	// Tag deduplicates notifications: a new request replaces the one with the same tag.
	Tag string `json:"tag"`
	// Renotify asks the display to alert again even when replacing a tagged notification.
	Renotify bool    `json:"renotify"`
	Data     Payload `json:"data"`
}
