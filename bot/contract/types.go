package contract

// InboundMessage is one user message from any channel adapter.
type InboundMessage struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

type MenuOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Response is channel-neutral; adapters turn it into buttons, captions or
// plain text.
type Response struct {
	Body         string       `json:"body"`
	MediaURLs    []string     `json:"media_urls,omitempty"`
	UseCaption   bool         `json:"use_caption,omitempty"`
	QuickReplies []string     `json:"quick_replies,omitempty"`
	MenuOptions  []MenuOption `json:"menu_options,omitempty"`
}

// OutboundMessage is a response pushed to a user outside a request cycle.
type OutboundMessage struct {
	UserID   string   `json:"user_id"`
	Response Response `json:"response"`
}

// ReportJob asks the report worker to reconcile and export the ledger.
type ReportJob struct {
	RequestedBy string `json:"requested_by"`
}
