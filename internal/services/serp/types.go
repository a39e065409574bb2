package serp

// searchMetadata carries the provider's tracking information for an
// asynchronous search. ID is the opaque handle polled by check calls.
type searchMetadata struct {
	ID     string `json:"id"`
	Status string `json:"status"` // "Queued", "Processing", "Success", "Error"
	Error  string `json:"error,omitempty"`
}

// Provider status values observed on search_metadata.status
const (
	statusQueued     = "Queued"
	statusProcessing = "Processing"
	statusSuccess    = "Success"
	statusError      = "Error"
)

// startResponse is the immediate response to an asynchronous search
// submission. Only the metadata block is populated at this point.
type startResponse struct {
	SearchMetadata *searchMetadata `json:"search_metadata"`
}

// searchPayload is the full provider response for a finished (or still
// computing) search. Field presence varies by search mode; parsing is
// dispatched per mode rather than duck-typed across optional fields.
type searchPayload struct {
	SearchMetadata *searchMetadata `json:"search_metadata"`
	OrganicResults []organicResult `json:"organic_results,omitempty"`
	AIOverview     *aiOverview     `json:"ai_overview,omitempty"`
	AnswerText     string          `json:"answer,omitempty"` // Conversational mode answer body
	SERPFeatures   []string        `json:"serp_features,omitempty"`
}

// organicResult is one ranked entry from the classic results list
type organicResult struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet,omitempty"`
}

// aiOverview is the provider's generated-answer block. Text may arrive
// as a single string or composed of sub-blocks; references are the
// citation list used for ranking in AI-panel mode.
type aiOverview struct {
	Text       string        `json:"text,omitempty"`
	TextBlocks []aiTextBlock `json:"text_blocks,omitempty"`
	References []aiReference `json:"references,omitempty"`
}

type aiTextBlock struct {
	Type    string `json:"type,omitempty"`
	Snippet string `json:"snippet"`
}

type aiReference struct {
	Index int    `json:"index"`
	Title string `json:"title,omitempty"`
	Link  string `json:"link"`
}
