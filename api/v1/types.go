// Package v1 holds the JSON shapes exchanged with clients of the suggest endpoint.
package v1

// InputField is the request field carrying the query identifier: {"input": "<id>"}.
const InputField = "input"

// Suggestion is one ranked entry of a SuggestResponse.
type Suggestion struct {
	Text     string `json:"text"`
	Position int    `json:"position"`
}

// SuggestResponse is the body returned for a successful suggest call.
type SuggestResponse struct {
	Suggestions []Suggestion `json:"suggestions"`
}
