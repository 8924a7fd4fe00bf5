package translator

import (
	"encoding/json"

	v1 "github.com/ASHISH26940/suggestd/api/v1"
	"github.com/ASHISH26940/suggestd/internal/query"
	"github.com/tidwall/gjson"
)

// Decode extracts the query identifier from a request body.
// It fails with MalformedBody when the body is not JSON and with MissingField
// when the "input" field is absent or not a string.
func Decode(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", &Error{Kind: MalformedBody}
	}
	input := gjson.GetBytes(body, v1.InputField)
	if !input.Exists() || input.Type != gjson.String {
		return "", &Error{Kind: MissingField}
	}
	return input.Str, nil
}

// Encode serializes a result as {"suggestions": [...]}, indented by four spaces.
// An empty result encodes as an empty array.
func Encode(result query.Result) ([]byte, error) {
	resp := v1.SuggestResponse{
		Suggestions: make([]v1.Suggestion, len(result)),
	}
	for i, s := range result {
		resp.Suggestions[i] = v1.Suggestion{Text: s.Text, Position: s.Position}
	}
	return json.MarshalIndent(resp, "", "    ")
}

// EncodeError renders the plain text body for a rejected request.
func EncodeError(kind ErrorKind) []byte {
	return []byte(kind.Message())
}
