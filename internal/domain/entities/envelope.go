package entities

// EnvelopeVersion is the messageVersion of every function response.
const EnvelopeVersion = "1.0"

// Envelope is the response the agent expects for one function invocation.
// StatusCode and Err are carried for the HTTP layer and never serialized.
type Envelope struct {
	MessageVersion          string            `json:"messageVersion"`
	Response                EnvelopeResponse  `json:"response"`
	SessionAttributes       map[string]string `json:"sessionAttributes"`
	PromptSessionAttributes map[string]string `json:"promptSessionAttributes"`

	StatusCode int   `json:"-"`
	Err        error `json:"-"`
}

type EnvelopeResponse struct {
	ActionGroup      string           `json:"actionGroup"`
	Function         FunctionName     `json:"function"`
	FunctionResponse FunctionResponse `json:"functionResponse"`
}

type FunctionResponse struct {
	ResponseBody ResponseBody `json:"responseBody"`
}

type ResponseBody struct {
	Text TextBody `json:"TEXT"`
}

// TextBody holds the JSON-encoded payload as a string.
type TextBody struct {
	Body string `json:"body"`
}

// Body returns the encoded payload.
func (e Envelope) Body() string {
	return e.Response.FunctionResponse.ResponseBody.Text.Body
}
