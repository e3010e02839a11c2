package openai

import (
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
)

// Summary is the structured digest of a conversation.
type Summary struct {
	// Summary is a short overview written for the clinic staff
	Summary string `json:"summary" jsonschema_description:"Two or three sentence overview of the conversation"`
	// Topics lists what the patient asked about
	Topics []string `json:"topics" jsonschema_description:"Subjects raised by the patient, such as scheduling, prices or exams"`
	// NeedsFollowUp is set when the patient is still waiting on the clinic
	NeedsFollowUp bool `json:"needs_follow_up" jsonschema_description:"True when the last patient request has not been answered"`
}

// GenerateSchema creates a JSON schema for the given type T.
// It uses reflection to generate a strict schema that disallows additional properties
// and doesn't use references for better compatibility with OpenAI's API.
func GenerateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	return schema
}

// SummaryResponseSchema is the pre-generated JSON schema for Summary.
var SummaryResponseSchema = GenerateSchema[Summary]()

func createSchemaParam() openai.ResponseFormatJSONSchemaJSONSchemaParam {
	return openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "conversation_summary",
		Description: openai.String("A structured summary of a clinic chat conversation"),
		Schema:      SummaryResponseSchema,
		Strict:      openai.Bool(true),
	}
}
