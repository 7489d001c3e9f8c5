package patterns

// DocumentSchema is the JSON Schema for the pattern document
const DocumentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["patterns"],
  "properties": {
    "patterns": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "string",
        "description": "Regular expression matched anywhere in the message text"
      }
    }
  }
}`
