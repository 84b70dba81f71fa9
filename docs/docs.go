// Package docs registers the OpenAPI document served under /swagger.
// Regenerate with: swag init -g main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/chat/stream": {
            "post": {
                "description": "Runs one conversation turn and streams the reply as server-sent events.",
                "consumes": ["application/json"],
                "produces": ["text/event-stream"],
                "tags": ["chat"],
                "summary": "Stream a chat turn",
                "parameters": [
                    {"description": "Turn request", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/chat.StreamRequest"}}
                ],
                "responses": {
                    "200": {"description": "event stream", "schema": {"type": "string"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": true}},
                    "403": {"description": "Forbidden", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/chat/sessions/{conversationID}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["chat"],
                "summary": "Get a conversation session",
                "parameters": [
                    {"type": "string", "description": "Conversation ID", "name": "conversationID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": true}},
                    "403": {"description": "Forbidden", "schema": {"type": "object", "additionalProperties": true}}
                }
            },
            "delete": {
                "tags": ["chat"],
                "summary": "Reset a conversation session",
                "parameters": [
                    {"type": "string", "description": "Conversation ID", "name": "conversationID", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "403": {"description": "Forbidden", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/bucket-list/summary": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["bucket-list"],
                "summary": "Bucket list counts",
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}}
            }
        },
        "/bucket-list/hierarchy": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["bucket-list"],
                "summary": "Bucket list grouped by country, state and city",
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}}
            }
        },
        "/whatsapp/webhook": {
            "post": {
                "description": "Runs one conversation turn and answers with TwiML holding the first reply segment. Remaining segments are sent asynchronously.",
                "consumes": ["application/x-www-form-urlencoded"],
                "produces": ["application/xml"],
                "tags": ["whatsapp"],
                "summary": "Inbound WhatsApp message",
                "parameters": [
                    {"type": "string", "description": "Sender, e.g. whatsapp:+14155550100", "name": "From", "in": "formData", "required": true},
                    {"type": "string", "description": "Message text", "name": "Body", "in": "formData", "required": true},
                    {"type": "string", "description": "Sender display name", "name": "ProfileName", "in": "formData"},
                    {"type": "string", "description": "Twilio request signature", "name": "X-Twilio-Signature", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "TwiML", "schema": {"type": "string"}},
                    "403": {"description": "Forbidden", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/whatsapp/otp/send": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["whatsapp"],
                "summary": "Send a WhatsApp verification code",
                "parameters": [
                    {"description": "Phone number", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/whatsapp.SendOTPRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/whatsapp/otp/verify": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Links the verified phone number to the signed-in account so WhatsApp trips are saved to it.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["whatsapp"],
                "summary": "Verify a WhatsApp number",
                "parameters": [
                    {"description": "Phone and code", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/whatsapp.VerifyOTPRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": true}},
                    "429": {"description": "Too Many Requests", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        }
    },
    "definitions": {
        "chat.StreamRequest": {
            "type": "object",
            "properties": {
                "conversationId": {"type": "string"},
                "message": {"type": "string"},
                "existingTripId": {"type": "string"}
            }
        },
        "whatsapp.SendOTPRequest": {
            "type": "object",
            "properties": {"phone": {"type": "string"}}
        },
        "whatsapp.VerifyOTPRequest": {
            "type": "object",
            "properties": {"phone": {"type": "string"}, "code": {"type": "string"}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Trip Planner AI API",
	Description:      "Conversational trip planning over SSE and WhatsApp.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
