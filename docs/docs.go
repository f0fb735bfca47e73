// Package docs registers the OpenAPI description served at /swagger.
// Regenerate with: swag init -g cmd/jammertime/main.go
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
        "/health": {
            "get": {"tags": ["system"], "summary": "Health check", "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}}}
        },
        "/auth/sign-up": {
            "post": {"tags": ["auth"], "summary": "Sign up", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.authCredentials"}}],
                "responses": {"200": {"description": "id"}, "400": {"description": "Bad Request"}}}
        },
        "/auth/sign-in": {
            "post": {"tags": ["auth"], "summary": "Sign in", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.authCredentials"}}],
                "responses": {"200": {"description": "token"}, "400": {"description": "Bad Request"}}}
        },
        "/api/v1/events/upload": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["events"], "summary": "Upload machine events",
                "consumes": ["multipart/form-data"], "produces": ["application/json"],
                "parameters": [{"type": "file", "name": "file", "in": "formData", "required": true}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "500": {"description": "Internal Server Error"}}}
        },
        "/api/v1/events": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["events"], "summary": "List events", "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "machine", "in": "query"},
                    {"type": "string", "name": "from", "in": "query"},
                    {"type": "string", "name": "to", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "count, events"}, "400": {"description": "Bad Request"}}}
        },
        "/api/v1/events/registry": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["events"], "summary": "Event registry", "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/schedules": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["schedules"], "summary": "List schedules", "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["schedules"], "summary": "Upload schedule",
                "consumes": ["multipart/form-data"], "produces": ["application/json"],
                "parameters": [
                    {"type": "file", "name": "file", "in": "formData", "required": true},
                    {"type": "string", "name": "name", "in": "formData"}
                ],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "422": {"description": "Unprocessable Entity"}}}
        },
        "/api/v1/schedules/{id}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["schedules"], "summary": "Get schedule", "produces": ["application/json"],
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/api/v1/runs": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["runs"], "summary": "List runs", "produces": ["application/json"],
                "parameters": [{"type": "integer", "name": "limit", "in": "query"}],
                "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["runs"], "summary": "Start a calculation run",
                "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.runRequest"}}],
                "responses": {"202": {"description": "Accepted"}, "400": {"description": "Bad Request"}, "404": {"description": "Not Found"}, "422": {"description": "Unprocessable Entity"}}}
        },
        "/api/v1/runs/{id}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["runs"], "summary": "Get run", "produces": ["application/json"],
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}},
            "delete": {"security": [{"BearerAuth": []}], "tags": ["runs"], "summary": "Cancel run", "produces": ["application/json"],
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"202": {"description": "Accepted"}, "404": {"description": "Not Found"}, "409": {"description": "Conflict"}}}
        },
        "/api/v1/runs/{id}/tree": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["runs"], "summary": "Run summary tree", "produces": ["application/json", "text/plain"],
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"enum": ["json", "text"], "type": "string", "name": "format", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}, "409": {"description": "Conflict"}}}
        }
    },
    "definitions": {
        "handlers.authCredentials": {
            "type": "object",
            "required": ["password", "username"],
            "properties": {"password": {"type": "string"}, "username": {"type": "string"}}
        },
        "handlers.runRequest": {
            "type": "object",
            "required": ["schedule_id"],
            "properties": {
                "schedule_id": {"type": "string"},
                "from": {"type": "string", "example": "2025-03-03"},
                "to": {"type": "string", "example": "2025-03-10"},
                "error_state": {"type": "string", "example": "ERROR"},
                "running_states": {"type": "array", "items": {"type": "string"}, "example": ["RUNNING"]},
                "max_jam_duration": {"type": "string", "example": "60m"},
                "idle_threshold": {"type": "string", "example": "5m"},
                "shift_start_grace": {"type": "string"},
                "break_end_grace": {"type": "string"},
                "precedence": {"type": "array", "items": {"type": "string"}},
                "workers": {"type": "integer"},
                "validate_registry": {"type": "boolean"}
            }
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
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "jammertime API",
	Description:      "Reconciles machine state logs with a shift calendar and reports jam time by shift.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
