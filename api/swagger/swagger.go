package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Lernplan API",
        "description": "Study planning backend: calendar blocks, sessions, topic hierarchy and exports",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Login and current user"},
        {"name": "Calendar", "description": "Block allocations and learning sessions"},
        {"name": "Plans", "description": "Lernplan topic hierarchy"},
        {"name": "Schedule", "description": "Scheduling links between topics and blocks"},
        {"name": "Todos", "description": "Standalone todos"},
        {"name": "Archives", "description": "Plan archiving and restoration"},
        {"name": "Exports", "description": "Weekly PDF and topic CSV exports"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Login",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Current user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/blocks": {
            "get": {
                "tags": ["Calendar"],
                "summary": "List blocks in a date range",
                "parameters": [
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Calendar"],
                "summary": "Create a block, optionally as a repeating series",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateBlockRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Day is full"}
                }
            }
        },
        "/blocks/{id}": {
            "put": {
                "tags": ["Calendar"],
                "summary": "Update a block",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Calendar"],
                "summary": "Delete a block",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/blocks/{id}/repeat": {
            "put": {
                "tags": ["Calendar"],
                "summary": "Change the repeat rule of a block",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/series/{seriesId}": {
            "delete": {
                "tags": ["Calendar"],
                "summary": "Delete every occurrence of a series",
                "parameters": [
                    {"name": "seriesId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions": {
            "get": {
                "tags": ["Calendar"],
                "summary": "List sessions in a date range",
                "parameters": [
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Calendar"],
                "summary": "Create a session, optionally as a repeating series",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/plans": {
            "get": {
                "tags": ["Plans"],
                "summary": "List plans",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Plans"],
                "summary": "Create a plan",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/archives": {
            "get": {
                "tags": ["Archives"],
                "summary": "List archived plans",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Archives"],
                "summary": "Archive the live calendar state",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/week": {
            "post": {
                "tags": ["Exports"],
                "summary": "Request a weekly plan PDF",
                "parameters": [
                    {"name": "start", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "CreateBlockRequest": {
            "type": "object",
            "properties": {
                "date": {"type": "string"},
                "blockType": {"type": "string"},
                "title": {"type": "string"},
                "rechtsgebiet": {"type": "string"},
                "unterrechtsgebiet": {"type": "string"},
                "contentRef": {"type": "string"},
                "tasks": {"type": "array", "items": {"type": "object"}},
                "repeatRule": {"$ref": "#/definitions/RepeatRule"}
            },
            "required": ["date", "blockType", "title"]
        },
        "RepeatRule": {
            "type": "object",
            "properties": {
                "frequency": {"type": "string"},
                "interval": {"type": "integer"},
                "count": {"type": "integer"},
                "until": {"type": "string"},
                "weekdays": {"type": "array", "items": {"type": "integer"}}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
