// Package docs registers the OpenAPI document served at /swagger/*.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/health": {
            "get": {"tags": ["health"], "summary": "Health", "responses": {"200": {"description": "OK"}}}
        },
        "/ready": {
            "get": {"tags": ["health"], "summary": "Readiness", "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}}
        },
        "/api/auth/register": {
            "post": {
                "tags": ["auth"], "summary": "Register",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/auth.RegisterRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/auth.TokenResponse"}}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}}
            }
        },
        "/api/auth/login": {
            "post": {
                "tags": ["auth"], "summary": "Password Login",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/auth.LoginRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/auth.TokenResponse"}}, "401": {"description": "Unauthorized"}}
            }
        },
        "/api/auth/me": {
            "get": {"tags": ["auth"], "summary": "Current User", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}
        },
        "/api/workspaces": {
            "get": {"tags": ["workspaces"], "summary": "List Workspaces", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "post": {
                "tags": ["workspaces"], "summary": "Create Workspace", "security": [{"BearerAuth": []}],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/workspaces.CreateRequest"}}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}}
            }
        },
        "/api/workspaces/{workspace}/{resource}": {
            "parameters": [
                {"in": "path", "name": "workspace", "type": "string", "required": true},
                {"in": "path", "name": "resource", "type": "string", "required": true, "enum": ["teams", "projects", "labels", "issue-types", "status-flows", "members", "issues"]}
            ],
            "get": {
                "tags": ["resources"], "summary": "List", "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "search", "type": "string"},
                    {"in": "query", "name": "sort", "type": "string"},
                    {"in": "query", "name": "page", "type": "integer"},
                    {"in": "query", "name": "limit", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "404": {"description": "Not Found"}}
            },
            "post": {
                "tags": ["resources"], "summary": "Create", "security": [{"BearerAuth": []}],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"type": "object"}}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "403": {"description": "Forbidden"}, "404": {"description": "Not Found"}, "409": {"description": "Conflict"}}
            }
        },
        "/api/workspaces/{workspace}/{resource}/{id}": {
            "parameters": [
                {"in": "path", "name": "workspace", "type": "string", "required": true},
                {"in": "path", "name": "resource", "type": "string", "required": true},
                {"in": "path", "name": "id", "type": "string", "required": true}
            ],
            "get": {"tags": ["resources"], "summary": "Get", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}},
            "put": {
                "tags": ["resources"], "summary": "Update", "security": [{"BearerAuth": []}],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"type": "object"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "403": {"description": "Forbidden"}, "404": {"description": "Not Found"}}
            },
            "delete": {"tags": ["resources"], "summary": "Delete", "security": [{"BearerAuth": []}], "responses": {"204": {"description": "No Content"}, "403": {"description": "Forbidden"}, "404": {"description": "Not Found"}}}
        },
        "/api/workspaces/{workspace}/{resource}/{id}/duplicate": {
            "post": {
                "tags": ["resources"], "summary": "Duplicate", "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "workspace", "type": "string", "required": true},
                    {"in": "path", "name": "resource", "type": "string", "required": true},
                    {"in": "path", "name": "id", "type": "string", "required": true}
                ],
                "responses": {"201": {"description": "Created"}, "403": {"description": "Forbidden"}, "404": {"description": "Not Found"}}
            }
        },
        "/api/workspaces/{workspace}/status-flows/{flowId}/states": {
            "get": {"tags": ["resources"], "summary": "List states of a status flow", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}},
            "post": {"tags": ["resources"], "summary": "Create a state", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "404": {"description": "Not Found"}}}
        },
        "/api/workspaces/{workspace}/issues/{issueId}/comments/{commentId}/reactions": {
            "get": {"tags": ["reactions"], "summary": "Reaction aggregate", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}},
            "post": {
                "tags": ["reactions"], "summary": "Toggle a reaction", "security": [{"BearerAuth": []}],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"type": "object", "properties": {"emoji": {"type": "string"}}}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "404": {"description": "Not Found"}}
            }
        },
        "/api/workspaces/{workspace}/search/issues": {
            "get": {
                "tags": ["search"], "summary": "Search Issues", "security": [{"BearerAuth": []}],
                "parameters": [{"in": "query", "name": "q", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            }
        }
    },
    "definitions": {
        "auth.RegisterRequest": {
            "type": "object",
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}, "name": {"type": "string"}}
        },
        "auth.LoginRequest": {
            "type": "object",
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "auth.TokenResponse": {
            "type": "object",
            "properties": {"access_token": {"type": "string"}, "token_type": {"type": "string"}, "expires_in": {"type": "integer"}}
        },
        "workspaces.CreateRequest": {
            "type": "object",
            "properties": {"name": {"type": "string"}, "slug": {"type": "string"}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Tracker API",
	Description:      "Multi-tenant issue tracker built on a generic resource CRUD framework.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
