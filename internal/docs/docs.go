// Package docs holds the OpenAPI document served at /swagger. Regenerate with
// `swag init -g cmd/api/main.go -o internal/docs --parseInternal`.
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
    "paths": {
        "/recommendations": {
            "get": {"tags": ["recommendations"], "summary": "Get active recommendations", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "Active recommendations"}}},
            "post": {"tags": ["recommendations"], "summary": "Generate recommendations", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "Recommendations and diff"}, "400": {"description": "Invalid input"}, "422": {"description": "Insufficient data"}}}
        },
        "/recommendations/history": {
            "get": {"tags": ["recommendations"], "summary": "Get recommendation history", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "Paginated history"}}}
        },
        "/recommendations/{code}": {
            "get": {"tags": ["recommendations"], "summary": "Get latest recommendation for an instrument", "security": [{"BearerAuth": []}], "parameters": [{"type": "string", "name": "code", "in": "path", "required": true}], "responses": {"200": {"description": "Recommendation"}, "404": {"description": "Not found"}}}
        },
        "/decisions": {
            "get": {"tags": ["decisions"], "summary": "List decisions", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "Paginated decisions"}}},
            "post": {"tags": ["decisions"], "summary": "Apply decision", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "Decision applied"}, "400": {"description": "Invalid input, insufficient funds or holdings"}, "409": {"description": "Stale recommendation or concurrent modification"}}}
        },
        "/decisions/batch": {
            "post": {"tags": ["decisions"], "summary": "Apply decisions in batch", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "Per-item results"}}}
        },
        "/decisions/pending/{id}": {
            "delete": {"tags": ["decisions"], "summary": "Cancel pending decision", "security": [{"BearerAuth": []}], "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "Reservation released"}, "404": {"description": "Investment not found"}}}
        },
        "/portfolio": {
            "get": {"tags": ["portfolio"], "summary": "Get portfolio", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "Portfolio summary"}, "404": {"description": "Portfolio not found"}}},
            "post": {"tags": ["portfolio"], "summary": "Create portfolio", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Portfolio created"}, "409": {"description": "Portfolio exists"}}}
        },
        "/portfolio/holdings": {
            "get": {"tags": ["portfolio"], "summary": "Get holdings", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "Paginated lots"}}}
        },
        "/portfolio/snapshots": {
            "get": {"tags": ["portfolio"], "summary": "Get portfolio snapshots", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "Paginated snapshots"}}}
        },
        "/profile": {
            "get": {"tags": ["profile"], "summary": "Get profile", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "Profile"}, "404": {"description": "Profile not found"}}},
            "put": {"tags": ["profile"], "summary": "Update profile", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "Profile"}}}
        },
        "/instruments": {
            "get": {"tags": ["instruments"], "summary": "List instruments", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "Paginated instruments"}}}
        },
        "/instruments/{code}": {
            "get": {"tags": ["instruments"], "summary": "Get instrument", "security": [{"BearerAuth": []}], "parameters": [{"type": "string", "name": "code", "in": "path", "required": true}], "responses": {"200": {"description": "Instrument and latest price"}}}
        },
        "/pipeline/instruments": {
            "post": {"tags": ["pipeline"], "summary": "Upsert instruments", "responses": {"200": {"description": "Upserted count"}}}
        },
        "/pipeline/prices": {
            "post": {"tags": ["pipeline"], "summary": "Record prices", "responses": {"200": {"description": "Inserted count"}}}
        },
        "/pipeline/analyses": {
            "post": {"tags": ["pipeline"], "summary": "Record analyses", "responses": {"200": {"description": "Recorded count"}}}
        },
        "/pipeline/revalue": {
            "post": {"tags": ["pipeline"], "summary": "Revalue portfolios", "responses": {"200": {"description": "Revalued count"}}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and JWT token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "BullBear API",
	Description:      "BullBear scores instruments into per-user recommendations and keeps a transactional portfolio ledger of the decisions users take on them.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
