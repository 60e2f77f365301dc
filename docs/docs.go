// Package docs registers the OpenAPI document served under /swagger.
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
    "security": [{"BearerAuth": []}],
    "paths": {
        "/tournaments": {
            "get": {"tags": ["tournaments"], "summary": "List tournaments",
                "parameters": [
                    {"type": "string", "name": "status", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "integer", "name": "offset", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["tournaments"], "summary": "Create a tournament",
                "parameters": [{"name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateTournamentInput"}}],
                "responses": {"201": {"description": "Created"}, "422": {"description": "Validation error", "schema": {"$ref": "#/definitions/ErrorResponse"}}}}
        },
        "/tournaments/{tournamentID}": {
            "get": {"tags": ["tournaments"], "summary": "Get a tournament with its participants, teams and postings",
                "parameters": [{"$ref": "#/parameters/tournamentID"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ErrorResponse"}}}},
            "delete": {"tags": ["tournaments"], "summary": "Delete a tournament without postings",
                "parameters": [{"$ref": "#/parameters/tournamentID"}],
                "responses": {"204": {"description": "Deleted"}, "409": {"description": "Postings exist", "schema": {"$ref": "#/definitions/ErrorResponse"}}}}
        },
        "/tournaments/{tournamentID}/status": {
            "patch": {"tags": ["tournaments"], "summary": "Move a tournament through its lifecycle",
                "parameters": [{"$ref": "#/parameters/tournamentID"}, {"name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StatusInput"}}],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Transition not allowed", "schema": {"$ref": "#/definitions/ErrorResponse"}}}}
        },
        "/tournaments/{tournamentID}/participants": {
            "get": {"tags": ["participants"], "summary": "List registered participants",
                "parameters": [{"$ref": "#/parameters/tournamentID"}, {"type": "string", "name": "role", "in": "query"}],
                "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["participants"], "summary": "Register judges and debaters",
                "parameters": [{"$ref": "#/parameters/tournamentID"}],
                "responses": {"200": {"description": "Updated tournament"}, "422": {"description": "Registration closed or role mismatch", "schema": {"$ref": "#/definitions/ErrorResponse"}}}}
        },
        "/tournaments/{tournamentID}/teams": {
            "get": {"tags": ["teams"], "summary": "List teams", "parameters": [{"$ref": "#/parameters/tournamentID"}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["teams"], "summary": "Form a team from two registered debaters", "parameters": [{"$ref": "#/parameters/tournamentID"}],
                "responses": {"201": {"description": "Created"}, "409": {"description": "Name taken or postings exist", "schema": {"$ref": "#/definitions/ErrorResponse"}}}}
        },
        "/tournaments/{tournamentID}/teams/randomize": {
            "post": {"tags": ["teams"], "summary": "Replace teams with a random pairing of debaters", "parameters": [{"$ref": "#/parameters/tournamentID"}],
                "responses": {"200": {"description": "OK"}, "422": {"description": "Fewer than two debaters", "schema": {"$ref": "#/definitions/ErrorResponse"}}}}
        },
        "/tournaments/{tournamentID}/rounds": {
            "post": {"tags": ["postings"], "summary": "Pair all teams into a new round", "parameters": [{"$ref": "#/parameters/tournamentID"}, {"name": "input", "in": "body", "schema": {"$ref": "#/definitions/GenerateRoundInput"}}],
                "responses": {"201": {"description": "Created"}, "409": {"description": "Round already exists", "schema": {"$ref": "#/definitions/ErrorResponse"}}, "422": {"description": "Fewer than two teams", "schema": {"$ref": "#/definitions/ErrorResponse"}}}}
        },
        "/tournaments/{tournamentID}/postings": {
            "get": {"tags": ["postings"], "summary": "List postings",
                "parameters": [{"$ref": "#/parameters/tournamentID"}, {"type": "string", "name": "status", "in": "query"}, {"type": "string", "name": "batch_name", "in": "query"}, {"type": "integer", "name": "round", "in": "query"}],
                "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["postings"], "summary": "Create one posting", "parameters": [{"$ref": "#/parameters/tournamentID"}],
                "responses": {"201": {"description": "Created"}, "422": {"description": "Validation error", "schema": {"$ref": "#/definitions/ErrorResponse"}}}}
        },
        "/tournaments/{tournamentID}/postings/batch": {
            "post": {"tags": ["postings"], "summary": "Create several postings, reporting failures per item", "parameters": [{"$ref": "#/parameters/tournamentID"}],
                "responses": {"200": {"description": "Batch result"}}}
        },
        "/tournaments/{tournamentID}/standings": {
            "get": {"tags": ["standings"], "summary": "Ranked standings", "parameters": [{"$ref": "#/parameters/tournamentID"}], "responses": {"200": {"description": "OK"}}}
        },
        "/tournaments/{tournamentID}/standings/refresh": {
            "post": {"tags": ["standings"], "summary": "Recompute and store team totals", "parameters": [{"$ref": "#/parameters/tournamentID"}], "responses": {"200": {"description": "OK"}}}
        },
        "/tournaments/{tournamentID}/speakers/standings": {
            "get": {"tags": ["standings"], "summary": "Debaters ranked by speaker points from completed postings", "parameters": [{"$ref": "#/parameters/tournamentID"}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ErrorResponse"}}}}
        },
        "/tournaments/{tournamentID}/judges/activity": {
            "get": {"tags": ["standings"], "summary": "Evaluations submitted and postings assigned per judge", "parameters": [{"$ref": "#/parameters/tournamentID"}], "responses": {"200": {"description": "OK"}}}
        },
        "/entrants": {
            "get": {"tags": ["entrants"], "summary": "List entrants", "parameters": [{"type": "string", "name": "role", "in": "query"}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["entrants"], "summary": "Enroll an entrant", "responses": {"201": {"description": "Created"}}}
        },
        "/entrants/{entrantID}": {
            "get": {"tags": ["entrants"], "summary": "Get an entrant", "parameters": [{"type": "string", "name": "entrantID", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/postings/{postingID}": {
            "get": {"tags": ["postings"], "summary": "Get a posting", "parameters": [{"$ref": "#/parameters/postingID"}], "responses": {"200": {"description": "OK"}}},
            "patch": {"tags": ["postings"], "summary": "Edit a scheduled posting", "parameters": [{"$ref": "#/parameters/postingID"}],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Posting locked or version mismatch", "schema": {"$ref": "#/definitions/ErrorResponse"}}}}
        },
        "/postings/{postingID}/status": {
            "patch": {"tags": ["postings"], "summary": "Start, complete or cancel a posting",
                "parameters": [{"$ref": "#/parameters/postingID"}, {"name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StatusInput"}}],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Posting locked", "schema": {"$ref": "#/definitions/ErrorResponse"}}}}
        },
        "/postings/{postingID}/ballot": {
            "post": {"tags": ["postings"], "summary": "Attach a ballot image", "consumes": ["multipart/form-data"],
                "parameters": [{"$ref": "#/parameters/postingID"}, {"type": "file", "name": "file", "in": "formData", "required": true}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/postings/{postingID}/audio": {
            "post": {"tags": ["postings"], "summary": "Attach an audio recording", "consumes": ["multipart/form-data"],
                "parameters": [{"$ref": "#/parameters/postingID"}, {"type": "file", "name": "file", "in": "formData", "required": true}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/postings/{postingID}/evaluations": {
            "get": {"tags": ["evaluations"], "summary": "List evaluations of a posting", "parameters": [{"$ref": "#/parameters/postingID"}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["evaluations"], "summary": "Record a judge's evaluation", "parameters": [{"$ref": "#/parameters/postingID"}],
                "responses": {"201": {"description": "Created"}, "409": {"description": "Duplicate evaluation or posting locked", "schema": {"$ref": "#/definitions/ErrorResponse"}}}}
        }
    },
    "parameters": {
        "tournamentID": {"type": "string", "name": "tournamentID", "in": "path", "required": true},
        "postingID": {"type": "string", "name": "postingID", "in": "path", "required": true}
    },
    "definitions": {
        "CreateTournamentInput": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"},
                "registration_deadline": {"type": "string", "format": "date-time"},
                "required_judges": {"type": "integer"},
                "quorum": {"type": "integer"},
                "assigned_judges_only": {"type": "boolean"}
            }
        },
        "GenerateRoundInput": {
            "type": "object",
            "properties": {
                "round": {"type": "integer"},
                "judges_per_match": {"type": "integer"},
                "seed": {"type": "integer", "format": "int64"},
                "generator": {"type": "string", "enum": ["random", "round_robin"]}
            }
        },
        "StatusInput": {
            "type": "object",
            "properties": {"status": {"type": "string"}}
        },
        "ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "object",
                    "properties": {
                        "kind": {"type": "string"},
                        "message": {"type": "string"},
                        "fields": {"type": "object", "additionalProperties": {"type": "string"}},
                        "refs": {"type": "object", "additionalProperties": {"type": "string"}}
                    }
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Debetter API",
	Description:      "Debate tournament pairing, judging and standings.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
