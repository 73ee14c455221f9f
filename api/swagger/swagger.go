package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Timetable Solver API",
        "description": "Backtracking course timetabling with run history, async solves and exports.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Schedule", "description": "Timetable solving, run history and exports"},
        {"name": "Metrics", "description": "Solver and HTTP counters"}
    ],
    "paths": {
        "/schedule/solve": {
            "post": {
                "tags": ["Schedule"],
                "summary": "Solve a timetable",
                "description": "Places every course in a room with an instructor and a contiguous slot range. The body may also be wrapped as {\"schedule\": {...}}.",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SolveScheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "Solved", "schema": {"$ref": "#/definitions/SolveScheduleEnvelope"}},
                    "400": {"description": "Malformed payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "No valid schedule or search budget exceeded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedule/solve/async": {
            "post": {
                "tags": ["Schedule"],
                "summary": "Queue a timetable solve",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SolveScheduleRequest"}}
                ],
                "responses": {
                    "202": {"description": "Queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Async solving disabled or queue full", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedule/runs": {
            "get": {
                "tags": ["Schedule"],
                "summary": "List solve runs",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["QUEUED", "RUNNING", "SOLVED", "INFEASIBLE", "BUDGET_EXCEEDED", "FAILED"]},
                    {"name": "mode", "in": "query", "type": "string", "enum": ["sync", "async"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedule/runs/{id}": {
            "get": {
                "tags": ["Schedule"],
                "summary": "Get a solve run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedule/runs/{id}/export": {
            "post": {
                "tags": ["Schedule"],
                "summary": "Export a solved timetable",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Signed download link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Run is not solved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedule/export/{token}": {
            "get": {
                "tags": ["Schedule"],
                "summary": "Download an exported timetable",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}},
                    "403": {"description": "Expired or invalid link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["Metrics"],
                "summary": "Solver and HTTP counters",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "RoomInput": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "capacity": {"type": "integer", "minimum": 0}
            },
            "required": ["id", "capacity"]
        },
        "CourseInput": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "duration_slots": {"type": "integer", "minimum": 1},
                "required_capacity": {"type": "integer", "minimum": 0}
            },
            "required": ["id", "duration_slots", "required_capacity"]
        },
        "InstructorInput": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "unavailable_slots": {"type": "array", "items": {"type": "integer"}}
            },
            "required": ["id"]
        },
        "SolveScheduleRequest": {
            "type": "object",
            "properties": {
                "total_slots": {"type": "integer", "minimum": 1},
                "rooms": {"type": "array", "items": {"$ref": "#/definitions/RoomInput"}},
                "courses": {"type": "array", "items": {"$ref": "#/definitions/CourseInput"}},
                "instructors": {"type": "array", "items": {"$ref": "#/definitions/InstructorInput"}}
            }
        },
        "AssignmentResponse": {
            "type": "object",
            "properties": {
                "course_id": {"type": "string"},
                "room_id": {"type": "string"},
                "instructor_id": {"type": "string"},
                "start_slot": {"type": "integer"},
                "end_slot": {"type": "integer"},
                "duration": {"type": "integer"}
            }
        },
        "SolveScheduleResponse": {
            "type": "object",
            "properties": {
                "runId": {"type": "string"},
                "assignments": {"type": "array", "items": {"$ref": "#/definitions/AssignmentResponse"}},
                "score": {"type": "integer"},
                "unmetSoftConstraints": {"type": "array", "items": {"type": "string"}},
                "stats": {
                    "type": "object",
                    "properties": {
                        "nodes": {"type": "integer"},
                        "backtracks": {"type": "integer"},
                        "durationMs": {"type": "integer"},
                        "cached": {"type": "boolean"}
                    }
                }
            }
        },
        "SolveScheduleEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/SolveScheduleResponse"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
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
