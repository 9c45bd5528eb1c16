package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Placement Attendance API",
        "description": "Geofenced, time-windowed attendance for students on placement.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Attendance", "description": "Student check-in and check-out"},
        {"name": "Sites", "description": "Geofence registry"},
        {"name": "Assignments", "description": "Student to site placements"},
        {"name": "Reports", "description": "Attendance aggregation and exports"},
        {"name": "Photos", "description": "Secondary verification photos"},
        {"name": "Ops", "description": "Health and metrics"}
    ],
    "paths": {
        "/placement-attendance/mark-attendance": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Check in or check out",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/MarkAttendanceRequest"}}
                ],
                "responses": {
                    "200": {"description": "Checked out", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "201": {"description": "Checked in", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Transition out of order", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Policy violation", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "428": {"description": "Resubmit with a photo", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/placement-attendance/check-in": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Check in explicitly",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/MarkAttendanceRequest"}}
                ],
                "responses": {
                    "201": {"description": "Checked in", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "428": {"description": "Resubmit with a photo", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/placement-attendance/check-out": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Check out explicitly",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/MarkAttendanceRequest"}}
                ],
                "responses": {
                    "200": {"description": "Checked out", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "428": {"description": "Resubmit with a photo", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/placement-attendance/status": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Today's attendance state",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "studentId", "type": "string"},
                    {"in": "query", "name": "date", "type": "string", "format": "date"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/placement-attendance/sessions/{id}/review": {
            "patch": {
                "tags": ["Attendance"],
                "summary": "Override a session status after review",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/ReviewRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/placement-attendance/list": {
            "get": {
                "tags": ["Sites"],
                "summary": "List active placement sites",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/placement-attendance/sites": {
            "get": {
                "tags": ["Sites"],
                "summary": "List placement sites",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "active", "type": "boolean"},
                    {"in": "query", "name": "page", "type": "integer"},
                    {"in": "query", "name": "page_size", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Sites"],
                "summary": "Register a placement site",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/SiteRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/placement-attendance/sites/{id}": {
            "get": {
                "tags": ["Sites"],
                "summary": "Get a placement site",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "put": {
                "tags": ["Sites"],
                "summary": "Update or deactivate a placement site",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/SiteRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Site covered by a live assignment today", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Sites"],
                "summary": "Delete an unused placement site",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Site has history", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/placement-attendance/assign": {
            "post": {
                "tags": ["Assignments"],
                "summary": "Assign a student to a site",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/AssignRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/placement-attendance/assignment/{id}": {
            "get": {
                "tags": ["Assignments"],
                "summary": "Get an assignment",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "put": {
                "tags": ["Assignments"],
                "summary": "Edit an assignment schedule",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/UpdateAssignmentRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "delete": {
                "tags": ["Assignments"],
                "summary": "Remove an assignment",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Removed"}}
            }
        },
        "/placement-attendance/assignment/{id}/history": {
            "get": {
                "tags": ["Assignments"],
                "summary": "Assignment audit trail",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/placement-attendance/assignments": {
            "get": {
                "tags": ["Assignments"],
                "summary": "List a student's assignments",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "studentId", "required": true, "type": "string"},
                    {"in": "query", "name": "includeInactive", "type": "boolean"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/placement-attendance/assignments/active": {
            "get": {
                "tags": ["Assignments"],
                "summary": "Resolve the assignment governing a date",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "studentId", "required": true, "type": "string"},
                    {"in": "query", "name": "date", "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No active assignment", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/placement-attendance/report": {
            "get": {
                "tags": ["Reports"],
                "summary": "Attendance report",
                "produces": ["application/json", "text/csv", "application/pdf"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "from", "required": true, "type": "string", "format": "date"},
                    {"in": "query", "name": "to", "required": true, "type": "string", "format": "date"},
                    {"in": "query", "name": "mode", "type": "string", "enum": ["grouped", "detail"]},
                    {"in": "query", "name": "format", "type": "string", "enum": ["json", "csv", "pdf"]},
                    {"in": "query", "name": "batch", "type": "string"},
                    {"in": "query", "name": "course", "type": "string"},
                    {"in": "query", "name": "branch", "type": "string"},
                    {"in": "query", "name": "year", "type": "integer"},
                    {"in": "query", "name": "semester", "type": "integer"},
                    {"in": "query", "name": "siteId", "type": "string"},
                    {"in": "query", "name": "studentId", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid query", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/placement-attendance/photos/{token}": {
            "get": {
                "tags": ["Photos"],
                "summary": "Download a verification photo",
                "produces": ["image/jpeg"],
                "parameters": [
                    {"in": "path", "name": "token", "required": true, "type": "string"},
                    {"in": "query", "name": "thumb", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "JPEG image"},
                    "403": {"description": "Invalid or expired link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/placement-attendance/metrics/summary": {
            "get": {
                "tags": ["Ops"],
                "summary": "Admission counters",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        }
    },
    "definitions": {
        "MarkAttendanceRequest": {
            "type": "object",
            "required": ["latitude", "longitude", "accuracy"],
            "properties": {
                "siteId": {"type": "string"},
                "latitude": {"type": "number"},
                "longitude": {"type": "number"},
                "accuracy": {"type": "number"},
                "photo": {"type": "string", "description": "Base64 payload or data URL"}
            }
        },
        "ReviewRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "status": {"type": "string", "enum": ["PENDING", "PRESENT", "REJECTED"]}
            }
        },
        "SiteRequest": {
            "type": "object",
            "required": ["name", "latitude", "longitude", "radiusMeters", "allowedStartTime", "allowedEndTime"],
            "properties": {
                "name": {"type": "string"},
                "address": {"type": "string"},
                "latitude": {"type": "number"},
                "longitude": {"type": "number"},
                "radiusMeters": {"type": "number"},
                "allowedStartTime": {"type": "string", "example": "09:00"},
                "allowedEndTime": {"type": "string", "example": "18:00"},
                "active": {"type": "boolean"}
            }
        },
        "AssignRequest": {
            "type": "object",
            "required": ["studentId", "siteId", "startDate", "endDate", "allowedDays"],
            "properties": {
                "studentId": {"type": "string"},
                "siteId": {"type": "string"},
                "startDate": {"type": "string", "format": "date"},
                "endDate": {"type": "string", "format": "date"},
                "allowedDays": {"type": "array", "items": {"type": "string", "enum": ["MON", "TUE", "WED", "THU", "FRI", "SAT", "SUN"]}}
            }
        },
        "UpdateAssignmentRequest": {
            "type": "object",
            "properties": {
                "startDate": {"type": "string", "format": "date"},
                "endDate": {"type": "string", "format": "date"},
                "allowedDays": {"type": "array", "items": {"type": "string"}}
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
                "reason": {"type": "string"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"},
                "requiresPhoto": {"type": "boolean"}
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
