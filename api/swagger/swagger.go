package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "EMIAS Tracker API",
        "description": "Slot tracking and auto-booking service for the EMIAS appointment portal",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Operator authentication"},
        {"name": "Tracking", "description": "Tracked-resource lifecycle and slot searches"},
        {"name": "Booking", "description": "Manual slot booking"},
        {"name": "Registry", "description": "Patient profiles, resources and specialities"},
        {"name": "Audit", "description": "Action and booking trail"},
        {"name": "Reports", "description": "Audit export jobs"},
        {"name": "System", "description": "Health and metrics"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["System"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "tags": ["System"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": ["System"],
                "summary": "Prometheus metrics",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/system/metrics": {
            "get": {
                "tags": ["System"],
                "summary": "Runtime metrics snapshot",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate the operator account",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Current token claims",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tracking": {
            "get": {
                "tags": ["Tracking"],
                "summary": "List tracking records for a user",
                "parameters": [
                    {"name": "userId", "in": "query", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Tracking"],
                "summary": "Start tracking a resource",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StartTrackingRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown resource", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tracking/run-cycle": {
            "post": {
                "tags": ["Tracking"],
                "summary": "Run one tracking pass immediately",
                "responses": {
                    "202": {"description": "Completed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tracking/{resourceId}": {
            "delete": {
                "tags": ["Tracking"],
                "summary": "Stop tracking a resource",
                "parameters": [
                    {"name": "resourceId", "in": "path", "required": true, "type": "integer"},
                    {"name": "userId", "in": "query", "required": true, "type": "integer"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/tracking/{resourceId}/active": {
            "patch": {
                "tags": ["Tracking"],
                "summary": "Pause or resume a tracking record",
                "parameters": [
                    {"name": "resourceId", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetActiveRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tracking/{resourceId}/auto-booking": {
            "patch": {
                "tags": ["Tracking"],
                "summary": "Toggle one-shot auto-booking",
                "parameters": [
                    {"name": "resourceId", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetAutoBookingRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tracking/{resourceId}/rules": {
            "put": {
                "tags": ["Tracking"],
                "summary": "Replace or extend matching rules",
                "parameters": [
                    {"name": "resourceId", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateRulesRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tracking/{resourceId}/slots": {
            "get": {
                "tags": ["Tracking"],
                "summary": "List currently matching slots",
                "description": "Runs a manual schedule check; an empty slot list is a legitimate result, not an error.",
                "parameters": [
                    {"name": "resourceId", "in": "path", "required": true, "type": "integer"},
                    {"name": "userId", "in": "query", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not tracked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Portal fetch failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/bookings": {
            "post": {
                "tags": ["Booking"],
                "summary": "Book a slot",
                "description": "Books the slot for the user, shifting an existing appointment of the same speciality group when one exists.",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BookingRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Slot disappeared", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Referral required or booking rejected", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/profiles": {
            "put": {
                "tags": ["Registry"],
                "summary": "Create or update a patient profile",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpsertProfileRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/profiles/{userId}": {
            "get": {
                "tags": ["Registry"],
                "summary": "Get a patient profile",
                "parameters": [
                    {"name": "userId", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not registered", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/resources": {
            "put": {
                "tags": ["Registry"],
                "summary": "Create or update a bookable resource",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpsertResourceRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/resources/{id}": {
            "get": {
                "tags": ["Registry"],
                "summary": "Get a resource",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown resource", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/specialities": {
            "put": {
                "tags": ["Registry"],
                "summary": "Create or update a speciality",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpsertSpecialityRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/audits": {
            "get": {
                "tags": ["Audit"],
                "summary": "List audit records",
                "parameters": [
                    {"name": "userId", "in": "query", "type": "integer"},
                    {"name": "resourceId", "in": "query", "type": "integer"},
                    {"name": "action", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "type": "string", "format": "date"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/generate": {
            "post": {
                "tags": ["Reports"],
                "summary": "Queue an audit export job",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/{id}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Report job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown job", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/export/{token}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download a finished export",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "404": {"description": "Expired or unknown token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["username", "password"]
        },
        "StartTrackingRequest": {
            "type": "object",
            "properties": {
                "userId": {"type": "integer"},
                "resourceId": {"type": "integer"},
                "rules": {"type": "string"},
                "autoBooking": {"type": "boolean"}
            },
            "required": ["userId", "resourceId"]
        },
        "UpdateRulesRequest": {
            "type": "object",
            "properties": {
                "userId": {"type": "integer"},
                "rules": {"type": "string"},
                "mode": {"type": "string", "enum": ["replace", "append"]}
            },
            "required": ["userId"]
        },
        "SetActiveRequest": {
            "type": "object",
            "properties": {
                "userId": {"type": "integer"},
                "active": {"type": "boolean"}
            },
            "required": ["userId", "active"]
        },
        "SetAutoBookingRequest": {
            "type": "object",
            "properties": {
                "userId": {"type": "integer"},
                "enabled": {"type": "boolean"}
            },
            "required": ["userId", "enabled"]
        },
        "BookingRequest": {
            "type": "object",
            "properties": {
                "userId": {"type": "integer"},
                "resourceId": {"type": "integer"},
                "slot": {"type": "string", "example": "2025-07-01 10:00"}
            },
            "required": ["userId", "resourceId", "slot"]
        },
        "UpsertProfileRequest": {
            "type": "object",
            "properties": {
                "userId": {"type": "integer"},
                "omsNumber": {"type": "string"},
                "birthDate": {"type": "string", "example": "1990-01-31"},
                "token": {"type": "string"}
            },
            "required": ["userId", "omsNumber", "birthDate", "token"]
        },
        "UpsertResourceRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "name": {"type": "string"},
                "complexResourceId": {"type": "integer"},
                "specialityCode": {"type": "string"},
                "specialityName": {"type": "string"}
            },
            "required": ["id", "name"]
        },
        "UpsertSpecialityRequest": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "name": {"type": "string"},
                "inquiryPurposeCode": {"type": "integer"},
                "inquiryPurposeId": {"type": "integer"},
                "receptionTypeId": {"type": "integer"},
                "referralPolicy": {"type": "string", "enum": ["strict", "fallback", "always_allow"]}
            },
            "required": ["code", "name"]
        },
        "ReportRequest": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "enum": ["bookings", "actions"]},
                "userId": {"type": "integer"},
                "resourceId": {"type": "integer"},
                "dateFrom": {"type": "string", "example": "2025-07-01"},
                "dateTo": {"type": "string", "example": "2025-07-31"},
                "format": {"type": "string", "enum": ["csv", "pdf"]}
            },
            "required": ["type", "format"]
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
                "status": {"type": "integer"}
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
