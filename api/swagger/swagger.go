package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Asset Procurement API",
        "description": "Asset disposal queue and approval engine",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Token issuance"},
        {"name": "Assets", "description": "Asset condition maintenance"},
        {"name": "Disposals", "description": "Disposal queue, requests and decisions"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Token issued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assets/{id}/condition": {
            "patch": {
                "tags": ["Assets"],
                "summary": "Update asset condition",
                "description": "Marking an active asset Obsolete moves it to Disposal Pending.",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/UpdateConditionRequest"}}
                ],
                "responses": {
                    "200": {"description": "Updated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assets/{id}/disposal-approvals": {
            "get": {
                "tags": ["Disposals"],
                "summary": "Disposal decision history of an asset",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/disposals": {
            "get": {
                "tags": ["Disposals"],
                "summary": "List disposal queue",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "type", "type": "string", "enum": ["requests", "records"]},
                    {"in": "query", "name": "record_status", "type": "string", "enum": ["approved", "rejected"]},
                    {"in": "query", "name": "department", "type": "string"},
                    {"in": "query", "name": "user_id", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/DisposalQueueResponse"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/disposals/export": {
            "get": {
                "tags": ["Disposals"],
                "summary": "Export disposal queue",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "parameters": [
                    {"in": "query", "name": "format", "type": "string", "enum": ["csv", "pdf", "xlsx"]},
                    {"in": "query", "name": "type", "type": "string", "enum": ["requests", "records"]},
                    {"in": "query", "name": "record_status", "type": "string", "enum": ["approved", "rejected"]},
                    {"in": "query", "name": "department", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Attachment", "schema": {"type": "file"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/disposals/requests": {
            "post": {
                "tags": ["Disposals"],
                "summary": "Submit a manual disposal request",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/CreateDisposalRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/CreateDisposalResponse"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/disposals/decisions": {
            "post": {
                "tags": ["Disposals"],
                "summary": "Approve or reject a disposal",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/DisposalDecisionRequest"}}
                ],
                "responses": {
                    "200": {"description": "Decision recorded", "schema": {"$ref": "#/definitions/DisposalDecisionResponse"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already decided", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "500": {"description": "Transaction failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "UpdateConditionRequest": {
            "type": "object",
            "required": ["condition"],
            "properties": {
                "condition": {"type": "string", "enum": ["Excellent", "Good", "Fair", "Poor", "Obsolete"]}
            }
        },
        "CreateDisposalRequest": {
            "type": "object",
            "required": ["asset_id"],
            "properties": {
                "asset_id": {"type": "string"},
                "requested_by": {"type": "string"},
                "reason": {"type": "string"},
                "method": {"type": "string", "enum": ["Sale", "Donation", "Recycling", "Destruction", "Transfer"]},
                "sale_amount": {"type": "number"},
                "recipient_details": {"type": "string"},
                "notes": {"type": "string"}
            }
        },
        "DisposalDecisionRequest": {
            "type": "object",
            "required": ["asset_id", "action", "source_type"],
            "properties": {
                "asset_id": {"type": "string"},
                "action": {"type": "string", "enum": ["approve", "reject"]},
                "source_type": {"type": "string", "enum": ["automatic", "manual"]},
                "disposal_request_id": {"type": "string"},
                "notes": {"type": "string"}
            }
        },
        "DisposalRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "asset_id": {"type": "string"},
                "asset_tag": {"type": "string"},
                "asset_name": {"type": "string"},
                "department": {"type": "string"},
                "reason": {"type": "string", "x-nullable": true},
                "method": {"type": "string", "x-nullable": true},
                "requested_by": {"type": "string", "x-nullable": true},
                "requested_by_name": {"type": "string", "x-nullable": true},
                "request_date": {"type": "string", "format": "date-time"},
                "status": {"type": "string"},
                "source_type": {"type": "string", "enum": ["automatic", "manual"]}
            }
        },
        "DisposalQueueResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "disposals": {"type": "array", "items": {"$ref": "#/definitions/DisposalRecord"}}
            }
        },
        "CreateDisposalResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "request_id": {"type": "string"}
            }
        },
        "DisposalDecisionResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"}
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
                "success": {"type": "boolean"},
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
