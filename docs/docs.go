// Package docs registers the OpenAPI document for the Founder Pass API
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
        "/api/v1/pledges": {
            "post": {
                "description": "Reserve Founder Pass seats and open a card vault intent",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Pledges"],
                "summary": "Create pledge",
                "parameters": [
                    {"description": "Pledge details", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.CreatePledgeRequest"}}
                ],
                "responses": {
                    "200": {"description": "Pledge created", "schema": {"$ref": "#/definitions/dto.CreatePledgeResponse"}},
                    "400": {"description": "Invalid data", "schema": {"$ref": "#/definitions/dto.CreatePledgeErrorResponse"}},
                    "500": {"description": "Failed to create pledge", "schema": {"$ref": "#/definitions/dto.CreatePledgeErrorResponse"}}
                }
            }
        },
        "/api/v1/pledges/cancel": {
            "post": {
                "description": "Cancel an active pledge with the emailed secret",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Pledges"],
                "summary": "Cancel pledge",
                "parameters": [
                    {"description": "Email and cancellation secret", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.CancelPledgeRequest"}}
                ],
                "responses": {
                    "200": {"description": "Pledge cancelled successfully", "schema": {"$ref": "#/definitions/dto.CancelPledgeResponse"}},
                    "400": {"description": "Invalid email or secret, or pledge already processed", "schema": {"$ref": "#/definitions/dto.CancelPledgeResponse"}},
                    "500": {"description": "Failed to cancel pledge", "schema": {"$ref": "#/definitions/dto.CancelPledgeResponse"}}
                }
            }
        },
        "/api/v1/pledges/{pledge_id}/payment-method": {
            "post": {
                "description": "Store the payment method of a confirmed setup intent",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Pledges"],
                "summary": "Attach payment method",
                "parameters": [
                    {"type": "string", "description": "Pledge ID (UUID)", "name": "pledge_id", "in": "path", "required": true},
                    {"description": "Confirmed setup intent", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.AttachPaymentMethodRequest"}}
                ],
                "responses": {
                    "200": {"description": "Payment method stored", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "404": {"description": "Pledge not found", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "409": {"description": "Pledge not active or intent conflict", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "502": {"description": "Payment processor unavailable", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/pledges/quote": {
            "get": {
                "description": "Monthly price, plan and unlocked founder rewards for a seat count",
                "produces": ["application/json"],
                "tags": ["Pledges"],
                "summary": "Pledge quote",
                "parameters": [
                    {"type": "integer", "description": "Seats (1-20)", "name": "seats", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "Quote", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/vault/status": {
            "get": {
                "description": "Aggregate pledge totals and progress toward the seat goal",
                "produces": ["application/json"],
                "tags": ["Vault"],
                "summary": "Vault status",
                "responses": {
                    "200": {"description": "Vault status", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "503": {"description": "Vault status unavailable", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/admin/pledges": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "List pledges",
                "parameters": [
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "page_size", "in": "query"},
                    {"type": "string", "name": "state", "in": "query"},
                    {"type": "string", "name": "email", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Pledges", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/admin/pledges/export": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "tags": ["Admin"],
                "summary": "Export pledges",
                "responses": {
                    "200": {"description": "XLSX workbook", "schema": {"type": "file"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/admin/vault/reconcile": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Reconcile vault status",
                "responses": {
                    "200": {"description": "Reconcile report", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        }
    },
    "definitions": {
        "dto.APIResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {},
                "error": {}
            }
        },
        "dto.CreatePledgeRequest": {
            "type": "object",
            "required": ["full_name", "email", "seats"],
            "properties": {
                "full_name": {"type": "string"},
                "email": {"type": "string"},
                "seats": {"type": "integer", "minimum": 1, "maximum": 20}
            }
        },
        "dto.CreatePledgeResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "client_secret": {"type": "string"},
                "pledge_id": {"type": "string"}
            }
        },
        "dto.CreatePledgeErrorResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "error": {"type": "string"},
                "details": {}
            }
        },
        "dto.CancelPledgeRequest": {
            "type": "object",
            "required": ["email", "secret"],
            "properties": {
                "email": {"type": "string"},
                "secret": {"type": "string"}
            }
        },
        "dto.CancelPledgeResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "details": {}
            }
        },
        "dto.AttachPaymentMethodRequest": {
            "type": "object",
            "required": ["setup_intent_id"],
            "properties": {
                "setup_intent_id": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Admin token: Bearer {token}",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Healthiphi Founder Pass API",
	Description:      "Founder Pass pledges, vault progress and operator tools",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
