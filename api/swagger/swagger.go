package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "CVM Admin API",
        "description": "Campaign value management admin backend: offers, segments, campaigns, offer creatives and reference data",
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
        {"name": "Auth", "description": "Login, token refresh and session"},
        {"name": "Reference", "description": "Named reference-data lists"},
        {"name": "Offers", "description": "Offer catalogue"},
        {"name": "Segments", "description": "Customer segments"},
        {"name": "Campaigns", "description": "Campaign lifecycle"},
        {"name": "Creatives", "description": "Versioned offer creatives"},
        {"name": "Exports", "description": "Generated export artifacts"},
        {"name": "Ops", "description": "Operational endpoints"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["Ops"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "tags": ["Ops"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Dependencies unavailable"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate and obtain token pair",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Rotate a refresh token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Token revoked or expired"}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Auth"],
                "summary": "Revoke a refresh token",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "Revoked"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Current user profile",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reference": {
            "get": {
                "tags": ["Reference"],
                "summary": "List reference types and their descriptors",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reference/preview": {
            "post": {
                "tags": ["Reference"],
                "summary": "Preview a draft template body with substituted variables",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PreviewRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Variables are not a JSON object"}
                }
            }
        },
        "/reference/{type}": {
            "get": {
                "tags": ["Reference"],
                "summary": "List items of a reference type",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "type", "in": "path", "required": true, "type": "string"},
                    {"name": "search", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown reference type"}
                }
            },
            "post": {
                "tags": ["Reference"],
                "summary": "Create a reference item",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "type", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReferenceItemInput"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed"}
                }
            }
        },
        "/reference/{type}/{id}": {
            "get": {
                "tags": ["Reference"],
                "summary": "Get a reference item",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "type", "in": "path", "required": true, "type": "string"},
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Reference"],
                "summary": "Update a reference item",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "type", "in": "path", "required": true, "type": "string"},
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReferenceItemInput"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "delete": {
                "tags": ["Reference"],
                "summary": "Delete a reference item",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "type", "in": "path", "required": true, "type": "string"},
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/offers": {
            "get": {
                "tags": ["Offers"],
                "summary": "List offers",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Offers"],
                "summary": "Create offer",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateOfferRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Name already in use"}
                }
            }
        },
        "/offers/{id}": {
            "get": {
                "tags": ["Offers"],
                "summary": "Get offer",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Offers"],
                "summary": "Update offer",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateOfferRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Offers"],
                "summary": "Delete offer",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Offer still has creatives"}
                }
            }
        },
        "/segments": {
            "get": {
                "tags": ["Segments"],
                "summary": "List segments",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Segments"],
                "summary": "Create segment",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SegmentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/campaigns": {
            "get": {
                "tags": ["Campaigns"],
                "summary": "List campaigns",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Campaigns"],
                "summary": "Create campaign",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CampaignRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/creatives": {
            "get": {
                "tags": ["Creatives"],
                "summary": "List offer creatives",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "offer_id", "in": "query", "type": "integer"},
                    {"name": "channel", "in": "query", "type": "string"},
                    {"name": "locale", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "latest", "in": "query", "type": "boolean"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Creatives"],
                "summary": "Create a creative as the new latest version for its offer/channel/locale",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateCreativeRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown offer"},
                    "409": {"description": "Version already exists"}
                }
            }
        },
        "/creatives/stats": {
            "get": {
                "tags": ["Creatives"],
                "summary": "Aggregate creative counts per channel",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/creatives/render": {
            "post": {
                "tags": ["Creatives"],
                "summary": "Render a creative body with substituted variables",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RenderCreativeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Persisted creative not found"}
                }
            }
        },
        "/creatives/{id}": {
            "get": {
                "tags": ["Creatives"],
                "summary": "Get creative",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "patch": {
                "tags": ["Creatives"],
                "summary": "Partially update creative",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateCreativeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Creatives"],
                "summary": "Delete creative, promoting the newest survivor to latest",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/creatives/{id}/versions": {
            "get": {
                "tags": ["Creatives"],
                "summary": "List all versions sharing the creative's offer/channel/locale",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/creatives/{id}/clone": {
            "post": {
                "tags": ["Creatives"],
                "summary": "Clone a creative onto another offer or locale",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CloneCreativeRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Clone target equals source"}
                }
            }
        },
        "/creatives/{id}/rollback/{version}": {
            "post": {
                "tags": ["Creatives"],
                "summary": "Restore an older version as the new latest",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "version", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "201": {"description": "Restored as new version", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "410": {"description": "Version no longer available"}
                }
            }
        },
        "/exports/creatives": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download creative stats as CSV or PDF",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File attachment"}
                }
            }
        },
        "/ops/metrics": {
            "get": {
                "tags": ["Ops"],
                "summary": "Runtime metrics snapshot",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/ops/audit": {
            "get": {
                "tags": ["Ops"],
                "summary": "Browse the audit trail",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "action", "in": "query", "type": "string"},
                    {"name": "resource", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
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
        "RefreshRequest": {
            "type": "object",
            "required": ["refresh_token"],
            "properties": {
                "refresh_token": {"type": "string"}
            }
        },
        "ReferenceItemInput": {
            "type": "object",
            "required": ["name", "description"],
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "is_active": {"type": "boolean"},
                "metadata_value": {"type": "string"},
                "title": {"type": "string"},
                "text_body": {"type": "string"},
                "html_body": {"type": "string"},
                "variables": {"type": "string"},
                "locale": {"type": "string"}
            }
        },
        "PreviewRequest": {
            "type": "object",
            "properties": {
                "text_body": {"type": "string"},
                "variables": {"type": "string"}
            }
        },
        "CreateOfferRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "offer_type": {"type": "string"},
                "line_of_business": {"type": "string"},
                "status": {"type": "string", "enum": ["draft", "active", "paused", "archived"]},
                "catalog_tags": {"type": "array", "items": {"type": "string"}},
                "valid_from": {"type": "string", "format": "date-time"},
                "valid_until": {"type": "string", "format": "date-time"}
            }
        },
        "UpdateOfferRequest": {
            "type": "object",
            "required": ["name", "status"],
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "offer_type": {"type": "string"},
                "line_of_business": {"type": "string"},
                "status": {"type": "string", "enum": ["draft", "active", "paused", "archived"]},
                "catalog_tags": {"type": "array", "items": {"type": "string"}},
                "valid_from": {"type": "string", "format": "date-time"},
                "valid_until": {"type": "string", "format": "date-time"}
            }
        },
        "SegmentRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "segment_type": {"type": "string"},
                "criteria": {"type": "object"},
                "estimated_size": {"type": "integer"}
            }
        },
        "CampaignRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"},
                "objective": {"type": "string"},
                "department": {"type": "string"},
                "segment_id": {"type": "integer"},
                "offer_ids": {"type": "array", "items": {"type": "integer"}},
                "status": {"type": "string"},
                "starts_at": {"type": "string", "format": "date-time"},
                "ends_at": {"type": "string", "format": "date-time"}
            }
        },
        "CreateCreativeRequest": {
            "type": "object",
            "required": ["offer_id", "channel", "locale"],
            "properties": {
                "offer_id": {"type": "integer"},
                "channel": {"type": "string", "enum": ["SMS", "Email", "Push", "InApp", "Web", "IVR", "USSD", "WhatsApp"]},
                "locale": {"type": "string"},
                "title": {"type": "string"},
                "text_body": {"type": "string"},
                "html_body": {"type": "string"},
                "variables": {"type": "object"},
                "default_values": {"type": "object"},
                "required_variables": {"type": "array", "items": {"type": "string"}},
                "is_active": {"type": "boolean"}
            }
        },
        "UpdateCreativeRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "text_body": {"type": "string"},
                "html_body": {"type": "string"},
                "variables": {"type": "object"},
                "default_values": {"type": "object"},
                "required_variables": {"type": "array", "items": {"type": "string"}},
                "is_active": {"type": "boolean"}
            }
        },
        "CloneCreativeRequest": {
            "type": "object",
            "required": ["target_offer_id"],
            "properties": {
                "target_offer_id": {"type": "integer"},
                "target_locale": {"type": "string"}
            }
        },
        "RenderCreativeRequest": {
            "type": "object",
            "properties": {
                "persisted": {"type": "boolean"},
                "id": {"type": "integer"},
                "text_body": {"type": "string"},
                "html_body": {"type": "string"},
                "variables": {"type": "object"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
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
