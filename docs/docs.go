// Package docs registers the OpenAPI document served at /openapi.json.
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
        "/upload": {
            "get": {
                "description": "Static service identity payload",
                "produces": ["application/json"],
                "tags": ["Upload"],
                "summary": "Upload service health",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/upload.HealthResponse"}}
                }
            },
            "post": {
                "description": "Validates, compresses, publishes and describes a base64 encoded image",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Upload"],
                "summary": "Upload and describe an image",
                "parameters": [
                    {"description": "upload request", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/image.Payload"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/upload.UploadResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/upload.UploadResponse"}},
                    "413": {"description": "Request Entity Too Large", "schema": {"$ref": "#/definitions/upload.UploadResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/upload.UploadResponse"}}
                }
            }
        },
        "/upload/ws": {
            "get": {
                "description": "Upgrade to a websocket, send one upload JSON message, receive progress frames and a final result frame",
                "tags": ["Upload"],
                "summary": "Upload with progress stream",
                "responses": {
                    "101": {"description": "Switching Protocols", "schema": {"$ref": "#/definitions/upload.ProgressFrame"}}
                }
            }
        },
        "/history": {
            "get": {
                "produces": ["application/json"],
                "tags": ["History"],
                "summary": "List recent uploads",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}}
                }
            },
            "delete": {
                "produces": ["application/json"],
                "tags": ["History"],
                "summary": "Clear upload history",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}}
                }
            }
        },
        "/system": {
            "get": {
                "description": "Effective drivers, languages and upload limits without secrets",
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "Runtime configuration summary",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}}
                }
            }
        }
    },
    "definitions": {
        "httptransport.APIResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "data": {},
                "message": {"type": "string"},
                "success": {"type": "boolean"},
                "traceId": {"type": "string"}
            }
        },
        "image.Payload": {
            "type": "object",
            "properties": {
                "fileName": {"type": "string"},
                "fileSize": {"type": "integer"},
                "imageData": {"type": "string"},
                "language": {"type": "string"},
                "mimeType": {"type": "string"}
            }
        },
        "image.FieldViolation": {
            "type": "object",
            "properties": {
                "field": {"type": "string"},
                "reason": {"type": "string"}
            }
        },
        "image.Result": {
            "type": "object",
            "properties": {
                "compressedSize": {"type": "integer"},
                "compressionRatio": {"type": "number"},
                "confidence": {"type": "number"},
                "description": {"type": "string"},
                "key": {"type": "string"},
                "keywords": {"type": "array", "items": {"type": "string"}},
                "originalSize": {"type": "integer"},
                "uploadedAt": {"type": "string"},
                "url": {"type": "string"}
            }
        },
        "upload.HealthResponse": {
            "type": "object",
            "properties": {
                "endpoints": {"type": "object", "additionalProperties": {"type": "string"}},
                "service": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "upload.ProgressFrame": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "progress": {"type": "integer"},
                "stage": {"type": "string"},
                "traceId": {"type": "string"},
                "type": {"type": "string"}
            }
        },
        "upload.UploadResponse": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/image.Result"},
                "details": {"type": "array", "items": {"$ref": "#/definitions/image.FieldViolation"}},
                "error": {"type": "string"},
                "success": {"type": "boolean"},
                "traceId": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "AI Images Agent API",
	Description:      "Upload an image, publish it to object storage and get an AI generated description.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
