package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Dissertation Portal API",
        "description": "Dissertation supervision portal: registration sessions, supervision requests and signed document exchange",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Authentication", "description": "Account registration and token management"},
        {"name": "Sessions", "description": "Professor registration sessions"},
        {"name": "Requests", "description": "Dissertation supervision requests"},
        {"name": "Documents", "description": "Coordination and response document exchange"}
    ],
    "paths": {
        "/auth/register": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Register a student or professor account",
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Validation error"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate and obtain tokens",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Rotate the refresh token",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Expired or revoked token"}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Revoke the presented refresh token",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/auth/change-password": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Change the caller's password",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "No Content"},
                    "403": {"description": "Old password mismatch"}
                }
            }
        },
        "/professor/sessions": {
            "get": {
                "tags": ["Sessions"],
                "summary": "List own sessions with request counts",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK"}
                }
            },
            "post": {
                "tags": ["Sessions"],
                "summary": "Open a registration session",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Invalid window or overlap"}
                }
            }
        },
        "/professor/sessions/{id}": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Get one owned session",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Sessions"],
                "summary": "Update an owned session",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Capacity below approved requests"}
                }
            },
            "delete": {
                "tags": ["Sessions"],
                "summary": "Delete an owned session and its pending requests",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Deletion acknowledgement"},
                    "400": {"description": "Session has approved requests"}
                }
            }
        },
        "/professor/sessions/{id}/requests": {
            "get": {
                "tags": ["Requests"],
                "summary": "List requests submitted to one session",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/professor/requests": {
            "get": {
                "tags": ["Requests"],
                "summary": "List incoming requests, filterable by status",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/professor/requests/{id}/approve": {
            "put": {
                "tags": ["Requests"],
                "summary": "Approve a pending request",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Capacity reached or student taken"}
                }
            }
        },
        "/professor/requests/{id}/reject": {
            "put": {
                "tags": ["Requests"],
                "summary": "Reject a pending request with a reason",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/professor/requests/{id}/request-reupload": {
            "put": {
                "tags": ["Requests"],
                "summary": "Ask the student for a fresh signed document",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/professor/requests/{id}/response-document": {
            "post": {
                "tags": ["Documents"],
                "summary": "Upload the professor response PDF",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Not a PDF or too large"}
                }
            }
        },
        "/student/sessions": {
            "get": {
                "tags": ["Sessions"],
                "summary": "List sessions currently accepting requests",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/student/requests": {
            "get": {
                "tags": ["Requests"],
                "summary": "List the caller's requests",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK"}
                }
            },
            "post": {
                "tags": ["Requests"],
                "summary": "Submit a supervision request",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Session closed, full or duplicate"}
                }
            }
        },
        "/student/requests/{id}/signed-document": {
            "post": {
                "tags": ["Documents"],
                "summary": "Upload the countersigned coordination PDF",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Not a PDF or too large"}
                }
            }
        },
        "/requests/{id}": {
            "get": {
                "tags": ["Requests"],
                "summary": "Get a request the caller is a party to",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK"},
                    "403": {"description": "Not a party"}
                }
            }
        },
        "/requests/{id}/documents/{kind}/download": {
            "get": {
                "tags": ["Documents"],
                "summary": "Download a request document via signed token",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Binary stream"},
                    "403": {"description": "Token mismatch"},
                    "404": {"description": "Document not uploaded yet"}
                }
            }
        }
    },
    "definitions": {
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total": {"type": "integer"}
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
