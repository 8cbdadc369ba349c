package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "LMS Coursework API",
        "description": "Assignments, submissions, grading and progress tracking",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and token lifecycle"},
        {"name": "Assignments", "description": "Assignment lifecycle management"},
        {"name": "Submissions", "description": "Student submissions and grading"},
        {"name": "Progress", "description": "Derived stats and progress views"},
        {"name": "Uploads", "description": "Submission attachments"},
        {"name": "Exports", "description": "Gradebook exports"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "responses": {
                    "200": {"description": "Token pair issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Rotate refresh token",
                "responses": {
                    "200": {"description": "New token pair"},
                    "401": {"description": "Unknown refresh token"}
                }
            }
        },
        "/assignments": {
            "get": {
                "tags": ["Assignments"],
                "summary": "List assignments visible to the caller",
                "responses": {
                    "200": {"description": "Assignment page"}
                }
            },
            "post": {
                "tags": ["Assignments"],
                "summary": "Create a draft assignment",
                "responses": {
                    "201": {"description": "Created"},
                    "403": {"description": "Not the course instructor"}
                }
            }
        },
        "/assignments/{id}/publish": {
            "post": {
                "tags": ["Assignments"],
                "summary": "Publish a draft assignment",
                "responses": {
                    "200": {"description": "Published"},
                    "400": {"description": "Illegal transition"}
                }
            }
        },
        "/assignments/{id}/submissions": {
            "post": {
                "tags": ["Submissions"],
                "summary": "Submit work",
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Submission already exists"}
                }
            }
        },
        "/submissions/{id}/grade": {
            "post": {
                "tags": ["Submissions"],
                "summary": "Grade a submission",
                "responses": {
                    "200": {"description": "Graded"},
                    "403": {"description": "Not the course instructor"}
                }
            }
        },
        "/me/progress": {
            "get": {
                "tags": ["Progress"],
                "summary": "Calling student's progress rows",
                "responses": {
                    "200": {"description": "Progress rows"}
                }
            }
        },
        "/exports/gradebook": {
            "post": {
                "tags": ["Exports"],
                "summary": "Queue a gradebook export",
                "responses": {
                    "202": {"description": "Job accepted"}
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
