package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Classroom API",
        "description": "Classroom management backend: classes, join codes, materials, assignments, submissions and grading",
        "version": "1.0.0"
    },
    "basePath": "/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Accounts and sessions"},
        {"name": "Classes", "description": "Class registry and rooms"},
        {"name": "Enrollment", "description": "Join codes and membership"},
        {"name": "Materials", "description": "Class learning materials"},
        {"name": "Assignments", "description": "Gradable work"},
        {"name": "Submissions", "description": "Student submissions and grading"},
        {"name": "Files", "description": "Signed file downloads"}
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "paths": {
        "/auth/register": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Register a teacher or student account",
                "responses": {
                    "201": {"description": "Created"},
                    "422": {"description": "Validation failed"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate by email and password",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Exchange a refresh token",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Invalid refresh token"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user profile",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/classes": {
            "post": {
                "tags": ["Classes"],
                "summary": "Create a class with a generated join code",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created"},
                    "403": {"description": "Teachers only"}
                }
            }
        },
        "/classes/{id}": {
            "get": {
                "tags": ["Classes"],
                "summary": "Class details with rooms, materials and assignments",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK"},
                    "403": {"description": "Not enrolled"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/classes/join": {
            "post": {
                "tags": ["Enrollment"],
                "summary": "Join a class by code",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Joined"},
                    "400": {"description": "Already enrolled"},
                    "404": {"description": "Unknown code"}
                }
            }
        },
        "/assignments/{id}/submit": {
            "post": {
                "tags": ["Submissions"],
                "summary": "Submit work for an assignment",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "First submission"},
                    "200": {"description": "Resubmission"},
                    "400": {"description": "Past due"},
                    "403": {"description": "Not enrolled"}
                }
            }
        },
        "/submissions/{id}/grade": {
            "post": {
                "tags": ["Submissions"],
                "summary": "Grade a submission",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Graded"},
                    "403": {"description": "Owner only"},
                    "422": {"description": "Score out of range"}
                }
            }
        },
        "/files/{token}": {
            "get": {
                "tags": ["Files"],
                "summary": "Download a stored file by signed token",
                "responses": {
                    "200": {"description": "File content"},
                    "404": {"description": "Invalid or expired token"}
                }
            }
        }
    },
    "definitions": {
        "Envelope": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["success", "error"]},
                "message": {"type": "string"},
                "data": {"type": "object"},
                "errors": {"type": "object"}
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
