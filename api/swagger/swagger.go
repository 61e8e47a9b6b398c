package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Course Progress API",
        "description": "Enrollment lifecycle, lecture progress, quiz grading and certificate issuance",
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
        {"name": "Enrollments", "description": "Enrollment lifecycle"},
        {"name": "Progress", "description": "Lecture progress tracking"},
        {"name": "Quizzes", "description": "Quiz submissions and grading"},
        {"name": "Certificates", "description": "Completion certificates"},
        {"name": "Operations", "description": "Health, readiness and maintenance"}
    ],
    "paths": {
        "/enrollments": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List the caller's enrollments",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["ACTIVE", "COMPLETED", "CANCELLED", "EXPIRED"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid filter", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Enrollments"],
                "summary": "Enroll in a course",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EnrollRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Enrollment"}},
                    "404": {"description": "Course not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already enrolled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseId}/enrollment": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Get the latest enrollment in a course",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "courseId", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Enrollment"}},
                    "404": {"description": "Not enrolled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseId}/enrollment/cancel": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Cancel an active enrollment",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "courseId", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Enrollment"}},
                    "409": {"description": "Enrollment is not active", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseId}/enrollment/complete": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Complete an active enrollment",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "courseId", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Enrollment"}},
                    "409": {"description": "Enrollment is not active", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseId}/progress": {
            "get": {
                "tags": ["Progress"],
                "summary": "Course progress with per-lecture detail",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "courseId", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/CourseProgress"}},
                    "404": {"description": "Not enrolled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseId}/certificate": {
            "post": {
                "tags": ["Certificates"],
                "summary": "Issue or fetch the completion certificate",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "courseId", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Certificate"}},
                    "409": {"description": "Enrollment not completed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/certificates/download": {
            "get": {
                "tags": ["Certificates"],
                "summary": "Download a certificate through a signed link",
                "produces": ["application/pdf"],
                "parameters": [{"name": "token", "in": "query", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "PDF document"},
                    "403": {"description": "Invalid or expired link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lectures/{lectureId}/progress": {
            "put": {
                "tags": ["Progress"],
                "summary": "Record lecture progress",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "lectureId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TrackProgressRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/LectureProgress"}},
                    "403": {"description": "Not enrolled or enrollment closed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Lecture not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lectures/{lectureId}/complete": {
            "post": {
                "tags": ["Progress"],
                "summary": "Mark a lecture completed",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "lectureId", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "No Content"},
                    "403": {"description": "Not enrolled or enrollment closed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/quizzes/{quizId}/submissions": {
            "post": {
                "tags": ["Quizzes"],
                "summary": "Submit quiz answers for grading",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "quizId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitQuizRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/QuizResult"}},
                    "404": {"description": "Quiz not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/enrollments/expire": {
            "post": {
                "tags": ["Operations"],
                "summary": "Expire overdue enrollments now",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ExpireEnrollmentsResponse"}},
                    "403": {"description": "Admin only", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "EnrollRequest": {
            "type": "object",
            "required": ["courseId"],
            "properties": {
                "courseId": {"type": "string"},
                "paymentRef": {"type": "string"},
                "expiresAt": {"type": "string", "format": "date-time"},
                "stake": {
                    "type": "object",
                    "properties": {
                        "amount": {"type": "string"},
                        "reference": {"type": "string"}
                    }
                }
            }
        },
        "Enrollment": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "student_id": {"type": "string"},
                "course_id": {"type": "string"},
                "status": {"type": "string", "enum": ["ACTIVE", "COMPLETED", "CANCELLED", "EXPIRED"]},
                "progress": {"type": "integer"},
                "payment_ref": {"type": "string"},
                "stake_amount": {"type": "string"},
                "stake_ref": {"type": "string"},
                "enrolled_at": {"type": "string", "format": "date-time"},
                "completed_at": {"type": "string", "format": "date-time"},
                "cancelled_at": {"type": "string", "format": "date-time"},
                "expires_at": {"type": "string", "format": "date-time"},
                "certificate_url": {"type": "string"},
                "updated_at": {"type": "string", "format": "date-time"}
            }
        },
        "TrackProgressRequest": {
            "type": "object",
            "required": ["progress"],
            "properties": {
                "progress": {"type": "integer", "minimum": 0, "maximum": 100},
                "lastPosition": {"type": "integer", "minimum": 0},
                "notes": {"type": "string"}
            }
        },
        "LectureProgress": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "student_id": {"type": "string"},
                "lecture_id": {"type": "string"},
                "course_id": {"type": "string"},
                "progress": {"type": "integer"},
                "last_position": {"type": "integer"},
                "notes": {"type": "string"},
                "is_completed": {"type": "boolean"},
                "completed_at": {"type": "string", "format": "date-time"}
            }
        },
        "CourseProgress": {
            "type": "object",
            "properties": {
                "enrollment": {"$ref": "#/definitions/Enrollment"},
                "aggregate": {"type": "integer"},
                "lectures": {"type": "array", "items": {"$ref": "#/definitions/LectureProgress"}},
                "completed_lectures": {"type": "integer"},
                "total_lectures": {"type": "integer"}
            }
        },
        "SubmitQuizRequest": {
            "type": "object",
            "properties": {
                "answers": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "question_id": {"type": "string"},
                            "answer": {"description": "a string or an array of strings"}
                        }
                    }
                },
                "applyToProgress": {"type": "boolean"}
            }
        },
        "QuizResult": {
            "type": "object",
            "properties": {
                "quiz_id": {"type": "string"},
                "score": {"type": "integer"},
                "total_points": {"type": "integer"},
                "percentage": {"type": "number"},
                "passing": {"type": "boolean"},
                "per_question": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "question_id": {"type": "string"},
                            "correct": {"type": "boolean"},
                            "awarded": {"type": "integer"},
                            "points": {"type": "integer"},
                            "known": {"type": "boolean"}
                        }
                    }
                },
                "lecture_completed": {"type": "boolean"}
            }
        },
        "Certificate": {
            "type": "object",
            "properties": {
                "enrollment_id": {"type": "string"},
                "student_id": {"type": "string"},
                "course_id": {"type": "string"},
                "course_title": {"type": "string"},
                "url": {"type": "string"},
                "issued_at": {"type": "string", "format": "date-time"},
                "link_expires_at": {"type": "string", "format": "date-time"}
            }
        },
        "ExpireEnrollmentsResponse": {
            "type": "object",
            "properties": {
                "expired": {"type": "integer"}
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
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"}
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
