package api

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "license": {
            "name": "GPL-3.0",
            "url": "https://www.gnu.org/licenses/gpl-3.0.html"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "boolean"}}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object", "additionalProperties": {"type": "boolean"}}}
                }
            }
        },
        "/version": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Version"],
                "summary": "Get application version",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/update": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Version"],
                "summary": "Check for updates",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/update.Result"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/rules": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Rules"],
                "summary": "List block rules",
                "parameters": [{"type": "string", "description": "Return only this rule", "name": "pattern", "in": "query"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.BlockRule"}}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Rules"],
                "summary": "Add a block rule",
                "parameters": [{"description": "Rule", "name": "rule", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.BlockRuleInput"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.BlockRule"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            },
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Rules"],
                "summary": "Edit a block rule",
                "parameters": [
                    {"type": "string", "description": "Current pattern", "name": "pattern", "in": "query", "required": true},
                    {"description": "New values", "name": "rule", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.BlockRuleInput"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.BlockRule"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            },
            "delete": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Rules"],
                "summary": "Delete block rules",
                "parameters": [{"description": "Patterns", "name": "patterns", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.BlockRulePatterns"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "integer"}}}
                }
            }
        },
        "/rules/enable": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Rules"],
                "summary": "Enable block rules",
                "parameters": [{"description": "Patterns", "name": "patterns", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.BlockRulePatterns"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "integer"}}}
                }
            }
        },
        "/rules/disable": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Rules"],
                "summary": "Disable block rules",
                "parameters": [{"description": "Patterns", "name": "patterns", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.BlockRulePatterns"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "integer"}}}
                }
            }
        },
        "/settings": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Settings"],
                "summary": "Get settings",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.AppSettings"}}
                }
            },
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Settings"],
                "summary": "Save settings",
                "parameters": [{"description": "Settings", "name": "settings", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.AppSettings"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.AppSettings"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/proxy/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Proxy"],
                "summary": "Proxy status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.ProxyStatusResponse"}}
                }
            }
        },
        "/proxy/start": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Proxy"],
                "summary": "Start the proxy",
                "parameters": [{"description": "Port override", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/models.ProxyStartRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.ProxyStatusResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "409": {"description": "PortUnavailable or AlreadyRunning", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "422": {"description": "NoActiveRules", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/proxy/stop": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Proxy"],
                "summary": "Stop the proxy",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.MessageResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/proxy/runs": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Proxy"],
                "summary": "Proxy run history",
                "parameters": [{"type": "integer", "description": "Maximum rows (default 20)", "name": "limit", "in": "query"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.ProxyRun"}}}
                }
            }
        },
        "/logs": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Logs"],
                "summary": "Read logs",
                "parameters": [
                    {"type": "string", "description": "proxy (default) or app", "name": "file", "in": "query"},
                    {"type": "string", "description": "DEBUG, INFO, WARNING, ERROR, CRITICAL or --ALL--", "name": "level", "in": "query"},
                    {"type": "integer", "description": "Trailing lines to read (default 1000)", "name": "lines", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.LogsResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            },
            "delete": {
                "produces": ["application/json"],
                "tags": ["Logs"],
                "summary": "Clear logs",
                "parameters": [{"type": "string", "description": "proxy (default) or app", "name": "file", "in": "query"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.MessageResponse"}}
                }
            }
        },
        "/metrics": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["Metrics"],
                "summary": "Prometheus metrics",
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "handlers.LogsResponse": {
            "type": "object",
            "properties": {
                "file": {"type": "string"},
                "level": {"type": "string"},
                "lines": {"type": "array", "items": {"type": "string"}}
            }
        },
        "models.AppSettings": {
            "type": "object",
            "properties": {"proxy_port": {"type": "string", "example": "12345"}}
        },
        "models.BlockRule": {
            "type": "object",
            "properties": {
                "pattern": {"type": "string", "example": "ads.example.com"},
                "active": {"type": "boolean", "example": true},
                "description": {"type": "string", "example": "banner ads"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "models.BlockRuleInput": {
            "type": "object",
            "properties": {
                "pattern": {"type": "string", "example": "ads.example.com"},
                "active": {"type": "boolean"},
                "description": {"type": "string", "example": "banner ads"}
            }
        },
        "models.BlockRulePatterns": {
            "type": "object",
            "properties": {"patterns": {"type": "array", "items": {"type": "string"}}}
        },
        "models.ErrorResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string", "example": "Error message describing the issue"},
                "kind": {"type": "string", "example": "PortUnavailable"}
            }
        },
        "models.MessageResponse": {
            "type": "object",
            "properties": {"message": {"type": "string"}}
        },
        "models.ProxyRun": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "port": {"type": "integer"},
                "pattern_count": {"type": "integer"},
                "started_at": {"type": "string"},
                "ended_at": {"type": "string"},
                "state": {"type": "string"},
                "error": {"type": "string"}
            }
        },
        "models.ProxyStartRequest": {
            "type": "object",
            "properties": {"port": {"type": "string", "example": "12345"}}
        },
        "models.ProxyStatusResponse": {
            "type": "object",
            "properties": {
                "running": {"type": "boolean"},
                "port": {"type": "integer"},
                "pattern_count": {"type": "integer"},
                "run_id": {"type": "string"},
                "started_at": {"type": "string"},
                "last_error": {"type": "string"}
            }
        },
        "update.Result": {
            "type": "object",
            "properties": {
                "current": {"type": "string"},
                "latest": {"type": "string"},
                "update_available": {"type": "boolean"}
            }
        }
    }
}`
