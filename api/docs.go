package api

// @title Streamline API
// @version v1.0.0
// @description Control API for the streamline URL-blocking proxy.

// @license.name GPL-3.0
// @license.url https://www.gnu.org/licenses/gpl-3.0.html

// @host localhost:12346
// @BasePath /api
// @schemes http
// @query.collection.format multi

import (
	"net/http"
	"streamline/logger"
	"streamline/version"

	"github.com/swaggo/swag"
)

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          version.AppVersion,
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{"http"},
	Title:            "Streamline API",
	Description:      "Control API for the streamline URL-blocking proxy.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

func swaggerHandler(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	if err != nil {
		logger.Error("Reading swagger doc: %v", err)
		http.Error(w, "swagger doc unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(doc))
}
