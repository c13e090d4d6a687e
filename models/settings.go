package models

// AppSettings is the editable subset of settings exposed over the API.
type AppSettings struct {
	ProxyPort string `json:"proxy_port" example:"12345"`
}
