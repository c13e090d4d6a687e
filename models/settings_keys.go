package models

// ProxyPortKey is the app_settings key holding the user-chosen proxy port.
const ProxyPortKey = "proxy_port"
