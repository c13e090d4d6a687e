package version

// AppVersion is compared against the published version file by the update check.
var AppVersion = "v1.0.0"
