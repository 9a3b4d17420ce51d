package version

var FillFromSettings = fillFromSettings
