package parser

// ParseAltitude exposes parseAltitude to the external parser_test package.
var ParseAltitude = parseAltitude
