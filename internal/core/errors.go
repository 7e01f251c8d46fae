package core

import "errors"

// Sentinel errors returned by the Service. Their messages are matched by
// MapError, so keep them in sync with errorPatterns.
var (
	ErrSessionNotFound  = errors.New("import session not found")
	ErrUnknownTarget    = errors.New("unknown import target")
	ErrFileTooLarge     = errors.New("file too large")
	ErrEmptyFile        = errors.New("empty file")
	ErrUnmappedRequired = errors.New("required fields are not mapped")
	ErrUnknownField     = errors.New("unknown field")
	ErrUnknownColumn    = errors.New("unknown column")
	ErrInvalidOptions   = errors.New("invalid parse options")
	ErrTooManyImports   = errors.New("too many concurrent imports, please try again later")
	ErrTemplateNotFound = errors.New("template not found")
	ErrTemplateExists   = errors.New("template already exists")
	ErrTemplateName     = errors.New("template name is required")
)
