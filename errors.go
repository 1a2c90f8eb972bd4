package phraseql

import "errors"

// Standard error values for the ingestion and query paths. Callers match
// them with errors.Is; every failure is local to one request.
var (
	// ErrFormat indicates the uploaded file could not be parsed as the
	// declared format.
	ErrFormat = errors.New("phraseql: malformed input file")

	// ErrEmptyDataset indicates the file parsed but contained no data rows.
	ErrEmptyDataset = errors.New("phraseql: dataset has no rows")

	// ErrSchemaConflict indicates a dataset name collision that suffixing
	// could not resolve.
	ErrSchemaConflict = errors.New("phraseql: dataset name already in use")

	// ErrUnknownQuery indicates no phrase template matched, or a matching
	// template referenced an unknown dataset.
	ErrUnknownQuery = errors.New("phraseql: unrecognized query phrase")

	// ErrUnknownField indicates a query referenced a field the target
	// dataset does not have.
	ErrUnknownField = errors.New("phraseql: unknown field")

	// ErrTranslation indicates a parsed intent violates a translation
	// invariant. Correctly parsed intents never trigger it.
	ErrTranslation = errors.New("phraseql: intent violates translation invariant")

	// ErrBackendNotConfigured indicates the engine has no store for the
	// requested backend kind.
	ErrBackendNotConfigured = errors.New("phraseql: backend not configured")

	// ErrUnsupportedFormat indicates an unsupported file format.
	ErrUnsupportedFormat = errors.New("phraseql: unsupported file format")
)
