package registry

import "errors"

// Errors surfaced by the upload pipeline. Handlers translate these into
// user-facing messages at the request boundary; everything else is wrapped
// and treated as an internal failure.
var (
	// ErrMalformedArchive means the uploaded bytes are not a readable zip.
	ErrMalformedArchive = errors.New("malformed zip archive")

	// ErrInvalidMetadata means an info.json entry was present but could not
	// be parsed, or its name field was missing.
	ErrInvalidMetadata = errors.New("invalid plugin metadata")

	// ErrMissingInfoJSON means no entry in the archive ended with /info.json.
	ErrMissingInfoJSON = errors.New("no info.json entry in archive")

	// ErrSecretNotFound means a re-upload secret matched no plugin record.
	ErrSecretNotFound = errors.New("no plugin matches that secret")

	// ErrAssetStore means a blob-store write failed. Fatal for the upload;
	// no partial record is persisted.
	ErrAssetStore = errors.New("asset store write failed")

	// ErrFetchFailed means the uploaded zip could not be read back from its
	// blob URL. Fatal for the upload.
	ErrFetchFailed = errors.New("could not fetch archive")
)
