// Package registry implements the plugin ingestion pipeline: inspecting
// uploaded zip archives, publishing resized icon/screenshot assets, and
// owning the create/update/replace lifecycle of plugin records.
//
// # Upload flow
//
// A zip archive lands in the blob store first; the upload service then reads
// it back, locates its info.json/Icon.png/Screenshot.png entries by name
// suffix, and builds or replaces the matching plugin record:
//
//	uploader := registry.NewUploader(store, fetcher, assets, keys, log)
//	result, err := uploader.SubmitUpload(ctx, registry.UploadRequest{
//		ZipURL: zipURL,
//		Secret: secret, // empty for first upload
//		Notes:  notes,
//	})
//
// Every successful upload rotates the record's secret; the caller must keep
// the returned value to authorize the next re-upload.
//
// # Authorization
//
// An upload is admin-authorized when the identity provider recognizes the
// caller as an administrator or when a valid console key accompanies the
// request. Only admin-authorized uploads are auto-approved, and only they
// may displace an existing approved record with the same name (transferring
// its download count in the process).
package registry
