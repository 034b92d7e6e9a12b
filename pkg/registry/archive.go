package registry

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Entry name suffixes recognized inside an uploaded archive. Matching is on
// suffix, not exact path, so nested layouts (MyPlugin.bundle/info.json) work.
const (
	infoEntrySuffix       = "/info.json"
	iconEntrySuffix       = "/Icon.png"
	screenshotEntrySuffix = "/Screenshot.png"
)

// ArchiveContents is the result of inspecting an uploaded zip.
type ArchiveContents struct {
	Manifest   *Manifest
	Icon       []byte // raw PNG bytes, nil when the archive has no icon
	Screenshot []byte // raw PNG bytes, nil when the archive has no screenshot
}

// InspectArchive scans every entry of a zip archive for the plugin's
// info.json, icon and screenshot. found is false when no info.json entry
// exists anywhere in the archive; that is the only signal the upload flow
// uses to reject a package. When the same role matches more than one entry
// the last one read wins.
func InspectArchive(zipData []byte) (contents *ArchiveContents, found bool, err error) {
	reader, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}

	contents = &ArchiveContents{}
	for _, entry := range reader.File {
		switch {
		case strings.HasSuffix(entry.Name, infoEntrySuffix):
			data, err := readEntry(entry)
			if err != nil {
				return nil, false, err
			}
			manifest, err := ParseManifest(data)
			if err != nil {
				return nil, false, err
			}
			contents.Manifest = manifest
			found = true
		case strings.HasSuffix(entry.Name, iconEntrySuffix):
			if contents.Icon, err = readEntry(entry); err != nil {
				return nil, false, err
			}
		case strings.HasSuffix(entry.Name, screenshotEntrySuffix):
			if contents.Screenshot, err = readEntry(entry); err != nil {
				return nil, false, err
			}
		}
	}

	return contents, found, nil
}

func readEntry(entry *zip.File) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open %s: %v", ErrMalformedArchive, entry.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read %s: %v", ErrMalformedArchive, entry.Name, err)
	}
	return data, nil
}
