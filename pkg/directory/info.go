package directory

import (
	"encoding/json"
	"fmt"

	"github.com/flashlightplugins/registry/pkg/locale"
	"github.com/flashlightplugins/registry/pkg/registry"
)

// InfoDict renders a plugin as the directory's wire shape: the decoded
// metadata object with displayName, description, and examples overwritten
// by their localized values, plus the record-level fields clients need.
func InfoDict(p *registry.Plugin, languages []string) (map[string]interface{}, error) {
	dict := map[string]interface{}{}
	if err := json.Unmarshal([]byte(p.InfoJSON), &dict); err != nil {
		return nil, fmt.Errorf("decoding metadata for %q: %w", p.Name, err)
	}

	dict["displayName"] = locale.Resolve(dict, "displayName", languages, "")
	dict["description"] = locale.Resolve(dict, "description", languages, "")
	dict["examples"] = locale.Resolve(dict, "examples", languages, []interface{}{})

	dict["name"] = p.Name
	dict["categories"] = p.Categories
	dict["icon_url"] = p.IconURL
	dict["screenshot_url"] = p.ScreenshotURL
	dict["zip_url"] = p.ZipURL
	dict["downloads"] = p.Downloads
	dict["install_url"] = InstallURL(p)

	return dict, nil
}
