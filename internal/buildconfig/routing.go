package buildconfig

import (
	"path"
	"path/filepath"
	"strings"
)

// Asset destination directories.
const (
	AssetDirImages = "images"
	AssetDirFonts  = "fonts"
)

// AssetRoute is where an emitted binary asset lands and how it is referenced.
type AssetRoute struct {
	Dir        string
	OutputPath string
	PublicPath string
}

// RouteAsset routes the asset at resourcePath, emitted under url, to the fonts directory
// when its path relative to context has a "fonts" segment (case-insensitive), and to the
// images directory otherwise.
func RouteAsset(context, resourcePath, url string) AssetRoute {
	dir := AssetDirImages
	if IsFontPath(context, resourcePath) {
		dir = AssetDirFonts
	}
	return AssetRoute{
		Dir:        dir,
		OutputPath: path.Join(dir, url),
		PublicPath: "../" + path.Join(dir, url),
	}
}

// IsFontPath reports whether resourcePath, relative to context, contains a fonts segment.
func IsFontPath(context, resourcePath string) bool {
	rel, err := filepath.Rel(context, resourcePath)
	if err != nil {
		rel = resourcePath
	}
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.EqualFold(seg, AssetDirFonts) {
			return true
		}
	}
	return false
}
