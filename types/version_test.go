package types //nolint:revive // types is a valid package name

import (
	"regexp"
	"testing"
)

func TestVersion_Format(t *testing.T) {
	// Version should be a valid semver
	semverRegex := regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`)
	if !semverRegex.MatchString(Version) {
		t.Errorf("Version %q is not a valid semver", Version)
	}
}

func TestManifestVersion_IsInteger(t *testing.T) {
	// Manifest versions are bumped only on incompatible record changes
	if !regexp.MustCompile(`^[1-9][0-9]*$`).MatchString(ManifestVersion) {
		t.Errorf("ManifestVersion %q is not a positive integer", ManifestVersion)
	}
}
