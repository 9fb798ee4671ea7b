package release

import (
	"sort"
	"strings"

	"github.com/jgivc/ghrelay/internal/entity"
)

const (
	apkSuffix   = ".apk"
	cloneMarker = "clone"
)

// ClassifyArchitecture applies the asset naming convention: "32" or "x86" means 32-bit,
// otherwise "64", "arm64" or "armv8" means 64-bit.
func ClassifyArchitecture(name string) entity.Arch {
	name = strings.ToLower(name)

	if strings.Contains(name, "32") || strings.Contains(name, "x86") {
		return entity.Arch32
	}

	if strings.Contains(name, "64") || strings.Contains(name, "arm64") || strings.Contains(name, "armv8") {
		return entity.Arch64
	}

	return entity.ArchUnknown
}

func IsAPK(name string) bool {
	return strings.HasSuffix(name, apkSuffix)
}

func IsClone(name string) bool {
	return strings.Contains(strings.ToLower(name), cloneMarker)
}

// SelectAssetsForArchitecture returns every APK of arch across releases, newest release first.
func SelectAssetsForArchitecture(releases []entity.Release, arch entity.Arch) []entity.AssetPick {
	if arch == entity.ArchUnknown {
		return nil
	}

	var picks []entity.AssetPick
	for i := range releases {
		for _, asset := range releases[i].Assets {
			if IsAPK(asset.Name) && ClassifyArchitecture(asset.Name) == arch {
				picks = append(picks, entity.AssetPick{Asset: asset, Release: &releases[i]})
			}
		}
	}

	sort.SliceStable(picks, func(i, j int) bool {
		return picks[i].Release.PublishedAt.After(picks[j].Release.PublishedAt)
	})

	return picks
}

func PartitionVariants(picks []entity.AssetPick) (standard, clone []entity.AssetPick) {
	for _, pick := range picks {
		if IsClone(pick.Asset.Name) {
			clone = append(clone, pick)
		} else {
			standard = append(standard, pick)
		}
	}

	return standard, clone
}

// LatestVariants returns the first standard and the first clone pick, either may be nil.
func LatestVariants(picks []entity.AssetPick) (standard, clone *entity.AssetPick) {
	standards, clones := PartitionVariants(picks)

	if len(standards) > 0 {
		standard = &standards[0]
	}

	if len(clones) > 0 {
		clone = &clones[0]
	}

	return standard, clone
}

func Newest(releases []entity.Release) *entity.Release {
	var newest *entity.Release
	for i := range releases {
		if newest == nil || releases[i].PublishedAt.After(newest.PublishedAt) {
			newest = &releases[i]
		}
	}

	return newest
}

// MostRecentReleaseFor returns the release of the newest asset of arch, or the newest release overall.
func MostRecentReleaseFor(releases []entity.Release, arch entity.Arch) *entity.Release {
	if picks := SelectAssetsForArchitecture(releases, arch); len(picks) > 0 {
		return picks[0].Release
	}

	return Newest(releases)
}
